package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace/noop"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/jobwatch/internal/config/fileloader"
	"github.com/ahrav/jobwatch/internal/domain/background"
	"github.com/ahrav/jobwatch/internal/infra/serialization/monitorlist"
)

type inspectOutput struct {
	Key       string               `yaml:"key"`
	Records   []monitorlist.Record `yaml:"records"`
	Malformed []string             `yaml:"malformed,omitempty"`
}

func newInspectCommand(configPath *string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the persisted item list without contacting the job server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := fileloader.NewFileLoader(*configPath).Load(ctx)
			if err != nil {
				return err
			}

			store, closeStore, err := newStateStore(ctx, cfg.Storage, noop.NewTracerProvider().Tracer(serviceType))
			if err != nil {
				return err
			}
			defer closeStore()

			out := inspectOutput{Key: cfg.Monitor.StorageKey}
			text, err := store.Load(ctx, cfg.Monitor.StorageKey)
			switch {
			case errors.Is(err, background.ErrStateNotFound):
			case err != nil:
				return fmt.Errorf("failed to load persisted items: %w", err)
			default:
				var malformed []error
				out.Records, malformed = monitorlist.Decode(text)
				for _, e := range malformed {
					out.Malformed = append(out.Malformed, e.Error())
				}
			}

			switch output {
			case "yaml":
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(out)
			case "text":
				w := cmd.OutOrStdout()
				for _, r := range out.Records {
					fmt.Fprintf(w, "%s\t%s\t%s\twatchable=%t\tactivated=%v\tmembers=%d\n",
						r.ID, r.UIType, r.Title, r.Watchable, r.Activated, len(r.SubIDs))
				}
				for _, m := range out.Malformed {
					fmt.Fprintf(w, "malformed: %s\n", m)
				}
				return nil
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or yaml")

	return cmd
}
