package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ahrav/jobwatch/internal/api/mux"
	"github.com/ahrav/jobwatch/internal/api/routes"
	"github.com/ahrav/jobwatch/internal/app/activation"
	"github.com/ahrav/jobwatch/internal/app/monitor"
	"github.com/ahrav/jobwatch/internal/config"
	"github.com/ahrav/jobwatch/internal/config/fileloader"
	"github.com/ahrav/jobwatch/internal/domain/events"
	"github.com/ahrav/jobwatch/internal/infra/eventbus/kafka"
	"github.com/ahrav/jobwatch/internal/infra/eventbus/memory"
	"github.com/ahrav/jobwatch/internal/infra/jobserver"
	"github.com/ahrav/jobwatch/internal/infra/notify"
	"github.com/ahrav/jobwatch/pkg/common"
	"github.com/ahrav/jobwatch/pkg/common/logger"
	"github.com/ahrav/jobwatch/pkg/common/otel"
)

const kafkaConnectTimeout = 2 * time.Minute

func newRunCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Restore tracked jobs and keep polling them until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := fileloader.NewFileLoader(*configPath).Load(cmd.Context())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
}

func newLogger(cfg *config.Config, hostname string) *logger.Logger {
	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}
			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n", r.Message, errorAttrsJSON)
		},
	}

	svcName := fmt.Sprintf("%s-%s", cfg.Telemetry.ServiceName, hostname)
	metadata := map[string]string{
		"service":  svcName,
		"hostname": hostname,
		"app":      serviceType,
	}

	log := logger.NewWithMetadata(
		os.Stdout,
		logger.ParseLevel(cfg.Log.Level),
		svcName,
		otel.GetTraceID,
		logEvents,
		metadata,
	)
	if !cfg.Log.OTelBridge {
		return log
	}

	return logger.NewWithHandler(logger.Fanout(log.Handler(), otelslog.NewHandler(serviceType)))
}

func run(ctx context.Context, cfg *config.Config) error {
	_, _ = maxprocs.Set()

	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("failed to get hostname: %w", err)
	}

	log := newLogger(cfg, hostname)

	tp, telemetryTeardown, err := otel.InitTelemetry(log, otel.Config{
		ServiceName:      cfg.Telemetry.ServiceName,
		ExporterEndpoint: cfg.Telemetry.Endpoint,
		ExcludedRoutes: map[string]struct{}{
			"/v1/health":    {},
			"/v1/readiness": {},
		},
		Probability: cfg.Telemetry.Probability,
		ResourceAttributes: map[string]string{
			"library.language": "go",
			"host.name":        hostname,
		},
		InsecureExporter: cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer telemetryTeardown(context.Background())

	tracer := tp.Tracer(cfg.Telemetry.ServiceName)
	mp := otel.GetMeterProvider()

	ready := &atomic.Bool{}
	healthServer, err := common.NewHealthServer(cfg.Health.Addr, ready)
	if err != nil {
		return fmt.Errorf("failed to create health server: %w", err)
	}

	store, closeStore, err := newStateStore(ctx, cfg.Storage, tracer)
	if err != nil {
		return err
	}
	defer closeStore()
	log.Info(ctx, "state store ready", "type", string(cfg.Storage.Type))

	client := jobserver.NewClient(jobserver.Config{
		BaseURL:           cfg.JobServer.BaseURL,
		RequestsPerSecond: cfg.JobServer.RequestsPerSecond,
		Burst:             cfg.JobServer.Burst,
		RetryCount:        cfg.JobServer.RetryCount,
		Timeout:           cfg.JobServer.Timeout,
	}, log, tracer)

	broker := memory.NewBroker()
	defer broker.Close()
	publishers := events.MultiPublisher{broker}

	if cfg.Events.Enabled {
		kafkaMetrics, err := kafka.NewPublisherMetrics(mp)
		if err != nil {
			return fmt.Errorf("failed to create kafka metrics: %w", err)
		}
		kafkaPub, err := kafka.ConnectWithRetry(&kafka.Config{
			Brokers:  cfg.Events.Brokers,
			Topic:    cfg.Events.Topic,
			ClientID: cfg.Events.ClientID,
		}, kafkaConnectTimeout, log, kafkaMetrics, tracer)
		if err != nil {
			return err
		}
		defer kafkaPub.Close()
		publishers = append(publishers, kafkaPub)
		log.Info(ctx, "forwarding monitor events to kafka", "topic", cfg.Events.Topic)
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	if cfg.Notify.Enabled {
		hub := notify.NewHub(log)
		go hub.Run(hubCtx)
		if err := broker.Subscribe(hubCtx, nil, hub.HandleEvent); err != nil {
			return fmt.Errorf("failed to subscribe notification hub: %w", err)
		}
		healthServer.Handle(cfg.Notify.Path, http.HandlerFunc(hub.ServeWS))
	}

	dispatcher := activation.NewDispatcher(log, tracer)

	metrics, err := monitor.NewMonitorMetrics(mp)
	if err != nil {
		return fmt.Errorf("failed to create monitor metrics: %w", err)
	}

	mon, err := monitor.NewMonitor(monitor.Config{
		PollUnit:            cfg.Monitor.PollUnit,
		PollTable:           cfg.Monitor.PollTable,
		PersistInterval:     cfg.Monitor.PersistInterval,
		StorageKey:          cfg.Monitor.StorageKey,
		RecoveryConcurrency: cfg.Monitor.RecoveryConcurrency,
		EventQueueSize:      cfg.Monitor.EventQueueSize,
	}, client, store, dispatcher, publishers, metrics, log, tracer)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}
	// Completion handlers run on the event loop and publish through its queue.
	activation.RegisterDefaults(dispatcher, mon.Publisher())

	if cfg.API.Enabled {
		healthServer.Handle("/v1/", mux.WebAPI(mux.Config{
			Build:   version,
			Log:     log,
			Tracer:  tracer,
			Monitor: mon,
			Status:  client,
		}, routes.Routes()))
	}

	report, err := mon.Restore(ctx)
	if err != nil {
		log.Error(ctx, "failed to restore tracked items, starting empty", "error", err)
	} else {
		log.Info(ctx, "tracked items restored",
			"added", report.Added,
			"dropped", report.Dropped,
			"malformed", len(report.Malformed),
		)
	}

	if err := mon.Start(ctx); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "health server listening", "addr", cfg.Health.Addr)
		serverErr <- healthServer.Start()
	}()

	ready.Store(true)
	log.Info(ctx, "jobwatch started", "monitor_id", mon.ID())

	select {
	case <-ctx.Done():
		log.Info(ctx, "shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error(ctx, "health server failed", "error", err)
		}
	}
	ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := mon.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "failed to stop monitor cleanly", "error", err)
	}
	if err := healthServer.Server().Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "error shutting down health server", "error", err)
	}

	log.Info(shutdownCtx, "jobwatch stopped")
	return nil
}
