package fileloader

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ahrav/jobwatch/internal/config"
)

// EnvPrefix prefixes every environment override, e.g. JOBWATCH_JOBSERVER_BASE_URL.
const EnvPrefix = "JOBWATCH"

var _ config.Loader = (*FileLoader)(nil)

// FileLoader loads configuration from a YAML file on disk, applies
// JOBWATCH_ environment overrides and validates the result.
type FileLoader struct {
	// path is the filesystem path to the configuration file. An empty path
	// loads defaults and environment overrides only.
	path string
}

// NewFileLoader creates a new FileLoader that will load configuration from the
// specified file path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Load reads and parses the configuration file specified in FileLoader.path.
func (l *FileLoader) Load(ctx context.Context) (*config.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, config.Default())

	if l.path != "" {
		v.SetConfigFile(l.path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers every key so that environment overrides apply even
// when the file omits the key.
func setDefaults(v *viper.Viper, d config.Config) {
	v.SetDefault("monitor.poll_unit", d.Monitor.PollUnit)
	v.SetDefault("monitor.poll_table", d.Monitor.PollTable)
	v.SetDefault("monitor.persist_interval", d.Monitor.PersistInterval)
	v.SetDefault("monitor.storage_key", d.Monitor.StorageKey)
	v.SetDefault("monitor.recovery_concurrency", d.Monitor.RecoveryConcurrency)
	v.SetDefault("monitor.event_queue_size", d.Monitor.EventQueueSize)

	v.SetDefault("jobserver.base_url", d.JobServer.BaseURL)
	v.SetDefault("jobserver.requests_per_second", d.JobServer.RequestsPerSecond)
	v.SetDefault("jobserver.burst", d.JobServer.Burst)
	v.SetDefault("jobserver.retry_count", d.JobServer.RetryCount)
	v.SetDefault("jobserver.timeout", d.JobServer.Timeout)

	v.SetDefault("storage.type", string(d.Storage.Type))
	v.SetDefault("storage.dsn", d.Storage.DSN)
	v.SetDefault("storage.redis_addr", d.Storage.RedisAddr)

	v.SetDefault("events.enabled", d.Events.Enabled)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
	v.SetDefault("events.client_id", d.Events.ClientID)

	v.SetDefault("notify.enabled", d.Notify.Enabled)
	v.SetDefault("notify.path", d.Notify.Path)

	v.SetDefault("api.enabled", d.API.Enabled)

	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("telemetry.insecure", d.Telemetry.Insecure)
	v.SetDefault("telemetry.probability", d.Telemetry.Probability)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.otel_bridge", d.Log.OTelBridge)

	v.SetDefault("health.addr", d.Health.Addr)
}
