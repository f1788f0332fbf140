// Package config defines the jobwatch process configuration.
package config

import "time"

// StorageType selects the backend holding the persisted item list.
type StorageType string

const (
	StorageTypeMemory   StorageType = "memory"
	StorageTypePostgres StorageType = "postgres"
	StorageTypeRedis    StorageType = "redis"
)

// Config represents the top-level configuration.
type Config struct {
	Monitor   MonitorConfig   `yaml:"monitor" mapstructure:"monitor"`
	JobServer JobServerConfig `yaml:"jobserver" mapstructure:"jobserver"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Events    EventsConfig    `yaml:"events" mapstructure:"events"`
	Notify    NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	API       APIConfig       `yaml:"api" mapstructure:"api"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Health    HealthConfig    `yaml:"health" mapstructure:"health"`
}

// MonitorConfig tunes polling and persistence.
type MonitorConfig struct {
	PollUnit            time.Duration `yaml:"poll_unit" mapstructure:"poll_unit" validate:"gt=0"`
	PollTable           []int         `yaml:"poll_table,omitempty" mapstructure:"poll_table" validate:"omitempty,dive,gt=0"`
	PersistInterval     time.Duration `yaml:"persist_interval" mapstructure:"persist_interval" validate:"gte=0"`
	StorageKey          string        `yaml:"storage_key" mapstructure:"storage_key" validate:"required"`
	RecoveryConcurrency int           `yaml:"recovery_concurrency" mapstructure:"recovery_concurrency" validate:"gt=0"`
	EventQueueSize      int           `yaml:"event_queue_size" mapstructure:"event_queue_size" validate:"gt=0"`
}

// JobServerConfig describes how to reach the job server.
type JobServerConfig struct {
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int           `yaml:"burst" mapstructure:"burst" validate:"gt=0"`
	RetryCount        uint64        `yaml:"retry_count" mapstructure:"retry_count"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
}

// StorageConfig selects and configures the state store.
type StorageConfig struct {
	Type      StorageType `yaml:"type" mapstructure:"type" validate:"oneof=memory postgres redis"`
	DSN       string      `yaml:"dsn,omitempty" mapstructure:"dsn" validate:"required_if=Type postgres"`
	RedisAddr string      `yaml:"redis_addr,omitempty" mapstructure:"redis_addr" validate:"required_if=Type redis"`
}

// EventsConfig controls forwarding monitor events to Kafka.
type EventsConfig struct {
	Enabled  bool     `yaml:"enabled" mapstructure:"enabled"`
	Brokers  []string `yaml:"brokers,omitempty" mapstructure:"brokers" validate:"required_if=Enabled true"`
	Topic    string   `yaml:"topic,omitempty" mapstructure:"topic" validate:"required_if=Enabled true"`
	ClientID string   `yaml:"client_id,omitempty" mapstructure:"client_id"`
}

// NotifyConfig controls the websocket notification endpoint.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path" validate:"required_if=Enabled true"`
}

// APIConfig controls the HTTP command API served on the health listener.
type APIConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// TelemetryConfig configures the OTLP exporters.
type TelemetryConfig struct {
	ServiceName string  `yaml:"service_name" mapstructure:"service_name" validate:"required"`
	Endpoint    string  `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	Insecure    bool    `yaml:"insecure" mapstructure:"insecure"`
	Probability float64 `yaml:"probability" mapstructure:"probability" validate:"gte=0,lte=1"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	// OTelBridge additionally sends records through the otel log bridge.
	OTelBridge bool `yaml:"otel_bridge" mapstructure:"otel_bridge"`
}

// HealthConfig configures the listener that serves health, metrics, the
// websocket and the command API.
type HealthConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr" validate:"required,hostname_port"`
}

// Default returns a configuration with every optional field populated.
func Default() Config {
	return Config{
		Monitor: MonitorConfig{
			PollUnit:            time.Second,
			PersistInterval:     30 * time.Second,
			StorageKey:          "background.monitor.items",
			RecoveryConcurrency: 8,
			EventQueueSize:      256,
		},
		JobServer: JobServerConfig{
			RequestsPerSecond: 20,
			Burst:             10,
			RetryCount:        3,
			Timeout:           10 * time.Second,
		},
		Storage:   StorageConfig{Type: StorageTypeMemory},
		Events:    EventsConfig{Topic: "jobwatch-events", ClientID: "jobwatch"},
		Notify:    NotifyConfig{Enabled: true, Path: "/ws"},
		API:       APIConfig{Enabled: true},
		Telemetry: TelemetryConfig{ServiceName: "jobwatch", Probability: 0.05},
		Log:       LogConfig{Level: "info"},
		Health:    HealthConfig{Addr: "0.0.0.0:8080"},
	}
}
