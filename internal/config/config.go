package config

import "time"

// Config represents the top-level service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Downloads DownloadsConfig `yaml:"downloads" mapstructure:"downloads"`

	// Hosts is the registry of retail hosts collection can run against.
	Hosts []Host `yaml:"hosts" mapstructure:"hosts"`

	// DefaultHost is the key of the host used when a start request carries
	// none.
	DefaultHost string `yaml:"default_host" mapstructure:"default_host"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// SessionConfig holds session orchestration tunables.
type SessionConfig struct {
	// OrdersLimit caps how many orders a run collects.
	OrdersLimit int `yaml:"orders_limit" mapstructure:"orders_limit"`

	// CollectorReadyWait bounds how long a start waits for the collector to
	// attach before failing the run.
	CollectorReadyWait time.Duration `yaml:"collector_ready_wait" mapstructure:"collector_ready_wait"`

	// FallbackFilterYears is how many recent years the fallback filter list
	// offers.
	FallbackFilterYears int `yaml:"fallback_filter_years" mapstructure:"fallback_filter_years"`
}

// StorageBackend enumerates the supported snapshot store backends.
type StorageBackend string

const (
	StorageBackendMemory   StorageBackend = "memory"
	StorageBackendFile     StorageBackend = "file"
	StorageBackendPostgres StorageBackend = "postgres"
)

// StorageConfig selects and configures snapshot persistence.
type StorageConfig struct {
	Backend StorageBackend `yaml:"backend" mapstructure:"backend"`

	// SnapshotPath and SettingsPath apply to the file backend.
	SnapshotPath string `yaml:"snapshot_path" mapstructure:"snapshot_path"`
	SettingsPath string `yaml:"settings_path" mapstructure:"settings_path"`

	// PostgresDSN applies to the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
}

// DownloadsConfig configures where invoice documents are saved.
type DownloadsConfig struct {
	Root string `yaml:"root" mapstructure:"root"`
}

// Host describes one retail host collection can run against.
type Host struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// OrderHistoryPaths are the path prefixes of pages eligible for
	// collection on this host.
	OrderHistoryPaths []string `yaml:"order_history_paths" mapstructure:"order_history_paths"`
}

// HostByKey returns the registered host with the given key.
func (c *Config) HostByKey(key string) (Host, bool) {
	for _, h := range c.Hosts {
		if h.Key == key {
			return h, true
		}
	}
	return Host{}, false
}

// ResolvedDefaultHost returns the base URL of the configured default host,
// falling back to the first registered host.
func (c *Config) ResolvedDefaultHost() string {
	if h, ok := c.HostByKey(c.DefaultHost); ok {
		return h.BaseURL
	}
	if len(c.Hosts) > 0 {
		return c.Hosts[0].BaseURL
	}
	return ""
}
