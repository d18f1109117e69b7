package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// BAUDSNIFFER_SWEEP_PORT=/dev/ttyUSB0
const EnvPrefix = "BAUDSNIFFER"

// Config is the root configuration structure
type Config struct {
	App        AppConfig        `json:"app" mapstructure:"app"`
	Sweep      SweepConfig      `json:"sweep" mapstructure:"sweep"`
	NATS       NATSConfig       `json:"nats" mapstructure:"nats"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
	Monitoring MonitoringConfig `json:"monitoring" mapstructure:"monitoring"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name       string `json:"name" mapstructure:"name"`
	InstanceID string `json:"instance_id" mapstructure:"instance_id"`
}

// SweepConfig describes the search space and per-probe parameters
type SweepConfig struct {
	Port               string        `json:"port" mapstructure:"port"`                   // e.g., "/dev/ttyUSB0" or "COM4"
	LineSettings       []string      `json:"line_settings" mapstructure:"line_settings"` // e.g., ["8N1", "7E1"]
	BaudRates          []int         `json:"baud_rates" mapstructure:"baud_rates"`
	SampleSize         int           `json:"sample_size" mapstructure:"sample_size"`     // bytes read per probe
	ProbeTimeout       time.Duration `json:"probe_timeout" mapstructure:"probe_timeout"` // e.g., "10s"
	SettleDelay        time.Duration `json:"settle_delay" mapstructure:"settle_delay"`   // pause between probes
	Encoding           string        `json:"encoding" mapstructure:"encoding"`           // IANA charset name
	AbortOnUnreachable bool          `json:"abort_on_unreachable" mapstructure:"abort_on_unreachable"`
}

// NATSConfig contains the optional NATS side channel settings
type NATSConfig struct {
	Enabled              bool   `json:"enabled" mapstructure:"enabled"`
	URL                  string `json:"url" mapstructure:"url"`
	SubjectPrefix        string `json:"subject_prefix" mapstructure:"subject_prefix"` // e.g., "lab"
	MaxReconnects        int    `json:"max_reconnects" mapstructure:"max_reconnects"`
	ReconnectWaitSec     int    `json:"reconnect_wait_sec" mapstructure:"reconnect_wait_sec"`
	HeartbeatIntervalSec int    `json:"heartbeat_interval_sec" mapstructure:"heartbeat_interval_sec"`
}

// LoggingConfig contains logging and log rotation settings
type LoggingConfig struct {
	BasePath   string `json:"base_path" mapstructure:"base_path"`     // empty = log to stderr
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"` // Max size before rotation
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"` // Max number of old log files
	Compress   bool   `json:"compress" mapstructure:"compress"`       // Compress rotated logs
	Level      string `json:"level" mapstructure:"level"`             // Log level: debug, info, warn, error
	Transcript bool   `json:"transcript" mapstructure:"transcript"`   // Write a per-probe transcript file
}

// MonitoringConfig contains the optional progress/metrics HTTP server settings
type MonitoringConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	Port    int  `json:"port" mapstructure:"port"`
}

// DefaultLineSettings are tried in this order
var DefaultLineSettings = []string{
	"8N1", "8N2", "8E1", "8E2", "8O1", "8O2",
	"7N1", "7N2", "7E1", "7E2", "7O1", "7O2",
}

// DefaultBaudRates are tried in this order for every line setting
var DefaultBaudRates = []int{
	110, 300, 600, 1200, 1800, 2400, 4800, 9600, 14400,
	19200, 38400, 57600, 115200, 128000, 256000,
}

// Default values for scalar settings
const (
	DefaultSampleSize   = 10
	DefaultProbeTimeout = 10 * time.Second
	DefaultSettleDelay  = 100 * time.Millisecond
)

// Load reads the configuration file at path (which may be empty), applies
// environment overrides, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	return LoadViper(viper.New(), path)
}

// LoadViper is Load on a caller-provided viper instance, so command-line flags
// bound to v take precedence over the file and the environment.
func LoadViper(v *viper.Viper, path string) (*Config, error) {
	setViperDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Set defaults
	cfg.setDefaults()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setViperDefaults registers every key so environment overrides are seen by
// Unmarshal even when the file does not mention the key.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "BaudSniffer")
	v.SetDefault("app.instance_id", "default")

	v.SetDefault("sweep.port", "")
	v.SetDefault("sweep.line_settings", DefaultLineSettings)
	v.SetDefault("sweep.baud_rates", DefaultBaudRates)
	v.SetDefault("sweep.sample_size", DefaultSampleSize)
	v.SetDefault("sweep.probe_timeout", DefaultProbeTimeout)
	v.SetDefault("sweep.settle_delay", DefaultSettleDelay)
	v.SetDefault("sweep.encoding", "utf-8")
	v.SetDefault("sweep.abort_on_unreachable", false)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "baudsniffer")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait_sec", 5)
	v.SetDefault("nats.heartbeat_interval_sec", 30)

	v.SetDefault("logging.base_path", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 10)
	v.SetDefault("logging.compress", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.transcript", false)

	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.port", 8089)
}

// setDefaults fills in default values for fields a config file set to zero
func (c *Config) setDefaults() {
	// App defaults
	if c.App.Name == "" {
		c.App.Name = "BaudSniffer"
	}
	if c.App.InstanceID == "" {
		c.App.InstanceID = "default"
	}

	// Sweep defaults
	if len(c.Sweep.LineSettings) == 0 {
		c.Sweep.LineSettings = append([]string(nil), DefaultLineSettings...)
	}
	if len(c.Sweep.BaudRates) == 0 {
		c.Sweep.BaudRates = append([]int(nil), DefaultBaudRates...)
	}
	if c.Sweep.SampleSize == 0 {
		c.Sweep.SampleSize = DefaultSampleSize
	}
	if c.Sweep.ProbeTimeout == 0 {
		c.Sweep.ProbeTimeout = DefaultProbeTimeout
	}
	if c.Sweep.Encoding == "" {
		c.Sweep.Encoding = "utf-8"
	}

	// NATS defaults
	if c.NATS.URL == "" {
		c.NATS.URL = "nats://localhost:4222"
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "baudsniffer"
	}
	if c.NATS.ReconnectWaitSec == 0 {
		c.NATS.ReconnectWaitSec = 5
	}
	if c.NATS.HeartbeatIntervalSec == 0 {
		c.NATS.HeartbeatIntervalSec = 30
	}

	// Logging defaults
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	// Monitoring defaults
	if c.Monitoring.Port == 0 {
		c.Monitoring.Port = 8089
	}
}

// Helper methods for time conversions
func (n *NATSConfig) ReconnectWait() time.Duration {
	return time.Duration(n.ReconnectWaitSec) * time.Second
}

func (n *NATSConfig) HeartbeatInterval() time.Duration {
	return time.Duration(n.HeartbeatIntervalSec) * time.Second
}
