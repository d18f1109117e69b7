package config

import (
	"fmt"
	"os"
	"strings"
)

var (
	// Valid log levels
	validLogLevels = map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
)

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.validateApp(); err != nil {
		return fmt.Errorf("app config: %w", err)
	}

	if err := c.validateSweep(); err != nil {
		return fmt.Errorf("sweep config: %w", err)
	}

	if err := c.validateNATS(); err != nil {
		return fmt.Errorf("nats config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.validateMonitoring(); err != nil {
		return fmt.Errorf("monitoring config: %w", err)
	}

	return nil
}

func (c *Config) validateApp() error {
	if c.App.Name == "" {
		return fmt.Errorf("name is required")
	}

	if c.App.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}

	return nil
}

// validateSweep checks shapes only. Line-setting tokens are not decoded here:
// the sweep skips and reports tokens it cannot decode.
func (c *Config) validateSweep() error {
	if strings.TrimSpace(c.Sweep.Port) == "" {
		return fmt.Errorf("port is required")
	}

	if len(c.Sweep.LineSettings) == 0 {
		return fmt.Errorf("at least one line setting must be configured")
	}

	for i, token := range c.Sweep.LineSettings {
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("line setting %d is empty", i)
		}
	}

	if len(c.Sweep.BaudRates) == 0 {
		return fmt.Errorf("at least one baud rate must be configured")
	}

	seen := make(map[int]bool)
	for _, baudRate := range c.Sweep.BaudRates {
		if baudRate <= 0 {
			return fmt.Errorf("baud rate must be positive, got: %d", baudRate)
		}
		if seen[baudRate] {
			return fmt.Errorf("duplicate baud rate %d", baudRate)
		}
		seen[baudRate] = true
	}

	if c.Sweep.SampleSize <= 0 {
		return fmt.Errorf("sample_size must be positive, got: %d", c.Sweep.SampleSize)
	}

	if c.Sweep.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive, got: %s", c.Sweep.ProbeTimeout)
	}

	if c.Sweep.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must be non-negative, got: %s", c.Sweep.SettleDelay)
	}

	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}

	if c.NATS.URL == "" {
		return fmt.Errorf("url is required")
	}

	if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		return fmt.Errorf("url must start with nats:// or tls://, got: %s", c.NATS.URL)
	}

	if c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("subject_prefix is required")
	}

	// -1 means unlimited reconnects (NATS client convention)
	if c.NATS.MaxReconnects < -1 {
		return fmt.Errorf("max_reconnects must be -1 (unlimited) or non-negative, got: %d", c.NATS.MaxReconnects)
	}

	if c.NATS.ReconnectWaitSec <= 0 {
		return fmt.Errorf("reconnect_wait_sec must be positive, got: %d", c.NATS.ReconnectWaitSec)
	}

	if c.NATS.HeartbeatIntervalSec <= 0 {
		return fmt.Errorf("heartbeat_interval_sec must be positive, got: %d", c.NATS.HeartbeatIntervalSec)
	}

	return nil
}

func (c *Config) validateLogging() error {
	if c.Logging.BasePath != "" {
		// Check if base path exists or can be created
		if _, err := os.Stat(c.Logging.BasePath); os.IsNotExist(err) {
			if err := os.MkdirAll(c.Logging.BasePath, 0755); err != nil {
				return fmt.Errorf("base_path %s does not exist and cannot be created: %w", c.Logging.BasePath, err)
			}
		}
	}

	if c.Logging.Transcript && c.Logging.BasePath == "" {
		return fmt.Errorf("transcript requires base_path")
	}

	if c.Logging.MaxSizeMB <= 0 {
		return fmt.Errorf("max_size_mb must be positive, got: %d", c.Logging.MaxSizeMB)
	}

	if c.Logging.MaxBackups < 0 {
		return fmt.Errorf("max_backups must be non-negative, got: %d", c.Logging.MaxBackups)
	}

	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %s, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

func (c *Config) validateMonitoring() error {
	if !c.Monitoring.Enabled {
		return nil
	}

	if c.Monitoring.Port <= 0 || c.Monitoring.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got: %d", c.Monitoring.Port)
	}

	return nil
}
