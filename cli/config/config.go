// Package config resolves fleetview settings from defaults, an optional YAML
// file, the environment and CLI flags, in that order of precedence.
package config

import (
	"fmt"
	"time"
)

// Config represents a fleetview.yaml configuration file.
// All values are optional; environment variables and CLI flags override them.
type Config struct {
	APIBase      string         `yaml:"api_base"`
	Timeout      Duration       `yaml:"timeout"`
	RecheckDelay Duration       `yaml:"recheck_delay"`
	Stream       StreamConfig   `yaml:"stream"`
	Callback     CallbackConfig `yaml:"callback"`
	Log          LogConfig      `yaml:"log"`
	Archive      ArchiveConfig  `yaml:"archive"`
	Adapter      AdapterConfig  `yaml:"adapter"`
}

// StreamConfig configures the telemetry stream.
type StreamConfig struct {
	// URL is the event-stream address. Empty disables the stream.
	URL            string   `yaml:"url"`
	MaxLines       int      `yaml:"max_lines"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
}

// CallbackConfig configures the loopback listener the OAuth redirect lands on.
type CallbackConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	// File receives logs in TUI mode. Empty discards them there.
	File string `yaml:"file"`
}

// ArchiveConfig configures the telemetry archive.
type ArchiveConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
	BatchSize   int    `yaml:"batch_size"`
}

// AdapterConfig configures session change notifications.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "500ms").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}
