package config

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/tlink/archive"
	"github.com/pithecene-io/tlink/heartbeat"
	"github.com/pithecene-io/tlink/live"
	"github.com/pithecene-io/tlink/logsync"
	"github.com/pithecene-io/tlink/types"
)

// Config represents a tlink.yaml configuration file.
// Every value has a default (see Defaults); CLI flags override file values.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Binary  StreamConfig  `yaml:"binary"`
	Text    StreamConfig  `yaml:"text"`
	Sync    SyncConfig    `yaml:"sync"`
	Archive ArchiveConfig `yaml:"archive"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// StreamConfig holds live stream settings for one protocol family.
type StreamConfig struct {
	Address           string   `yaml:"address"`
	Port              int      `yaml:"port"`
	ConnectTimeout    Duration `yaml:"connect_timeout"`
	DataTimeout       Duration `yaml:"data_timeout"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	MaxFrameSize      int      `yaml:"max_frame_size"`
}

// SyncConfig holds remote log sync settings.
type SyncConfig struct {
	Address            string   `yaml:"address"`
	Path               string   `yaml:"path"`
	Destination        string   `yaml:"destination"`
	Username           string   `yaml:"username"`
	Port               int      `yaml:"port"`
	ConnectTimeout     Duration `yaml:"connect_timeout"`
	RefreshInterval    Duration `yaml:"refresh_interval"`
	RetryDelay         Duration `yaml:"retry_delay"`
	Extensions         []string `yaml:"extensions"`
	RandomizedPatterns []string `yaml:"randomized_patterns"`
}

// ArchiveConfig holds archive storage settings. An empty backend disables
// archiving.
type ArchiveConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Enabled reports whether an archive backend is configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Backend != ""
}

// Archive converts the section to an archive.Config.
func (a ArchiveConfig) Archive() archive.Config {
	return archive.Config{
		Backend:      a.Backend,
		Path:         a.Path,
		Region:       a.Region,
		Endpoint:     a.Endpoint,
		UsePathStyle: a.S3PathStyle,
	}
}

// NotifyConfig holds notifier settings. An empty type disables notifications.
type NotifyConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Notifier types.
const (
	NotifyRedis   = "redis"
	NotifyWebhook = "webhook"
)

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Defaults returns a Config with every default applied.
func Defaults() *Config {
	stream := func(p types.Protocol) StreamConfig {
		return StreamConfig{
			Port:              p.DefaultPort(),
			ConnectTimeout:    Duration{live.DefaultConnectTimeout},
			DataTimeout:       Duration{live.DefaultDataTimeout},
			HeartbeatInterval: Duration{heartbeat.DefaultInterval(p)},
		}
	}
	return &Config{
		Log:    LogConfig{Level: "info"},
		Binary: stream(types.ProtocolBinary),
		Text:   stream(types.ProtocolText),
		Sync: SyncConfig{
			Path:               "/home/lvuser/logs",
			Destination:        ".",
			Username:           logsync.DefaultUsername,
			Port:               logsync.DefaultSSHPort,
			ConnectTimeout:     Duration{logsync.DefaultConnectTimeout},
			RefreshInterval:    Duration{logsync.DefaultRefreshInterval},
			RetryDelay:         Duration{logsync.DefaultRetryDelay},
			Extensions:         append([]string(nil), logsync.DefaultExtensions...),
			RandomizedPatterns: append([]string(nil), logsync.DefaultRandomizedPatterns...),
		},
	}
}

// Stream returns the stream section for protocol p.
func (c *Config) Stream(p types.Protocol) StreamConfig {
	if p == types.ProtocolText {
		return c.Text
	}
	return c.Binary
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	for _, s := range []struct {
		name string
		cfg  StreamConfig
	}{{"binary", c.Binary}, {"text", c.Text}} {
		if s.cfg.Port < 0 || s.cfg.Port > 65535 {
			errs = append(errs, fmt.Errorf("%s.port %d out of range", s.name, s.cfg.Port))
		}
		if s.cfg.MaxFrameSize < 0 {
			errs = append(errs, fmt.Errorf("%s.max_frame_size must be >= 0", s.name))
		}
	}
	if c.Sync.Port < 0 || c.Sync.Port > 65535 {
		errs = append(errs, fmt.Errorf("sync.port %d out of range", c.Sync.Port))
	}
	if c.Archive.Enabled() {
		cfg := c.Archive.Archive()
		if err := cfg.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	switch c.Notify.Type {
	case "":
	case NotifyRedis, NotifyWebhook:
		if c.Notify.URL == "" {
			errs = append(errs, fmt.Errorf("notify.url is required for %s", c.Notify.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid notify.type %q (must be redis or webhook)", c.Notify.Type))
	}
	return errors.Join(errs...)
}
