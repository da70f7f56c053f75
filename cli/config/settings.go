package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/pithecene-io/fleetview/adapter/redis"
	"github.com/pithecene-io/fleetview/adapter/webhook"
	"github.com/pithecene-io/fleetview/api"
	"github.com/pithecene-io/fleetview/archive"
	"github.com/pithecene-io/fleetview/auth"
	"github.com/pithecene-io/fleetview/callback"
	"github.com/pithecene-io/fleetview/log"
	"github.com/pithecene-io/fleetview/sse"
	"github.com/pithecene-io/fleetview/stream"
)

// Adapter types.
const (
	AdapterNone    = ""
	AdapterWebhook = "webhook"
	AdapterRedis   = "redis"
)

// Flags holds CLI flag overrides. Empty values do not override.
type Flags struct {
	APIBase      string
	TelemetryURL string
	LogLevel     string
}

// Settings is the resolved, validated configuration. Built once at startup
// and passed explicitly to the components that need it.
type Settings struct {
	APIBase        string
	Timeout        time.Duration
	RecheckDelay   time.Duration
	TelemetryURL   string
	MaxLines       int
	ConnectTimeout time.Duration
	CallbackListen string
	CallbackPath   string
	LogLevel       string
	LogFile        string
	Archive        ArchiveSettings
	Adapter        AdapterConfig
}

// ArchiveSettings is the resolved archive configuration.
type ArchiveSettings struct {
	Enabled   bool
	Dataset   string
	Backend   string
	Path      string
	S3        archive.S3Config
	BatchSize int
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		APIBase:        api.DefaultBaseURL,
		Timeout:        api.DefaultTimeout,
		RecheckDelay:   auth.DefaultRecheckDelay,
		MaxLines:       stream.DefaultCapacity,
		ConnectTimeout: sse.DefaultConnectTimeout,
		CallbackListen: callback.DefaultListen,
		CallbackPath:   callback.DefaultPath,
		LogLevel:       "info",
		Archive: ArchiveSettings{
			Dataset:   archive.DefaultDataset,
			Backend:   archive.BackendFS,
			BatchSize: archive.DefaultBatchSize,
		},
	}
}

// Resolve layers file, environment and flags over the defaults and
// validates the result. file may be nil.
func Resolve(file *Config, e Env, f Flags) (Settings, error) {
	s := Defaults()

	if file != nil {
		applyFile(&s, file)
	}

	override(&s.APIBase, e.APIBase)
	override(&s.TelemetryURL, e.TelemetryURL)
	override(&s.CallbackListen, e.CallbackListen)
	override(&s.LogLevel, e.LogLevel)
	override(&s.LogFile, e.LogFile)
	override(&s.Adapter.URL, e.AdapterURL)

	override(&s.APIBase, f.APIBase)
	override(&s.TelemetryURL, f.TelemetryURL)
	override(&s.LogLevel, f.LogLevel)

	s.APIBase = strings.TrimRight(strings.TrimSpace(s.APIBase), "/")
	s.TelemetryURL = strings.TrimSpace(s.TelemetryURL)

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func applyFile(s *Settings, c *Config) {
	override(&s.APIBase, c.APIBase)
	overrideDuration(&s.Timeout, c.Timeout)
	overrideDuration(&s.RecheckDelay, c.RecheckDelay)
	override(&s.TelemetryURL, c.Stream.URL)
	if c.Stream.MaxLines != 0 {
		s.MaxLines = c.Stream.MaxLines
	}
	overrideDuration(&s.ConnectTimeout, c.Stream.ConnectTimeout)
	override(&s.CallbackListen, c.Callback.Listen)
	override(&s.CallbackPath, c.Callback.Path)
	override(&s.LogLevel, c.Log.Level)
	override(&s.LogFile, c.Log.File)

	a := c.Archive
	s.Archive.Enabled = a.Enabled
	override(&s.Archive.Dataset, a.Dataset)
	override(&s.Archive.Backend, a.Backend)
	override(&s.Archive.Path, a.Path)
	if a.BatchSize != 0 {
		s.Archive.BatchSize = a.BatchSize
	}
	if s.Archive.Backend == archive.BackendS3 {
		bucket, prefix := archive.ParseS3Path(a.Path)
		s.Archive.S3 = archive.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       a.Region,
			Endpoint:     a.Endpoint,
			UsePathStyle: a.S3PathStyle,
		}
	}

	s.Adapter = c.Adapter
}

// Validate checks the resolved settings.
func (s Settings) Validate() error {
	var errs []error

	if err := validateHTTPURL("api_base", s.APIBase); err != nil {
		errs = append(errs, err)
	}
	if s.TelemetryURL != "" {
		if err := validateHTTPURL("stream.url", s.TelemetryURL); err != nil {
			errs = append(errs, err)
		}
	}
	if s.MaxLines < 1 {
		errs = append(errs, fmt.Errorf("stream.max_lines must be >= 1, got %d", s.MaxLines))
	}
	if _, _, err := net.SplitHostPort(s.CallbackListen); err != nil {
		errs = append(errs, fmt.Errorf("callback.listen %q: %w", s.CallbackListen, err))
	}
	if !strings.HasPrefix(s.CallbackPath, "/") {
		errs = append(errs, fmt.Errorf("callback.path must start with /, got %q", s.CallbackPath))
	}
	if _, err := log.ParseLevel(s.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if s.Archive.Enabled {
		switch s.Archive.Backend {
		case archive.BackendFS:
			if s.Archive.Path == "" {
				errs = append(errs, errors.New("archive.path is required for the fs backend"))
			}
		case archive.BackendS3:
			if err := s.Archive.S3.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("archive: %w", err))
			}
		default:
			errs = append(errs, fmt.Errorf("archive.backend must be fs or s3, got %q", s.Archive.Backend))
		}
		if s.Archive.BatchSize < 1 {
			errs = append(errs, fmt.Errorf("archive.batch_size must be >= 1, got %d", s.Archive.BatchSize))
		}
	}

	switch s.Adapter.Type {
	case AdapterNone:
	case AdapterWebhook, AdapterRedis:
		if s.Adapter.URL == "" {
			errs = append(errs, fmt.Errorf("adapter.url is required for adapter type %q", s.Adapter.Type))
		}
		if s.Adapter.Retries != nil && *s.Adapter.Retries < 0 {
			errs = append(errs, fmt.Errorf("adapter.retries must be >= 0, got %d", *s.Adapter.Retries))
		}
	default:
		errs = append(errs, fmt.Errorf("adapter.type must be webhook or redis, got %q", s.Adapter.Type))
	}

	return errors.Join(errs...)
}

// WebhookConfig converts the adapter settings for the webhook adapter.
func (s Settings) WebhookConfig() webhook.Config {
	cfg := webhook.Config{
		URL:     s.Adapter.URL,
		Headers: s.Adapter.Headers,
		Timeout: s.Adapter.Timeout.Duration,
		Retries: webhook.DefaultRetries,
	}
	if s.Adapter.Retries != nil {
		cfg.Retries = *s.Adapter.Retries
	}
	return cfg
}

// RedisConfig converts the adapter settings for the Redis adapter.
func (s Settings) RedisConfig() redis.Config {
	cfg := redis.Config{
		URL:     s.Adapter.URL,
		Channel: s.Adapter.Channel,
		Timeout: s.Adapter.Timeout.Duration,
		Retries: redis.DefaultRetries,
	}
	if s.Adapter.Retries != nil {
		cfg.Retries = *s.Adapter.Retries
	}
	return cfg
}

// StreamSource returns the archive partition name for the stream address.
func (s Settings) StreamSource() string {
	u, err := url.Parse(s.TelemetryURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q: %w", field, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s %q: must be an absolute http or https URL", field, raw)
	}
	return nil
}

func override(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func overrideDuration(dst *time.Duration, d Duration) {
	if d.Duration != 0 {
		*dst = d.Duration
	}
}
