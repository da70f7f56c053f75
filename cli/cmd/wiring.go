package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/fleetview/adapter"
	"github.com/pithecene-io/fleetview/adapter/redis"
	"github.com/pithecene-io/fleetview/adapter/webhook"
	"github.com/pithecene-io/fleetview/api"
	"github.com/pithecene-io/fleetview/archive"
	"github.com/pithecene-io/fleetview/auth"
	"github.com/pithecene-io/fleetview/callback"
	"github.com/pithecene-io/fleetview/cli/config"
	"github.com/pithecene-io/fleetview/log"
	"github.com/pithecene-io/fleetview/metrics"
	"github.com/pithecene-io/fleetview/sse"
	"github.com/pithecene-io/fleetview/stream"
	"github.com/pithecene-io/fleetview/types"
)

// Log surfaces. TUI mode must not write to the terminal it draws on.
const (
	surfaceCLI = "cli"
	surfaceTUI = "tui"
)

// loadSettings resolves defaults, the config file, the environment and the
// global flags. Failures exit with exitConfigError.
func loadSettings(c *cli.Context) (config.Settings, error) {
	var file *config.Config
	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return config.Settings{}, cli.Exit(err.Error(), exitConfigError)
		}
		file = cfg
	}

	e, err := config.ParseEnv()
	if err != nil {
		return config.Settings{}, cli.Exit(err.Error(), exitConfigError)
	}

	s, err := config.Resolve(file, e, config.Flags{
		APIBase:      c.String("api-base"),
		TelemetryURL: c.String("telemetry-url"),
		LogLevel:     c.String("log-level"),
	})
	if err != nil {
		return config.Settings{}, cli.Exit(fmt.Sprintf("invalid configuration:\n%v", err), exitConfigError)
	}
	return s, nil
}

// env is the per-invocation wiring built from Settings. Each command builds
// the components it needs from it and calls Close on the way out.
type env struct {
	settings config.Settings
	meta     *types.SessionMeta
	logger   *log.Logger
	sugar    *log.SugaredLogger // progress lines
	metrics  *metrics.Collector
	api      *api.Client

	notifier *adapter.Notifier
	errOut   io.Writer
	logFile  io.Closer
}

func newEnv(c *cli.Context, surface string) (*env, error) {
	s, err := loadSettings(c)
	if err != nil {
		return nil, err
	}

	meta := types.NewSessionMeta(surface)
	level, _ := log.ParseLevel(s.LogLevel) // validated by Resolve

	e := &env{settings: s, meta: meta, errOut: c.App.ErrWriter}
	if e.errOut == nil {
		e.errOut = os.Stderr
	}

	w := e.errOut
	switch {
	case s.LogFile != "":
		f, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("cannot open log file: %v", err), exitConfigError)
		}
		w, e.logFile = f, f
	case surface == surfaceTUI:
		w = io.Discard
	}
	e.logger = log.NewLoggerWithWriter(meta, level, w)
	e.sugar = e.logger.Sugar()
	e.metrics = metrics.NewCollector(meta.SessionID, s.APIBase)

	client, err := api.New(api.Config{BaseURL: s.APIBase, Timeout: s.Timeout})
	if err != nil {
		e.Close()
		return nil, cli.Exit(err.Error(), exitConfigError)
	}
	e.api = client

	if err := e.initNotifier(); err != nil {
		e.Close()
		return nil, cli.Exit(err.Error(), exitConfigError)
	}
	return e, nil
}

// initNotifier builds the session-change adapter, if one is configured.
func (e *env) initNotifier() error {
	var a adapter.Adapter
	switch e.settings.Adapter.Type {
	case config.AdapterNone:
		return nil
	case config.AdapterWebhook:
		w, err := webhook.New(e.settings.WebhookConfig())
		if err != nil {
			return fmt.Errorf("webhook adapter: %w", err)
		}
		a = w
	case config.AdapterRedis:
		r, err := redis.New(e.settings.RedisConfig())
		if err != nil {
			return fmt.Errorf("redis adapter: %w", err)
		}
		a = r
	default:
		return fmt.Errorf("unknown adapter type %q", e.settings.Adapter.Type)
	}
	e.notifier = adapter.NewNotifier(a, e.meta, e.settings.APIBase, e.logger, e.metrics)
	e.logger.Debug("notification adapter configured", map[string]any{"type": e.settings.Adapter.Type})
	return nil
}

// coordinator builds the auth coordinator. Nil arguments select the API
// client and a printing navigator. The notifier, when configured, is
// registered ahead of extra observers.
func (e *env) coordinator(backend auth.Backend, nav auth.Navigator, observers ...auth.Observer) *auth.Coordinator {
	if backend == nil {
		backend = e.api
	}
	if nav == nil {
		nav = auth.PrintNavigator{W: e.errOut}
	}
	opts := []auth.Option{
		auth.WithRecheckDelay(e.settings.RecheckDelay),
		auth.WithLogger(e.logger),
		auth.WithMetrics(e.metrics),
	}
	if e.notifier != nil {
		opts = append(opts, auth.WithObserver(e.notifier.Observe))
	}
	for _, o := range observers {
		opts = append(opts, auth.WithObserver(o))
	}
	return auth.New(backend, nav, opts...)
}

// callbackServer builds the loopback listener for coord.
func (e *env) callbackServer(coord callback.Reconciler) *callback.Server {
	return callback.New(coord, callback.Config{
		Listen: e.settings.CallbackListen,
		Path:   e.settings.CallbackPath,
		Logger: e.logger,
	})
}

// viewer builds the stream viewer. extra, when non-nil, sees every line
// ahead of the archive recorder.
func (e *env) viewer(ctx context.Context, extra func(string), observer func(stream.Snapshot)) (*stream.Viewer, error) {
	s := e.settings
	opts := []stream.ViewerOption{
		stream.WithCapacity(s.MaxLines),
		stream.WithLogger(e.logger),
		stream.WithMetrics(e.metrics),
		stream.WithObserver(observer),
	}

	var rec stream.Recorder
	if s.Archive.Enabled && s.TelemetryURL != "" {
		r, err := e.recorder(ctx)
		if err != nil {
			return nil, err
		}
		rec = r
	}
	if extra != nil || rec != nil {
		opts = append(opts, stream.WithRecorder(teeRecorder{line: extra, next: rec}))
	}

	dialer := stream.SSEDialer{Client: sse.NewClient(nil, s.ConnectTimeout)}
	return stream.NewViewer(dialer, opts...), nil
}

func (e *env) recorder(ctx context.Context) (*archive.Recorder, error) {
	a := e.settings.Archive
	factory := archive.FSFactory(a.Path)
	if a.Backend == archive.BackendS3 {
		f, err := archive.S3Factory(ctx, a.S3)
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("archive: %v", err), exitConfigError)
		}
		factory = f
	}
	ds, err := archive.NewDataset(a.Dataset, factory)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("archive: %v", err), exitConfigError)
	}
	return archive.NewRecorder(ds, archive.RecorderConfig{
		Source:    e.settings.StreamSource(),
		SessionID: e.meta.SessionID,
		BatchSize: a.BatchSize,
		Logger:    e.logger,
		Metrics:   e.metrics,
	}), nil
}

// Close drains pending notifications and releases the log sink.
func (e *env) Close() {
	if e.notifier != nil {
		if err := e.notifier.Close(); err != nil {
			e.logger.Warn("notification adapter close failed", map[string]any{"error": err.Error()})
		}
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
	if e.logFile != nil {
		_ = e.logFile.Close()
	}
}

// teeRecorder hands each line to a callback and then to the archive.
type teeRecorder struct {
	line func(string)
	next stream.Recorder
}

func (t teeRecorder) Record(line string) {
	if t.line != nil {
		t.line(line)
	}
	if t.next != nil {
		t.next.Record(line)
	}
}

func (t teeRecorder) Close() error {
	if t.next != nil {
		return t.next.Close()
	}
	return nil
}
