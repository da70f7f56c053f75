// Package callback serves the loopback address the backend redirects the
// browser to at the end of an OAuth round trip.
//
// Each request is one return trip. When it carries a result the session
// coordinator reconciles it and the browser is sent to the cleaned address,
// so reloading the page does not reconcile twice.
package callback

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/pithecene-io/fleetview/auth"
	"github.com/pithecene-io/fleetview/log"
)

// Defaults for the listener.
const (
	DefaultListen = "127.0.0.1:5173"
	DefaultPath   = "/auth"
)

const shutdownTimeout = 5 * time.Second

// Reconciler is the part of the coordinator the listener drives.
type Reconciler interface {
	Reconcile(returnURL *url.URL) *url.URL
	State() auth.State
}

// Result is one reconciled return trip.
type Result struct {
	// Error is the callback's error text; empty on success.
	Error string
	At    time.Time
}

// Config configures a Server.
type Config struct {
	Listen string
	Path   string
	Logger *log.Logger
}

// Server is the loopback callback listener.
type Server struct {
	path    string
	listen  string
	coord   Reconciler
	logger  *log.Logger
	results chan Result
	srv     *http.Server
	ln      net.Listener
}

// New creates a listener for coord. It does not bind until Listen.
func New(coord Reconciler, cfg Config) *Server {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	s := &Server{
		path:    cfg.Path,
		listen:  cfg.Listen,
		coord:   coord,
		logger:  log.OrNop(cfg.Logger).Named("callback"),
		results: make(chan Result, 8),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+cfg.Path, s.handleReturn)
	s.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Results delivers one value per reconciled return trip. Values are dropped
// when nobody reads.
func (s *Server) Results() <-chan Result {
	return s.results
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.listen, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// URL returns the callback address the backend should redirect to.
func (s *Server) URL() string {
	host := s.listen
	if a := s.Addr(); a != nil {
		host = a.String()
	}
	return "http://" + host + s.path
}

// Serve runs the listener until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	serveErr := make(chan error, 1)
	s.logger.Info("callback listener started", map[string]any{"url": s.URL()})
	go func() {
		serveErr <- s.srv.Serve(s.ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown callback listener: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve callback listener: %w", err)
	}
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	returnURL := &url.URL{
		Scheme:   "http",
		Host:     r.Host,
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
	}

	cleaned := s.coord.Reconcile(returnURL)
	if cleaned != returnURL {
		res := Result{At: time.Now()}
		if returnURL.Query().Has(auth.ParamError) {
			res.Error, _ = s.coord.State().ErrorMessage()
		}
		select {
		case s.results <- res:
		default:
			s.logger.Debug("callback result dropped", nil)
		}
		http.Redirect(w, r, cleaned.RequestURI(), http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := statusPage.Execute(w, s.coord.State().View()); err != nil {
		s.logger.Warn("render status page", map[string]any{"error": err.Error()})
	}
}

var statusPage = template.Must(template.New("status").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>fleetview</title></head>
<body style="font-family: sans-serif; margin: 2rem">
{{- if eq .Phase "authenticated"}}
<h1>Signed in</h1>
<p>Token: <code>{{.TokenPreview}}</code></p>
{{- else if eq .Phase "error"}}
<h1>Sign-in failed</h1>
<p>{{.Error}}</p>
{{- else}}
<h1>Checking session</h1>
<p>Reload this page in a moment.</p>
{{- end}}
<p>You can close this window and return to the terminal.</p>
</body></html>
`))
