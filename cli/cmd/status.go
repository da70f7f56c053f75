package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/fleetview/api"
	"github.com/pithecene-io/fleetview/auth"
	"github.com/pithecene-io/fleetview/cli/render"
	"github.com/pithecene-io/fleetview/cli/tui"
)

// StatusResponse is the output of the status command.
type StatusResponse struct {
	APIBase string    `json:"api_base" yaml:"api_base"`
	Session auth.View `json:"session" yaml:"session"`
	// Diagnostics is the raw status payload, shown with --verbose.
	Diagnostics *Diagnostics `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Diagnostics are the backend's OAuth configuration hints.
type Diagnostics struct {
	AuthBase        string `json:"auth_base,omitempty" yaml:"auth_base,omitempty"`
	RedirectURI     string `json:"redirect_uri,omitempty" yaml:"redirect_uri,omitempty"`
	ClientIDSet     *bool  `json:"client_id_set,omitempty" yaml:"client_id_set,omitempty"`
	ClientSecretSet *bool  `json:"client_secret_set,omitempty" yaml:"client_secret_set,omitempty"`
	Scopes          string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
}

func diagnosticsFrom(s *api.AuthStatus) *Diagnostics {
	if s == nil {
		return nil
	}
	return &Diagnostics{
		AuthBase:        s.AuthBase,
		RedirectURI:     s.RedirectURI,
		ClientIDSet:     s.ClientIDSet,
		ClientSecretSet: s.ClientSecretSet,
		Scopes:          s.Scopes,
	}
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the current session state",
		Flags: append(OutputFlags(),
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Include the backend's OAuth diagnostics",
			},
		),
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	if c.Bool("tui") {
		return statusTUI(c)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	e, err := newEnv(c, surfaceCLI)
	if err != nil {
		return err
	}
	defer e.Close()

	backend := &recordingBackend{Backend: e.api}
	coord := e.coordinator(backend, nil)
	defer coord.Close()

	state := coord.CheckStatus(c.Context)
	status, statusErr := backend.last()
	if statusErr != nil {
		return cli.Exit(fmt.Sprintf("status check failed: %v", statusErr), exitFailure)
	}

	resp := StatusResponse{
		APIBase: e.settings.APIBase,
		Session: state.View(),
	}
	if c.Bool("verbose") {
		resp.Diagnostics = diagnosticsFrom(status)
	}
	return r.Render(resp)
}

// statusTUI runs the interactive session pane with a callback listener so
// a login started from the pane can complete.
func statusTUI(c *cli.Context) error {
	e, err := newEnv(c, surfaceTUI)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signalContext(c.Context)
	defer stop()

	states := tui.NewMailbox[auth.State]()
	coord := e.coordinator(nil, auth.NewBrowserNavigator(), states.Push)
	defer coord.Close()

	serveCallbacks(ctx, e, coord)
	return tui.RunAuth(ctx, coord, states.C())
}

// recordingBackend keeps the last status payload and error so the status
// command can report what the coordinator swallowed.
type recordingBackend struct {
	auth.Backend

	mu     sync.Mutex
	status *api.AuthStatus
	err    error
}

func (b *recordingBackend) AuthStatus(ctx context.Context) (*api.AuthStatus, error) {
	s, err := b.Backend.AuthStatus(ctx)
	b.mu.Lock()
	b.status, b.err = s, err
	b.mu.Unlock()
	return s, err
}

func (b *recordingBackend) last() (*api.AuthStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status, b.err
}
