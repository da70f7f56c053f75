package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/fleetview/auth"
	"github.com/pithecene-io/fleetview/callback"
	"github.com/pithecene-io/fleetview/cli/render"
)

// DefaultLoginTimeout bounds how long login waits for the callback.
const DefaultLoginTimeout = 5 * time.Minute

// LoginCommand returns the login command.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in through the backend's OAuth provider",
		Flags: append(OutputFlags(),
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening a browser",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the authorization callback",
				Value: DefaultLoginTimeout,
			},
		),
		Action: loginAction,
	}
}

func loginAction(c *cli.Context) error {
	if err := rejectTUI(c); err != nil {
		return err
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

	ctx, stop := signalContext(c.Context)
	defer stop()

	var nav auth.Navigator = auth.NewBrowserNavigator()
	if c.Bool("no-browser") {
		nav = auth.PrintNavigator{W: c.App.ErrWriter}
	}
	coord := e.coordinator(nil, nav)
	defer coord.Close()

	srv := e.callbackServer(coord)
	if err := srv.Listen(); err != nil {
		return cli.Exit(fmt.Sprintf("callback listener: %v", err), exitFailure)
	}
	e.sugar.Debugf("callback listener bound to %s", srv.URL())
	serveCtx, stopServe := context.WithCancel(ctx)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(serveCtx) }()
	defer func() {
		stopServe()
		<-served
	}()

	if err := coord.BeginLogin(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("login failed: %v", err), exitFailure)
	}
	fmt.Fprintf(c.App.ErrWriter, "Waiting for the authorization callback on %s ...\n", srv.URL())

	res, err := awaitCallback(ctx, srv.Results(), c.Duration("timeout"))
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	e.sugar.Infof("authorization callback received at %s", res.At.Format(time.RFC3339))
	if res.Error != "" {
		return cli.Exit(fmt.Sprintf("login failed: %s", res.Error), exitFailure)
	}

	// the success callback scheduled the confirming status check
	coord.Wait()
	state := coord.State()
	if err := r.Render(StatusResponse{APIBase: e.settings.APIBase, Session: state.View()}); err != nil {
		return err
	}
	if state.Phase() != auth.PhaseAuthenticated {
		return cli.Exit("login was not confirmed by the backend", exitFailure)
	}
	return nil
}

var errLoginTimeout = errors.New("timed out waiting for the authorization callback")

func awaitCallback(ctx context.Context, results <-chan callback.Result, timeout time.Duration) (callback.Result, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-results:
		return res, nil
	case <-timer.C:
		return callback.Result{}, errLoginTimeout
	case <-ctx.Done():
		return callback.Result{}, fmt.Errorf("login interrupted: %w", ctx.Err())
	}
}

// serveCallbacks runs the callback listener until ctx ends. A bind failure
// is logged; the caller keeps running without return-trip handling.
func serveCallbacks(ctx context.Context, e *env, coord callback.Reconciler) *callback.Server {
	srv := e.callbackServer(coord)
	if err := srv.Listen(); err != nil {
		e.sugar.Warnf("callback listener unavailable on %s: %v", e.settings.CallbackListen, err)
		return nil
	}
	go func() {
		if err := srv.Serve(ctx); err != nil {
			e.logger.Error("callback listener stopped", map[string]any{"error": err.Error()})
		}
	}()
	return srv
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
