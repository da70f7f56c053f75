package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/fleetview/auth"
	"github.com/pithecene-io/fleetview/cli/render"
	"github.com/pithecene-io/fleetview/cli/tui"
	"github.com/pithecene-io/fleetview/stream"
)

// UICommand returns the ui command: the session pane, the telemetry pane
// and a backend health line in one screen.
func UICommand() *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Open the interactive dashboard",
		Flags: []cli.Flag{
			FormatFlag,
			NoColorFlag,
			&cli.BoolFlag{
				Name:  "no-stats",
				Usage: "Do not print session counters on exit",
			},
		},
		Action: uiAction,
	}
}

func uiAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	e, err := newEnv(c, surfaceTUI)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signalContext(c.Context)
	defer stop()

	states := tui.NewMailbox[auth.State]()
	coord := e.coordinator(nil, auth.NewBrowserNavigator(), states.Push)
	serveCallbacks(ctx, e, coord)

	snaps := tui.NewMailbox[stream.Snapshot]()
	v, err := e.viewer(ctx, nil, snaps.Push)
	if err != nil {
		coord.Close()
		return err
	}
	h := v.Activate(ctx, e.settings.TelemetryURL)

	runErr := tui.RunApp(ctx, tui.AppConfig{
		APIBase:        e.settings.APIBase,
		Health:         e.api.Health,
		Session:        coord,
		SessionUpdates: states.C(),
		Stream:         h.Snapshot(),
		StreamUpdates:  snaps.C(),
	})

	// unmount: stop the stream, drop any pending re-check
	_ = h.Deactivate()
	coord.Close()
	stop()

	if runErr != nil {
		return runErr
	}
	if c.Bool("no-stats") {
		return nil
	}
	return r.Render(e.metrics.Snapshot())
}
