package cmd

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/fleetview/cli/render"
	"github.com/pithecene-io/fleetview/cli/tui"
	"github.com/pithecene-io/fleetview/stream"
)

// LineEvent is one telemetry line as printed by the stream command.
type LineEvent struct {
	Line       string    `json:"line" yaml:"line"`
	ReceivedAt time.Time `json:"received_at" yaml:"received_at"`
}

// StreamCommand returns the stream command.
func StreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Follow the live telemetry stream",
		Flags: append(OutputFlags(),
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Print session counters when the stream ends",
			},
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "Stop following after this long (0 follows until interrupted)",
			},
		),
		Action: streamAction,
	}
}

func streamAction(c *cli.Context) error {
	if c.Bool("tui") {
		return streamTUI(c)
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

	address := e.settings.TelemetryURL
	if address == "" {
		e.logger.Debug("no telemetry stream configured", nil)
		return nil
	}

	ctx, stop := signalContext(c.Context)
	defer stop()
	if d := c.Duration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	printLine := func(line string) {
		if err := r.Record(LineEvent{Line: line, ReceivedAt: time.Now().UTC()}, line); err != nil {
			e.logger.Warn("write line failed", map[string]any{"error": err.Error()})
		}
	}
	v, err := e.viewer(ctx, printLine, nil)
	if err != nil {
		return err
	}

	h := v.Activate(ctx, address)
	e.sugar.Infof("following telemetry stream at %s", address)
	// an interrupt or --duration ending the stream is not a failure
	var unavailable bool
	select {
	case <-h.Done():
		unavailable = ctx.Err() == nil && h.Snapshot().Unavailable
	case <-ctx.Done():
	}
	_ = h.Deactivate() // archive failures are logged by the handle
	e.sugar.Debugf("telemetry stream ended after %d messages", e.metrics.Snapshot().StreamMessages)

	if c.Bool("stats") {
		if err := r.Render(e.metrics.Snapshot()); err != nil {
			return err
		}
	}
	if unavailable {
		return cli.Exit("telemetry service unavailable", exitFailure)
	}
	return nil
}

func streamTUI(c *cli.Context) error {
	e, err := newEnv(c, surfaceTUI)
	if err != nil {
		return err
	}
	defer e.Close()

	address := e.settings.TelemetryURL
	if address == "" {
		return nil
	}

	ctx, stop := signalContext(c.Context)
	defer stop()

	snaps := tui.NewMailbox[stream.Snapshot]()
	v, err := e.viewer(ctx, nil, snaps.Push)
	if err != nil {
		return err
	}
	h := v.Activate(ctx, address)
	defer func() { _ = h.Deactivate() }()

	return tui.RunStream(h.Snapshot(), snaps.C())
}
