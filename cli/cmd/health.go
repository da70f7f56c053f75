package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/fleetview/cli/render"
)

// HealthResponse is the output of the health command.
type HealthResponse struct {
	APIBase string `json:"api_base" yaml:"api_base"`
	Status  string `json:"status" yaml:"status"`
}

// HealthCommand returns the health command.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Probe the backend health endpoint",
		Flags:  OutputFlags(),
		Action: healthAction,
	}
}

func healthAction(c *cli.Context) error {
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

	resp, err := e.api.Health(c.Context)
	if err != nil {
		e.logger.Warn("health probe failed", map[string]any{"error": err.Error()})
		return cli.Exit(fmt.Sprintf("backend unreachable: %v", err), exitFailure)
	}
	return r.Render(HealthResponse{APIBase: e.settings.APIBase, Status: resp.Status})
}
