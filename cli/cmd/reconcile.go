package cmd

import (
	"fmt"
	"net/url"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/fleetview/auth"
	"github.com/pithecene-io/fleetview/cli/render"
)

// ReconcileResponse is the output of the reconcile command.
type ReconcileResponse struct {
	ReturnURL  string    `json:"return_url" yaml:"return_url"`
	CleanedURL string    `json:"cleaned_url" yaml:"cleaned_url"`
	Changed    bool      `json:"changed" yaml:"changed"`
	Session    auth.View `json:"session" yaml:"session"`
}

// ReconcileCommand returns the reconcile command. It applies a return
// address pasted by hand, for when the callback listener cannot be reached.
func ReconcileCommand() *cli.Command {
	return &cli.Command{
		Name:      "reconcile",
		Usage:     "Apply an authorization return address (success or error parameters)",
		ArgsUsage: "<return-url>",
		Flags:     OutputFlags(),
		Action:    reconcileAction,
	}
}

func reconcileAction(c *cli.Context) error {
	if err := rejectTUI(c); err != nil {
		return err
	}
	if c.NArg() != 1 {
		return cli.Exit("reconcile requires exactly one <return-url> argument", exitFailure)
	}
	returnURL, err := url.Parse(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid return url: %v", err), exitFailure)
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

	coord := e.coordinator(nil, nil)
	defer coord.Close()

	cleaned := coord.Reconcile(returnURL)
	// a success parameter scheduled the confirming status check
	coord.Wait()
	state := coord.State()

	if err := r.Render(ReconcileResponse{
		ReturnURL:  returnURL.String(),
		CleanedURL: cleaned.String(),
		Changed:    cleaned != returnURL,
		Session:    state.View(),
	}); err != nil {
		return err
	}
	if msg, failed := state.ErrorMessage(); failed {
		return cli.Exit(fmt.Sprintf("login failed: %s", msg), exitFailure)
	}
	return nil
}
