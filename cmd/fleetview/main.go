// Package main provides the fleetview CLI entrypoint.
//
// Usage:
//
//	fleetview [global options] <command> [options]
//
// Exit codes:
//   - 0: success
//   - 1: user-visible failure (login failed, backend or stream unavailable)
//   - 2: invalid configuration
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/fleetview/cli/cmd"
	"github.com/pithecene-io/fleetview/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "fleetview",
		Usage:          "Terminal front end for the fleet telematics service",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Flags:          cmd.GlobalFlags(),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.StatusCommand(),
			cmd.LoginCommand(),
			cmd.ReconcileCommand(),
			cmd.HealthCommand(),
			cmd.StreamCommand(),
			cmd.UICommand(),
			cmd.VersionCommand(commit),
		},
	}
}

// exitErrHandler prints the error and exits with the code carried by
// cli.Exit, or 1 for anything else.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(report(os.Stderr, err))
}

// report writes the user-facing message for err and returns the exit code.
func report(w io.Writer, err error) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		// cli.Exit("", N).Error() is "exit status N"; nothing to show
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(w, msg)
		}
		return code
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	return 1
}
