// Package cmd provides the CLI commands for the fleetview binary.
package cmd

import "github.com/urfave/cli/v2"

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitConfigError = 2
)

// Global flags, resolved into config.Settings by loadSettings.
var (
	// ConfigFlag points at an optional YAML config file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to a YAML config file",
		EnvVars: []string{"FLEETVIEW_CONFIG"},
	}

	// APIBaseFlag overrides the backend base address.
	APIBaseFlag = &cli.StringFlag{
		Name:  "api-base",
		Usage: "Backend base address (default http://localhost:8000/api)",
	}

	// TelemetryURLFlag overrides the telemetry stream address.
	TelemetryURLFlag = &cli.StringFlag{
		Name:  "telemetry-url",
		Usage: "Server-sent events address of the telemetry stream",
	}

	// LogLevelFlag overrides log.level.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
	}
)

// GlobalFlags returns the flags shared by every command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		APIBaseFlag,
		TelemetryURLFlag,
		LogLevelFlag,
	}
}

// Shared output flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (status, stream only)",
	}
)

// OutputFlags returns the output flags for commands without a TUI.
// Includes --tui so those commands can reject it with an explicit message
// instead of a generic "flag not defined" error.
func OutputFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// rejectTUI fails when --tui was given to a command without a TUI.
func rejectTUI(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for "+c.Command.Name+" command", exitFailure)
	}
	return nil
}
