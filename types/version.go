package types

// Version is the canonical fleetview version.
// Reported by `fleetview version` and `--version`.
const Version = "0.3.0"
