package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds the environment overrides. Empty values do not override.
type Env struct {
	APIBase        string `env:"FLEETVIEW_API_BASE"`
	TelemetryURL   string `env:"FLEETVIEW_TELEMETRY_URL"`
	CallbackListen string `env:"FLEETVIEW_CALLBACK_LISTEN"`
	LogLevel       string `env:"FLEETVIEW_LOG_LEVEL"`
	LogFile        string `env:"FLEETVIEW_LOG_FILE"`
	AdapterURL     string `env:"FLEETVIEW_ADAPTER_URL"`
}

// ParseEnv reads the environment overrides.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}
