package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// ApplyEnv overrides cfg with DESKTOP_SHELL_* environment variables named
// after the fields, e.g. DESKTOP_SHELL_READY_URL or DESKTOP_SHELL_TUI_ENABLED.
// Variables that are not set leave the current value untouched. Lists
// are comma separated and maps use KEY:VALUE pairs, e.g.
// DESKTOP_SHELL_ENV=PYTHONUNBUFFERED:1,APP_MODE:desktop.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}
