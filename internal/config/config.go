// Package config provides configuration management for desktop-shell.
//
// Values are layered, lowest precedence first: DefaultConfig, an optional
// YAML file, DESKTOP_SHELL_* environment variables, then command-line flags.
package config

import "time"

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "DESKTOP_SHELL"

// Config holds all configuration options for the shell.
type Config struct {
	// Backend launch
	Interpreter string            `json:"interpreter" yaml:"interpreter" split_words:"true"` // empty = platform default
	Script      string            `json:"script" yaml:"script" split_words:"true"`
	Args        []string          `json:"args" yaml:"args" split_words:"true"`
	WorkDir     string            `json:"work_dir" yaml:"work_dir" split_words:"true"`
	Env         map[string]string `json:"env" yaml:"env" split_words:"true"`

	// Backend lifecycle
	ReadyURL     string        `json:"ready_url" yaml:"ready_url" split_words:"true"` // empty = no readiness probe
	StartTimeout time.Duration `json:"start_timeout" yaml:"start_timeout" split_words:"true"`
	StopTimeout  time.Duration `json:"stop_timeout" yaml:"stop_timeout" split_words:"true"`

	// Restart policy
	MaxRestarts     int           `json:"max_restarts" yaml:"max_restarts" split_words:"true"` // 0 = never restart
	BackoffInitial  time.Duration `json:"backoff_initial" yaml:"backoff_initial" split_words:"true"`
	BackoffMax      time.Duration `json:"backoff_max" yaml:"backoff_max" split_words:"true"`
	BackoffMultiply float64       `json:"backoff_multiply" yaml:"backoff_multiply" split_words:"true"`

	// Observability
	ListenAddr string `json:"listen_addr" yaml:"listen_addr" split_words:"true"` // empty = no HTTP server
	Verbose    bool   `json:"verbose" yaml:"verbose" split_words:"true"`
	LogFormat  string `json:"log_format" yaml:"log_format" split_words:"true"` // json, text
	LogLevel   string `json:"log_level" yaml:"log_level" split_words:"true"`
	LogFile    string `json:"log_file" yaml:"log_file" split_words:"true"`

	// Dashboard
	TUIEnabled bool `json:"tui" yaml:"tui" split_words:"true"`

	// Diagnostic modes, command line only
	PrintCmd      bool   `json:"-" yaml:"-" ignored:"true"`
	SkipPreflight bool   `json:"skip_preflight" yaml:"skip_preflight" split_words:"true"`
	ShowVersion   bool   `json:"-" yaml:"-" ignored:"true"`
	ConfigFile    string `json:"-" yaml:"-" ignored:"true"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Backend
		Script: "backend/main.py",

		// Lifecycle
		StartTimeout: 30 * time.Second,
		StopTimeout:  5 * time.Second,

		// Restart policy
		MaxRestarts:     0,
		BackoffInitial:  250 * time.Millisecond,
		BackoffMax:      5 * time.Second,
		BackoffMultiply: 1.7,

		// Observability
		ListenAddr: "127.0.0.1:17091",
		Verbose:    false,
		LogFormat:  "json",
		LogLevel:   "info",

		// Dashboard (enabled by default, like a desktop window)
		TUIEnabled: true,
	}
}

// Load builds a Config from all sources. args are the command-line
// arguments without the program name.
func Load(args []string) (*Config, error) {
	// The file named by -config sits below env and flags, so flags are
	// scanned once up front just to find it.
	scan := DefaultConfig()
	if err := ParseArgs(scan, args); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if scan.ConfigFile != "" {
		if err := LoadFile(cfg, scan.ConfigFile); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := ParseArgs(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
