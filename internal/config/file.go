package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// fileConfig mirrors Config for YAML decoding. Pointer fields tell a key
// that is absent apart from one set to its zero value.
type fileConfig struct {
	Interpreter *string           `yaml:"interpreter"`
	Script      *string           `yaml:"script"`
	Args        []string          `yaml:"args"`
	WorkDir     *string           `yaml:"work_dir"`
	Env         map[string]string `yaml:"env"`

	ReadyURL     *string `yaml:"ready_url"`
	StartTimeout *string `yaml:"start_timeout"`
	StopTimeout  *string `yaml:"stop_timeout"`

	MaxRestarts     *int     `yaml:"max_restarts"`
	BackoffInitial  *string  `yaml:"backoff_initial"`
	BackoffMax      *string  `yaml:"backoff_max"`
	BackoffMultiply *float64 `yaml:"backoff_multiply"`

	ListenAddr *string `yaml:"listen_addr"`
	Verbose    *bool   `yaml:"verbose"`
	LogFormat  *string `yaml:"log_format"`
	LogLevel   *string `yaml:"log_level"`
	LogFile    *string `yaml:"log_file"`

	TUIEnabled    *bool `yaml:"tui"`
	SkipPreflight *bool `yaml:"skip_preflight"`
}

// LoadFile reads a YAML configuration file and applies the keys it sets
// on top of cfg. Unknown keys are rejected.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := applyYAML(cfg, data); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

func applyYAML(cfg *Config, data []byte) error {
	var fc fileConfig
	if err := yaml.UnmarshalWithOptions(data, &fc, yaml.Strict()); err != nil {
		return err
	}

	setString(&cfg.Interpreter, fc.Interpreter)
	setString(&cfg.Script, fc.Script)
	if fc.Args != nil {
		cfg.Args = fc.Args
	}
	setString(&cfg.WorkDir, fc.WorkDir)
	if len(fc.Env) > 0 {
		if cfg.Env == nil {
			cfg.Env = make(map[string]string, len(fc.Env))
		}
		for k, v := range fc.Env {
			cfg.Env[k] = v
		}
	}

	setString(&cfg.ReadyURL, fc.ReadyURL)
	durations := []struct {
		field string
		dst   *time.Duration
		src   *string
	}{
		{"start_timeout", &cfg.StartTimeout, fc.StartTimeout},
		{"stop_timeout", &cfg.StopTimeout, fc.StopTimeout},
		{"backoff_initial", &cfg.BackoffInitial, fc.BackoffInitial},
		{"backoff_max", &cfg.BackoffMax, fc.BackoffMax},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("%s: %w", d.field, err)
		}
		*d.dst = v
	}

	if fc.MaxRestarts != nil {
		cfg.MaxRestarts = *fc.MaxRestarts
	}
	if fc.BackoffMultiply != nil {
		cfg.BackoffMultiply = *fc.BackoffMultiply
	}

	setString(&cfg.ListenAddr, fc.ListenAddr)
	setBool(&cfg.Verbose, fc.Verbose)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFile, fc.LogFile)
	setBool(&cfg.TUIEnabled, fc.TUIEnabled)
	setBool(&cfg.SkipPreflight, fc.SkipPreflight)

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
