package app

import (
	"errors"
	"fmt"

	"github.com/vk/bozogo/internal/stage"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	BuildFile   string // build manifest
	Target      stage.Phase
	Environment string
	Machine     string
	EnvFiles    []string

	LogFormat  string
	LogLevel   string
	StatusPort int

	// DumpConfig, when set, names a configuration file whose snapshot is
	// printed instead of running a build.
	DumpConfig string
	// Query narrows DumpConfig to the value at a dotted path.
	Query string
	// MaxConfigDepth limits group nesting in configuration files. Zero
	// means unlimited.
	MaxConfigDepth int
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.BuildFile == "" && cfg.DumpConfig == "" {
		return nil, errors.New("BuildFile is a required configuration field and cannot be empty")
	}
	if cfg.Target == "" {
		cfg.Target = stage.Publish
	}
	if _, err := stage.ParsePhase(string(cfg.Target)); err != nil {
		return nil, err
	}
	if cfg.Environment == "" {
		cfg.Environment = "dev"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format %q: expected text or json", cfg.LogFormat)
	}
	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return nil, fmt.Errorf("invalid status port %d", cfg.StatusPort)
	}
	if cfg.MaxConfigDepth < 0 {
		return nil, fmt.Errorf("invalid max config depth %d", cfg.MaxConfigDepth)
	}
	if cfg.Query != "" && cfg.DumpConfig == "" {
		return nil, errors.New("a query requires a config file to dump")
	}
	return &cfg, nil
}
