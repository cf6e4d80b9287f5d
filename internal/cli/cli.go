package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/vk/bozogo/internal/app"
	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/stage"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Options are the command-line flags.
type Options struct {
	File           string   `short:"f" long:"file" description:"Build manifest to run" default:"build.hcl"`
	Environment    string   `short:"e" long:"environment" description:"Environment name exposed to configuration" default:"dev"`
	Machine        string   `short:"m" long:"machine" description:"Machine name (defaults to the hostname)"`
	EnvFiles       []string `long:"env-file" description:"Env file to load before the build; may be repeated"`
	LogLevel       string   `long:"log-level" description:"Logging level" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info"`
	LogFormat      string   `long:"log-format" description:"Log output format" choice:"text" choice:"json" default:"text"`
	StatusPort     int      `long:"status-port" description:"Port for the status server; 0 disables it" default:"0"`
	MaxConfigDepth int      `long:"max-config-depth" description:"Maximum group nesting in configuration files; 0 is unlimited" default:"0"`
	DumpConfig     string   `long:"dump-config" description:"Print the configuration loaded from FILE as YAML and exit" value-name:"FILE"`
	Query          string   `long:"query" description:"With --dump-config, print only the value at a dotted PATH" value-name:"PATH"`

	Args struct {
		Target string `positional-arg-name:"TARGET" description:"Last phase to run: dependencies, compile, package, test or publish"`
	} `positional-args:"yes"`
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var opts Options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "bozogo"
	parser.Usage = "[OPTIONS] [TARGET]"

	rest, err := parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(output, flagsErr.Message)
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: builderr.ExitConfiguration, Message: err.Error()}
	}
	if len(rest) > 0 {
		return nil, false, &ExitError{
			Code:    builderr.ExitConfiguration,
			Message: fmt.Sprintf("unexpected arguments: %s", strings.Join(rest, " ")),
		}
	}
	slog.Debug("Arguments parsed successfully.", "file", opts.File, "target", opts.Args.Target)

	target := stage.Publish
	if opts.Args.Target != "" {
		p, err := stage.ParsePhase(opts.Args.Target)
		if err != nil {
			return nil, false, &ExitError{Code: builderr.ExitConfiguration, Message: err.Error()}
		}
		target = p
	}

	config, err := app.NewConfig(app.Config{
		BuildFile:      opts.File,
		Target:         target,
		Environment:    opts.Environment,
		Machine:        opts.Machine,
		EnvFiles:       opts.EnvFiles,
		LogFormat:      opts.LogFormat,
		LogLevel:       opts.LogLevel,
		StatusPort:     opts.StatusPort,
		DumpConfig:     opts.DumpConfig,
		Query:          opts.Query,
		MaxConfigDepth: opts.MaxConfigDepth,
	})
	if err != nil {
		return nil, false, &ExitError{Code: builderr.ExitConfiguration, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
