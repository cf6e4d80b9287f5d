package builderr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOutsideGroup is returned when a value is set while no group is open.
	ErrOutsideGroup = errors.New("value set outside any group")
	// ErrKeyConflict is returned when a key is reused for a different kind of
	// entry (a value where a group exists, or a group where a value exists).
	ErrKeyConflict = errors.New("key already used")
)

// Kind classifies a failure for logging and exit-code purposes.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindCommand       Kind = "command"
	KindDefect        Kind = "defect"
)

// Process exit codes reported for each failure kind.
const (
	ExitOK            = 0
	ExitDefect        = 1
	ExitConfiguration = 2
	ExitCommand       = 3
)

// ConfigurationError reports malformed or missing configuration input.
//
// When produced by attribute resolution, Walked, Missing and Known describe
// exactly where the walk stopped so the author can fix a typo without
// re-running with tracing enabled.
type ConfigurationError struct {
	// Walked is the sequence of segments resolved before the failure.
	Walked []string
	// Missing is the segment that could not be resolved.
	Missing string
	// Known lists every key present at the level where resolution stopped,
	// in insertion order.
	Known []string
	// Reason is a free-form message used when the error does not come from
	// resolution.
	Reason string
	// Err is an optional underlying cause.
	Err error
}

// Configf builds a ConfigurationError with a formatted reason.
func Configf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// WrapConfig builds a ConfigurationError around an underlying cause.
func WrapConfig(err error, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// Location renders the walked path the way it appears in messages: "Root"
// when nothing was walked, otherwise the dotted segments.
func (e *ConfigurationError) Location() string {
	if len(e.Walked) == 0 {
		return "Root"
	}
	return strings.Join(e.Walked, ".")
}

func (e *ConfigurationError) Error() string {
	if e.Missing != "" {
		return fmt.Sprintf("%s does not contain a value or group called '%s' - known keys: %s",
			e.Location(), e.Missing, strings.Join(e.Known, ", "))
	}
	if e.Err != nil {
		if e.Reason == "" {
			return e.Err.Error()
		}
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// CommandError reports an external command that completed with a non-zero
// exit status, or that could not be started at all.
type CommandError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	cmdline := strings.TrimSpace(e.Name + " " + strings.Join(e.Args, " "))
	msg := fmt.Sprintf("command %q exited with code %d", cmdline, e.ExitCode)
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// Classify reports the kind of a failure.
func Classify(err error) Kind {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return KindConfiguration
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return KindCommand
	}
	return KindDefect
}

// ExitCode maps a run error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch Classify(err) {
	case KindConfiguration:
		return ExitConfiguration
	case KindCommand:
		return ExitCommand
	default:
		return ExitDefect
	}
}
