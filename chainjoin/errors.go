package chainjoin

import (
	"errors"
	"fmt"
)

// ErrStop may be returned by a result sink to end a run early. The
// pipeline treats it as a clean finish rather than a failure.
var ErrStop = errors.New("stop emitting results")

// InputFormatError reports a relation source that cannot be split into
// tuples of the configured width.
type InputFormatError struct {
	Source string // Relation name or file path
	Count  int    // Integers read before the failure
	Width  int    // Configured tuple width
	Line   int    // Line of the offending token, 0 when the problem is the total count
	Token  string // Offending token, empty for a trailing partial tuple
}

func (e *InputFormatError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("input format error in %s: line %d: %q is not an integer", e.Source, e.Line, e.Token)
	}
	return fmt.Sprintf("input format error in %s: %d integers is not a multiple of tuple width %d",
		e.Source, e.Count, e.Width)
}

// ConfigurationError reports a join chain that cannot be executed. It is
// raised while the chain is compiled, never during a scan.
type ConfigurationError struct {
	Stage    int    // Stage position, -1 when not tied to a stage
	Relation string // Relation or stage name involved, if any
	Reason   string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Stage >= 0 && e.Relation != "":
		return fmt.Sprintf("configuration error at stage %d (%s): %s", e.Stage, e.Relation, e.Reason)
	case e.Stage >= 0:
		return fmt.Sprintf("configuration error at stage %d: %s", e.Stage, e.Reason)
	case e.Relation != "":
		return fmt.Sprintf("configuration error (%s): %s", e.Relation, e.Reason)
	default:
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
}

// Configf builds a ConfigurationError with a formatted reason
func Configf(stage int, relation string, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{
		Stage:    stage,
		Relation: relation,
		Reason:   fmt.Sprintf(format, args...),
	}
}

// IsInputFormatError reports whether err wraps an InputFormatError
func IsInputFormatError(err error) bool {
	var target *InputFormatError
	return errors.As(err, &target)
}

// IsConfigurationError reports whether err wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
