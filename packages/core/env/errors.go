package env

import (
	"errors"
	"fmt"
)

var (
	ErrUndefined   = errors.New("undefined variable")
	ErrNotExecuted = errors.New("request has not been executed yet")
	ErrCycle       = errors.New("variable references itself")
	ErrEnvNotSet   = errors.New("environment variable is not set")
	ErrUnclosed    = errors.New("unclosed placeholder")
)

// ResolutionError reports a template that could not be evaluated. Field is
// the request part being resolved, Key the missing name when one is known.
type ResolutionError struct {
	Field      string
	Key        string
	Expression string
	Err        error
}

func (e *ResolutionError) Error() string {
	msg := e.Err.Error()
	if e.Key != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Key)
	}
	if e.Expression != "" {
		msg = fmt.Sprintf("%s in expression %q", msg, e.Expression)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("failed to resolve %s: %s", e.Field, msg)
	}
	return msg
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
