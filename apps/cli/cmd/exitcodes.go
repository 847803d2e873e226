package cmd

import (
	"strconv"

	"github.com/abdul-hamid-achik/apiscan/packages/stats"
)

// Exit codes for apiscan CLI
const (
	// ExitSuccess indicates every request passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more requests failed
	ExitTestFailure = 1

	// ExitSpecError indicates a spec file that could not be loaded or built
	ExitSpecError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates that no request received a response
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// ExitError carries the exit code of a command. Err is nil when the outcome
// has already been reported.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit status " + strconv.Itoa(e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitWith(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// exitCodeFor maps a run summary to its exit code.
func exitCodeFor(s stats.Summary) int {
	switch {
	case s.AllUnreachable:
		return ExitNetworkError
	case s.Failed > 0:
		return ExitTestFailure
	default:
		return ExitSuccess
	}
}
