package tree

import (
	"fmt"
	"strings"
)

// MissingMandatoryKeyError is returned when a required key is absent.
type MissingMandatoryKeyError struct {
	Scope string
	Key   string
}

func (e *MissingMandatoryKeyError) Error() string {
	return fmt.Sprintf("missing '%s' key at %s", e.Key, e.Scope)
}

// InvalidKeyError is returned for keys that are not allowed at a scope.
type InvalidKeyError struct {
	Scope   string
	Key     string
	Allowed []string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key '%s' at %s, allowed keys are: %s",
		e.Key, e.Scope, strings.Join(e.Allowed, ", "))
}

// InvalidValueError is returned when a key holds a value of the wrong shape
// or outside its domain.
type InvalidValueError struct {
	Scope  string
	Key    string
	Value  any
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %v for '%s' at %s: %s", e.Value, e.Key, e.Scope, e.Reason)
}
