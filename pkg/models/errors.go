package models

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an out-of-range parameter or unusable input.
// It is returned before any network activity starts.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// PassiveLookupError wraps an upstream certificate-transparency failure.
// Callers log it and continue with an empty passive result.
type PassiveLookupError struct {
	Domain string
	Err    error
}

func (e *PassiveLookupError) Error() string {
	return fmt.Sprintf("passive lookup for %s failed: %v", e.Domain, e.Err)
}

func (e *PassiveLookupError) Unwrap() error { return e.Err }

// IsInputError reports whether err is caused by bad caller input rather
// than by the environment.
func IsInputError(err error) bool {
	var ce *ConfigurationError
	var nf *NotFoundError
	return errors.As(err, &ce) || errors.As(err, &nf)
}
