package validate

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for validation errors. These allow errors.Is from callers.
var (
	ErrMissingRequiredField = errors.New("missing required field")
	ErrOutOfRange           = errors.New("out of range")
)

// Issue describes one rejected field.
type Issue struct {
	Field string `json:"field"`
	Kind  error  `json:"-"`
	// Value is the offending input, rendered for display; empty when absent.
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s: %s: %s", i.Field, i.Kind, i.Reason)
}

func (i Issue) Unwrap() error { return i.Kind }

// ValidationError groups every field-level issue found in one input, so a
// form can flag all fields at once.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.Error()
	}
	return "invalid measurement: " + strings.Join(parts, "; ")
}

// Unwrap exposes each issue so errors.Is matches the sentinel kinds.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Issues))
	for i, is := range e.Issues {
		errs[i] = is
	}
	return errs
}

// Fields returns the names of the rejected fields in input order.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		out[i] = is.Field
	}
	return out
}
