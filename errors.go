package action

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is matched by every *ValidationFailure.
	ErrValidation = errors.New("validation failed")

	// ErrConfiguration is matched by every *ConfigurationError. These are
	// raised while contracts, matchers and batches are built, never while
	// an action runs.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrInvalidJSON is returned when a raw payload is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON")
)

// ValidationFailure reports every field that failed validation together with
// its messages. Field order follows contract declaration order and message
// order follows validator declaration order.
type ValidationFailure struct {
	fields   []string
	messages map[string][]string
}

func (f *ValidationFailure) add(field string, msgs ...string) {
	if len(msgs) == 0 {
		return
	}
	if f.messages == nil {
		f.messages = make(map[string][]string)
	}
	if _, ok := f.messages[field]; !ok {
		f.fields = append(f.fields, field)
	}
	f.messages[field] = append(f.messages[field], msgs...)
}

func (f *ValidationFailure) empty() bool { return len(f.fields) == 0 }

// Fields returns the failing field names in declaration order.
func (f *ValidationFailure) Fields() []string {
	return append([]string(nil), f.fields...)
}

// Messages returns the messages recorded for one field.
func (f *ValidationFailure) Messages(field string) []string {
	return append([]string(nil), f.messages[field]...)
}

// Map returns a copy of the field to messages mapping.
func (f *ValidationFailure) Map() map[string][]string {
	out := make(map[string][]string, len(f.messages))
	for k, v := range f.messages {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (f *ValidationFailure) Error() string {
	parts := make([]string, 0, len(f.fields))
	for _, field := range f.fields {
		for _, msg := range f.messages[field] {
			parts = append(parts, field+" "+msg)
		}
	}
	return strings.Join(parts, "; ")
}

// Is reports whether target is ErrValidation.
func (f *ValidationFailure) Is(target error) bool { return target == ErrValidation }

// ConfigurationError describes a definition-time mistake: a missing batch
// source, an unknown type tag, an option that cannot be compiled.
type ConfigurationError struct {
	Field  string
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration")
	if e.Field != "" {
		fmt.Fprintf(&b, " of field %q", e.Field)
	}
	if e.Option != "" {
		fmt.Fprintf(&b, " (%s)", e.Option)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func configErrorf(field, option, format string, args ...any) error {
	return &ConfigurationError{Field: field, Option: option, Reason: fmt.Sprintf(format, args...)}
}

// FaultKind names the class of contained fault.
type FaultKind string

const (
	// FaultLookup is an error raised by a Lookup collaborator.
	FaultLookup FaultKind = "lookup"
	// FaultCustom is an error or panic raised by a custom validator.
	FaultCustom FaultKind = "custom"
	// FaultPredicate is a panic raised by a matcher predicate.
	FaultPredicate FaultKind = "predicate"
	// FaultCallback is an error or panic raised by a dispatched callback.
	FaultCallback FaultKind = "callback"
)

// FaultError wraps an error that was contained rather than propagated. It is
// only ever handed to a Reporter.
type FaultError struct {
	Kind  FaultKind
	Field string
	Err   error
}

func (e *FaultError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s fault on %s: %v", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("%s fault: %v", e.Kind, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// panicError turns a recovered value into an error.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
