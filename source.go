package action

import (
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// ValueSource supplies field values to validators. Sources are read-only
// during a validation run.
type ValueSource interface {
	// ReadField returns the value stored under name and whether it exists.
	ReadField(name string) (any, bool)
}

// AccessorSource is a ValueSource backed by a live execution context. Its
// accessors may expose richer derived values than the raw payload, such as a
// loaded entity for an "order_id" field.
type AccessorSource interface {
	ValueSource

	// HasAccessor reports whether a derived accessor exists for name.
	HasAccessor(name string) bool

	// Access evaluates the accessor registered for name.
	Access(ctx context.Context, name string) (any, error)
}

// JSONPayload returns a ValueSource over raw JSON. Field names are gjson
// paths, so nested values are reachable with "customer.id". A key that itself
// contains path syntax ('.', '*', '?', '|', '#', '@') must be escaped with
// gjson.Escape, as in gjson.Escape("a.b").
//
// Numbers are returned as json.Number so identifiers above 2^53 keep every
// digit. Numbers inside returned objects and arrays are float64.
func JSONPayload(raw []byte) (ValueSource, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	return jsonPayload{raw: raw}, nil
}

type jsonPayload struct {
	raw []byte
}

func (p jsonPayload) ReadField(name string) (any, bool) {
	r := gjson.GetBytes(p.raw, name)
	if !r.Exists() {
		return nil, false
	}
	if r.Type == gjson.Number {
		return json.Number(r.Raw), true
	}
	return r.Value(), true
}

// MapPayload returns a ValueSource over an already decoded payload.
func MapPayload(m map[string]any) ValueSource {
	return mapPayload(m)
}

type mapPayload map[string]any

func (p mapPayload) ReadField(name string) (any, bool) {
	v, ok := p[name]
	return v, ok
}

// AccessorFunc derives a value from the execution context on demand.
type AccessorFunc func(ctx context.Context) (any, error)

// ExecutionContext is the mutable per-invocation state of one action run.
// It is not safe for concurrent use; each invocation owns its own.
type ExecutionContext struct {
	values    map[string]any
	accessors map[string]AccessorFunc
}

// NewExecutionContext returns a context seeded with the given values.
func NewExecutionContext(values map[string]any) *ExecutionContext {
	c := &ExecutionContext{
		values:    make(map[string]any, len(values)),
		accessors: make(map[string]AccessorFunc),
	}
	for k, v := range values {
		c.values[k] = v
	}
	return c
}

// Set stores a field value.
func (c *ExecutionContext) Set(name string, v any) {
	c.values[name] = v
}

// Provide registers a derived accessor.
func (c *ExecutionContext) Provide(name string, fn AccessorFunc) {
	c.accessors[name] = fn
}

// ReadField implements ValueSource.
func (c *ExecutionContext) ReadField(name string) (any, bool) {
	v, ok := c.values[name]
	return v, ok
}

// HasAccessor implements AccessorSource.
func (c *ExecutionContext) HasAccessor(name string) bool {
	_, ok := c.accessors[name]
	return ok
}

// Access implements AccessorSource.
func (c *ExecutionContext) Access(ctx context.Context, name string) (any, error) {
	fn, ok := c.accessors[name]
	if !ok {
		return nil, nil
	}
	return fn(ctx)
}

// Values returns a copy of the stored field values.
func (c *ExecutionContext) Values() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}
