package action

import "context"

// OnMatchFunc is called when a descriptor is selected for an event, before
// a callback runs or a message is returned.
type OnMatchFunc func(ctx context.Context, d Descriptor, e Event)

// OnCallbackErrorFunc is called after a callback returned an error or
// panicked. The remaining callbacks still run.
type OnCallbackErrorFunc func(ctx context.Context, name string, e Event, err error)

// hooks holds all configured hook functions.
type hooks struct {
	onMatch         []OnMatchFunc
	onCallbackError []OnCallbackErrorFunc
}

// Option configures a Registry.
type Option func(*Registry)

// WithReporter sets where contained faults are reported. The default
// follows DefaultConfig: faults are logged through slog.
func WithReporter(rep Reporter) Option {
	return func(r *Registry) {
		r.reporter = rep
	}
}

// WithTypeRegistry lets From options refer to registered type names.
//
// Example:
//
//	types := action.NewTypeRegistry()
//	types.Register("Transient", reflect.TypeFor[interface{ Temporary() bool }]())
//	r := action.NewRegistry(action.WithTypeRegistry(types))
func WithTypeRegistry(types *TypeRegistry) Option {
	return func(r *Registry) {
		r.types = types
	}
}

// WithDefaultMessage sets the message MessageOrDefault falls back to.
func WithDefaultMessage(msg string) Option {
	return func(r *Registry) {
		r.defaultMessage = msg
	}
}

// WithRegistryConfig applies the default message and fault reporting of cfg.
func WithRegistryConfig(cfg Config) Option {
	return func(r *Registry) {
		r.defaultMessage = cfg.DefaultMessage
		if r.reporter == nil {
			r.reporter = cfg.Reporter()
		}
	}
}

// WithOnMatch adds a hook called whenever a descriptor is selected.
// Multiple hooks are called in order.
//
// Example:
//
//	action.WithOnMatch(func(ctx context.Context, d action.Descriptor, e action.Event) {
//	    metrics.Incr("action.dispatch", "action:"+e.Action)
//	})
func WithOnMatch(fn OnMatchFunc) Option {
	return func(r *Registry) {
		r.hooks.onMatch = append(r.hooks.onMatch, fn)
	}
}

// WithOnCallbackError adds a hook called when a callback fails.
// Multiple hooks are called in order.
func WithOnCallbackError(fn OnCallbackErrorFunc) Option {
	return func(r *Registry) {
		r.hooks.onCallbackError = append(r.hooks.onCallbackError, fn)
	}
}
