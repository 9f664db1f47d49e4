package action

import (
	"context"
	"errors"
	"fmt"
)

// Registry is an ordered collection of descriptors. For each event it picks
// the first matching message and every matching callback, in registration
// order; there is no priority other than order.
//
// Usage:
//  1. Create a registry with NewRegistry
//  2. Register descriptors with OnError, OnSuccess, Message, SuccessMessage
//  3. Route events with DispatchMessage and RunCallbacks
//
// Registry is safe for concurrent use after configuration. Do not register
// descriptors after dispatching the first event.
type Registry struct {
	descriptors    []Descriptor
	types          *TypeRegistry
	reporter       Reporter
	defaultMessage string
	hooks          hooks
}

// NewRegistry creates a Registry with the given options.
//
// Example:
//
//	r := action.NewRegistry(
//	    action.WithReporter(action.SlogReporter(logger)),
//	    action.WithDefaultMessage("Could not place order"),
//	)
func NewRegistry(opts ...Option) *Registry {
	cfg := DefaultConfig()
	r := &Registry{
		defaultMessage: cfg.DefaultMessage,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.reporter == nil {
		r.reporter = cfg.Reporter()
	}
	return r
}

// OnError registers a callback for failure events.
//
// Example:
//
//	r.OnError(action.CallbackOptions{
//	    Name: "page-oncall",
//	    From: []any{"TimeoutError"},
//	    Do: func(ctx context.Context, e action.Event) error {
//	        return pager.Page(ctx, e.Err)
//	    },
//	})
func (r *Registry) OnError(opts CallbackOptions) error {
	return r.addCallback(PhaseFailure, opts)
}

// OnSuccess registers a callback for success events.
func (r *Registry) OnSuccess(opts CallbackOptions) error {
	return r.addCallback(PhaseSuccess, opts)
}

// Message registers a user-facing message for failure events.
//
// Example:
//
//	r.Message(action.MessageOptions{
//	    From:   []any{(*NotFoundError)(nil)},
//	    Prefix: "Lookup failed",
//	    Text:   "no {{.Fields.kind}} with that id",
//	})
func (r *Registry) Message(opts MessageOptions) error {
	return r.addMessage(PhaseFailure, opts)
}

// SuccessMessage registers a user-facing message for success events.
func (r *Registry) SuccessMessage(opts MessageOptions) error {
	return r.addMessage(PhaseSuccess, opts)
}

func (r *Registry) addCallback(phase Phase, opts CallbackOptions) error {
	d, err := newCallbackDescriptor(phase, opts, r.types)
	if err != nil {
		return fmt.Errorf("register callback: %w", err)
	}
	r.descriptors = append(r.descriptors, d)
	return nil
}

func (r *Registry) addMessage(phase Phase, opts MessageOptions) error {
	d, err := newMessageDescriptor(phase, opts, r.types)
	if err != nil {
		return fmt.Errorf("register message: %w", err)
	}
	r.descriptors = append(r.descriptors, d)
	return nil
}

// Descriptors returns the registered descriptors in order.
func (r *Registry) Descriptors() []Descriptor {
	return append([]Descriptor(nil), r.descriptors...)
}

// DispatchMessage returns the rendered text of the first matching message
// descriptor. It returns false when nothing matched; callers fall back to a
// default.
func (r *Registry) DispatchMessage(ctx context.Context, e Event) (string, bool) {
	for _, d := range r.descriptors {
		md, ok := d.(*MessageDescriptor)
		if !ok || !r.matches(ctx, md, e) {
			continue
		}
		text, err := md.Render(e)
		if err != nil {
			report(ctx, r.reporter, "message descriptor", fmt.Errorf("render message: %w", err))
			continue
		}
		r.callOnMatch(ctx, md, e)
		return text, true
	}
	return "", false
}

// MessageOrDefault returns the dispatched message, or the default message
// for failures. Success events without a match yield an empty string.
func (r *Registry) MessageOrDefault(ctx context.Context, e Event) string {
	if text, ok := r.DispatchMessage(ctx, e); ok {
		return text
	}
	if phaseOf(e) == PhaseFailure {
		return r.defaultMessage
	}
	return ""
}

// DispatchCallbacks returns every matching callback descriptor in
// registration order. It does not invoke them.
func (r *Registry) DispatchCallbacks(ctx context.Context, e Event) []*CallbackDescriptor {
	var out []*CallbackDescriptor
	for _, d := range r.descriptors {
		cd, ok := d.(*CallbackDescriptor)
		if ok && r.matches(ctx, cd, e) {
			out = append(out, cd)
		}
	}
	return out
}

// RunCallbacks invokes every matching callback. A callback that errors or
// panics is reported and does not stop the others; the collected errors are
// joined.
func (r *Registry) RunCallbacks(ctx context.Context, e Event) error {
	var errs []error
	for _, cd := range r.DispatchCallbacks(ctx, e) {
		r.callOnMatch(ctx, cd, e)
		if err := invokeCallback(ctx, cd, e); err != nil {
			fault := &FaultError{Kind: FaultCallback, Field: cd.name, Err: err}
			report(ctx, r.reporter, "callback descriptor", fault)
			r.callOnCallbackError(ctx, cd, e, err)
			errs = append(errs, fault)
		}
	}
	return errors.Join(errs...)
}

func invokeCallback(ctx context.Context, cd *CallbackDescriptor, e Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("callback panicked: %w", panicError(rec))
		}
	}()
	return cd.Invoke(ctx, e)
}

// matches evaluates d against e, reporting predicate panics.
func (r *Registry) matches(ctx context.Context, d Descriptor, e Event) bool {
	if d.Phase() != phaseOf(e) {
		return false
	}
	ok, err := d.Matcher().evaluate(e)
	if err != nil {
		report(ctx, r.reporter, "matcher", &FaultError{Kind: FaultPredicate, Err: err})
	}
	return ok
}

func phaseOf(e Event) Phase {
	if e.Phase == "" {
		return PhaseFailure
	}
	return e.Phase
}

// callOnMatch calls global OnMatch hooks. A panicking hook is reported and
// the rest still run.
func (r *Registry) callOnMatch(ctx context.Context, d Descriptor, e Event) {
	for _, fn := range r.hooks.onMatch {
		r.callHook(ctx, "on match hook", func() { fn(ctx, d, e) })
	}
}

// callOnCallbackError calls global OnCallbackError hooks, isolated like
// callOnMatch.
func (r *Registry) callOnCallbackError(ctx context.Context, cd *CallbackDescriptor, e Event, err error) {
	for _, fn := range r.hooks.onCallbackError {
		r.callHook(ctx, "on callback error hook", func() { fn(ctx, cd.name, e, err) })
	}
}

func (r *Registry) callHook(ctx context.Context, where string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			report(ctx, r.reporter, where, fmt.Errorf("hook panicked: %w", panicError(rec)))
		}
	}()
	fn()
}
