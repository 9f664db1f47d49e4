package action

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
)

// Enqueuer hands one payload to the async backend. Delivery guarantees,
// retries and ordering belong to the backend.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload map[string]any) error
}

// EnqueueFunc adapts a function to the Enqueuer interface.
type EnqueueFunc func(ctx context.Context, payload map[string]any) error

// Enqueue implements Enqueuer.
func (f EnqueueFunc) Enqueue(ctx context.Context, payload map[string]any) error {
	return f(ctx, payload)
}

// SourceStrategy decides where a batch's items come from. Use Explicit,
// Named or Inferred.
type SourceStrategy interface {
	resolve(ctx context.Context, b *Batch, target any) ([]any, error)
	check(b *Batch, f FieldContract) error
}

// Explicit resolves items by calling fn.
func Explicit(fn func(ctx context.Context) ([]any, error)) SourceStrategy {
	return explicitSource{fn: fn}
}

type explicitSource struct {
	fn func(ctx context.Context) ([]any, error)
}

func (s explicitSource) check(b *Batch, _ FieldContract) error {
	if s.fn == nil {
		return configErrorf(b.field, "source", "explicit source function is nil")
	}
	return nil
}

func (s explicitSource) resolve(ctx context.Context, _ *Batch, _ any) ([]any, error) {
	return s.fn(ctx)
}

// Named resolves items by calling the named method on the target passed to
// ResolveSource. The method may take a context.Context and may return an
// error alongside a slice of items.
func Named(method string) SourceStrategy {
	return namedSource{method: method}
}

type namedSource struct {
	method string
}

func (s namedSource) check(b *Batch, _ FieldContract) error {
	if s.method == "" {
		return configErrorf(b.field, "source", "method name is required")
	}
	return nil
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

func (s namedSource) resolve(ctx context.Context, b *Batch, target any) ([]any, error) {
	if target == nil {
		return nil, configErrorf(b.field, "source", "no target to call %s on", s.method)
	}
	m := reflect.ValueOf(target).MethodByName(s.method)
	if !m.IsValid() {
		return nil, configErrorf(b.field, "source", "%T has no method %s", target, s.method)
	}
	mt := m.Type()

	var args []reflect.Value
	switch {
	case mt.NumIn() == 0:
	case mt.NumIn() == 1 && mt.In(0) == contextType:
		args = []reflect.Value{reflect.ValueOf(ctx)}
	default:
		return nil, configErrorf(b.field, "source", "%s must take no arguments or a context.Context", s.method)
	}
	switch {
	case mt.NumOut() == 1:
	case mt.NumOut() == 2 && mt.Out(1) == errorType:
	default:
		return nil, configErrorf(b.field, "source", "%s must return items or (items, error)", s.method)
	}

	out := m.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return toItems(b.field, s.method, out[0])
}

func toItems(field, method string, v reflect.Value) ([]any, error) {
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, configErrorf(field, "source", "%s returned %s, not a slice", method, v.Type())
	}
	items := make([]any, v.Len())
	for i := 0; i < v.Len(); i++ {
		items[i] = v.Index(i).Interface()
	}
	return items, nil
}

// Inferred resolves items as every known instance of the field's lookup
// kind. The field must be model-backed.
func Inferred() SourceStrategy {
	return inferredSource{}
}

type inferredSource struct{}

func (inferredSource) check(b *Batch, f FieldContract) error {
	kind, ok := f.LookupKind()
	lookup := f.lookup()
	if !ok || lookup == nil {
		return configErrorf(b.field, "source",
			"cannot infer a batch source: supply an explicit source or declare %q as a model-backed field", b.field)
	}
	b.kind = kind
	b.lookup = lookup
	return nil
}

func (inferredSource) resolve(ctx context.Context, b *Batch, _ any) ([]any, error) {
	return b.lookup.AllOf(ctx, b.kind)
}

// BatchOptions configures a Batch.
type BatchOptions struct {
	// Source defaults to Inferred.
	Source  SourceStrategy
	Enqueue Enqueuer

	// Args are merged into every enqueued payload.
	Args map[string]any
}

// Batch enqueues one invocation of an action per resolved item. It holds no
// state between runs.
type Batch struct {
	field   string
	source  SourceStrategy
	enqueue Enqueuer
	args    map[string]any
	kind    string
	lookup  Lookup
}

// NewBatch validates the batch configuration against contract. Every
// misconfiguration is reported here, before the first run.
func NewBatch(contract Contract, field string, opts BatchOptions) (*Batch, error) {
	if field == "" {
		return nil, configErrorf("", "field", "batch field is required")
	}
	f, ok := contract.Field(field)
	if !ok {
		return nil, configErrorf(field, "field", "not declared in contract")
	}
	if opts.Enqueue == nil {
		return nil, configErrorf(field, "enqueue", "enqueuer is required")
	}
	b := &Batch{
		field:   field,
		source:  opts.Source,
		enqueue: opts.Enqueue,
		args:    maps.Clone(opts.Args),
	}
	if b.source == nil {
		b.source = Inferred()
	}
	if err := b.source.check(b, f); err != nil {
		return nil, err
	}
	return b, nil
}

// Field returns the field each item is bound to.
func (b *Batch) Field() string { return b.field }

// ResolveSource returns the items to enqueue. target is only consulted by
// Named sources.
func (b *Batch) ResolveSource(ctx context.Context, target any) ([]any, error) {
	items, err := b.source.resolve(ctx, b, target)
	if err != nil {
		return nil, fmt.Errorf("resolve batch source for %s: %w", b.field, err)
	}
	return items, nil
}

// EnqueueAll resolves the source and enqueues one payload per item. Every
// item is attempted; enqueue errors are joined. It returns the number of
// payloads accepted by the enqueuer.
func (b *Batch) EnqueueAll(ctx context.Context, target any) (int, error) {
	items, err := b.ResolveSource(ctx, target)
	if err != nil {
		return 0, err
	}
	var (
		n    int
		errs []error
	)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		payload := make(map[string]any, len(b.args)+1)
		maps.Copy(payload, b.args)
		payload[b.field] = item
		if err := b.enqueue.Enqueue(ctx, payload); err != nil {
			errs = append(errs, fmt.Errorf("enqueue item %d: %w", i, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}
