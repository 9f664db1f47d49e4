package action

import (
	"context"
	"errors"
	"log/slog"
)

// Reporter receives faults that were contained instead of propagated: a
// lookup that errored, a custom validator that panicked, a callback that
// failed. Report must never panic.
type Reporter interface {
	Report(ctx context.Context, where string, err error)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, where string, err error)

// Report implements Reporter.
func (f ReporterFunc) Report(ctx context.Context, where string, err error) {
	f(ctx, where, err)
}

// NopReporter discards every fault.
func NopReporter() Reporter {
	return ReporterFunc(func(context.Context, string, error) {})
}

// SlogReporter logs faults at warn level. A nil logger uses slog.Default().
func SlogReporter(logger *slog.Logger) Reporter {
	return slogReporter{logger: logger}
}

type slogReporter struct {
	logger *slog.Logger
}

func (r slogReporter) Report(ctx context.Context, where string, err error) {
	logger := r.logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{slog.String("where", where), slog.Any("error", err)}
	var fault *FaultError
	if errors.As(err, &fault) {
		attrs = append(attrs, slog.String("fault", string(fault.Kind)))
		if fault.Field != "" {
			attrs = append(attrs, slog.String("field", fault.Field))
		}
	}
	logger.WarnContext(ctx, "action: contained fault", attrs...)
}

// report delivers err to r, shielding the caller from a misbehaving Reporter.
func report(ctx context.Context, r Reporter, where string, err error) {
	if r == nil {
		return
	}
	defer func() { _ = recover() }()
	r.Report(ctx, where, err)
}
