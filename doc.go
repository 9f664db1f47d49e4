// Package action runs command objects inside declared contracts.
//
// An action declares typed input and output contracts. Inputs are validated
// before the action body runs, and the outcome, success or failure, is routed
// through an ordered registry of descriptors that produce user-facing
// messages and side-effecting callbacks (logging, metrics, retries).
//
// # Quick Start
//
// Build the contracts once, at definition time:
//
//	b, err := action.NewBuilder(action.WithLookup(orders))
//	if err != nil {
//	    return err
//	}
//	inputs, err := b.Contract(
//	    action.FieldOptions{Name: "order_id", Type: []action.TypeTag{action.TagUUID}, Model: &action.ModelOptions{}},
//	    action.FieldOptions{Name: "quantity", Type: []action.TypeTag{action.TagInteger}, Expr: "value > 0"},
//	)
//
// Register how failures are reported:
//
//	r := action.NewRegistry()
//	r.Message(action.MessageOptions{From: []any{"NotFoundError"}, Text: "That order no longer exists"})
//	r.OnError(action.CallbackOptions{Name: "log", Do: logFailure})
//
// Run it:
//
//	a, err := action.New(action.Definition{Name: "place-order", Inputs: inputs, Registry: r}, body)
//	res := a.Run(ctx, action.NewExecutionContext(payload))
//
// # Contracts
//
// A FieldContract is an ordered list of validators for one field. Every
// validator runs and every message is kept, so a field can fail for several
// reasons at once. Three kinds of validator exist:
//
//   - TypeValidator: the value matches one of the allowed TypeTags
//   - ExistenceValidator: the value identifies an entity known to a Lookup
//   - CustomValidator and ExprValidator: a Go function or a CEL expression
//
// Validators contain their own faults. A lookup that errors or a custom check
// that panics becomes a field message, and the raw error goes to the Reporter.
//
// Validate accepts any subset of fields and any ValueSource, so one rule can
// be checked against a detached payload without running an action:
//
//	f, _ := inputs.Field("order_id")
//	err := action.ValidateValue(ctx, f, "not-a-uuid")
//
// # Value Sources
//
// Fields are read through a ValueSource:
//
//   - JSONPayload: raw JSON, fields addressed by gjson path
//   - MapPayload: an already decoded map
//   - ExecutionContext: the live, mutable context of one invocation
//
// An ExecutionContext may provide derived accessors. A model-backed field
// "order_id" is satisfied by an "order" accessor when one is provided, instead
// of a lookup by identifier.
//
// # Matchers
//
// Descriptors select events with a Matcher built from If, Unless and From.
// The rules are combined with AND and Unless additionally inverts the result,
// so Unless alone matches when its predicate is false. From matches the
// event's error, or anything it wraps, by type name, reflect.Type, or sample
// value; struct embedding and interface implementation count as subtypes.
//
// # Dispatch
//
// A Registry evaluates descriptors in registration order. DispatchMessage
// returns the first matching message; RunCallbacks runs every matching
// callback, isolating each from the others' errors and panics.
//
// # Batches
//
// A Batch enqueues one invocation per item of a source: an Explicit function,
// a Named method on a target, or, by default, every known instance of a
// model-backed field's lookup kind.
//
// # Thread Safety
//
// Builders, contracts, matchers, descriptors and batches are immutable after
// construction and safe for concurrent use. A Registry must not be modified
// after the first dispatch. An ExecutionContext belongs to one invocation.
package action
