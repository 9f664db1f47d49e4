package action

import (
	"context"
	"fmt"
)

// Body is the work an action performs once its inputs are valid. It reads
// inputs from, and writes outputs to, the execution context.
//
// Example:
//
//	type PlaceOrder struct {
//	    orders OrderStore
//	}
//
//	func (p *PlaceOrder) Call(ctx context.Context, ec *action.ExecutionContext) error {
//	    id, _ := ec.ReadField("order_id")
//	    receipt, err := p.orders.Place(ctx, id.(string))
//	    if err != nil {
//	        return err
//	    }
//	    ec.Set("receipt", receipt)
//	    return nil
//	}
type Body interface {
	Call(ctx context.Context, ec *ExecutionContext) error
}

// BodyFunc is a function adapter for Body.
type BodyFunc func(ctx context.Context, ec *ExecutionContext) error

// Call implements the Body interface.
func (f BodyFunc) Call(ctx context.Context, ec *ExecutionContext) error {
	return f(ctx, ec)
}

// Definition declares an action: its input and output contracts and the
// registry its outcomes are dispatched through. It is built once and shared.
type Definition struct {
	Name     string
	Inputs   Contract
	Outputs  Contract
	Registry *Registry
}

// Action runs a Body inside its declared contracts.
type Action struct {
	name     string
	inputs   Contract
	outputs  Contract
	registry *Registry
	body     Body
}

// New returns an Action for def and body.
func New(def Definition, body Body) (*Action, error) {
	if body == nil {
		return nil, configErrorf("", "body", "action %q has no body", def.Name)
	}
	reg := def.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	return &Action{
		name:     def.Name,
		inputs:   def.Inputs,
		outputs:  def.Outputs,
		registry: reg,
		body:     body,
	}, nil
}

// Result is the outcome of one Run.
type Result struct {
	OK      bool
	Err     error
	Message string
}

// Run validates inputs, calls the body, validates outputs and dispatches
// the outcome. Callbacks run before Run returns; their failures are
// reported, not returned.
//
// The processing flow:
//  1. Validate inputs against ec
//  2. Call the body (a panic becomes an error)
//  3. Validate outputs against ec
//  4. Run matching callbacks and pick a message
func (a *Action) Run(ctx context.Context, ec *ExecutionContext) Result {
	if err := a.inputs.Validate(ctx, ec); err != nil {
		return a.fail(ctx, ec, fmt.Errorf("inputs: %w", err))
	}
	if err := a.call(ctx, ec); err != nil {
		return a.fail(ctx, ec, err)
	}
	if err := a.outputs.Validate(ctx, ec); err != nil {
		return a.fail(ctx, ec, fmt.Errorf("outputs: %w", err))
	}

	e := Event{Phase: PhaseSuccess, Action: a.name, Fields: ec.Values()}
	_ = a.registry.RunCallbacks(ctx, e)
	msg, _ := a.registry.DispatchMessage(ctx, e)
	return Result{OK: true, Message: msg}
}

func (a *Action) call(ctx context.Context, ec *ExecutionContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %s panicked: %w", a.name, panicError(r))
		}
	}()
	return a.body.Call(ctx, ec)
}

func (a *Action) fail(ctx context.Context, ec *ExecutionContext, err error) Result {
	e := Event{Phase: PhaseFailure, Action: a.name, Err: err, Fields: ec.Values()}
	_ = a.registry.RunCallbacks(ctx, e)
	return Result{Err: err, Message: a.registry.MessageOrDefault(ctx, e)}
}
