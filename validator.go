package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/google/cel-go/cel"
)

// Kind identifies a validator implementation.
type Kind string

// Validator kinds.
const (
	KindType      Kind = "type"
	KindExistence Kind = "existence"
	KindCustom    Kind = "custom"
)

// Validator checks the value of one field. It returns zero or more
// human-readable messages; faults raised while checking are converted into
// messages and never escape Validate.
type Validator interface {
	Kind() Kind
	Validate(ctx context.Context, field string, value any, src ValueSource) []string
}

// TypeValidator accepts values matching any of the allowed tags. Blank
// values pass unless TagBoolean is allowed, since a missing boolean is a
// presence question rather than a type question.
type TypeValidator struct {
	Allowed []TypeTag
	Message string
}

// Kind implements Validator.
func (v TypeValidator) Kind() Kind { return KindType }

// Validate implements Validator.
func (v TypeValidator) Validate(_ context.Context, _ string, value any, _ ValueSource) []string {
	if isBlank(value) && !slices.Contains(v.Allowed, TagBoolean) {
		return nil
	}
	for _, tag := range v.Allowed {
		if matchTag(tag, value) {
			return nil
		}
	}
	if v.Message != "" {
		return []string{v.Message}
	}
	return []string{"is not a " + tagNames(v.Allowed)}
}

// ExistenceValidator checks that an identifier references a known entity.
//
// When the source is a live execution context exposing an accessor named
// Relation, the accessor is consulted instead of the Lookup.
type ExistenceValidator struct {
	LookupKind string
	Relation   string
	Lookup     Lookup
	Reporter   Reporter
}

// Kind implements Validator.
func (v ExistenceValidator) Kind() Kind { return KindExistence }

// Validate implements Validator.
func (v ExistenceValidator) Validate(ctx context.Context, field string, value any, src ValueSource) (msgs []string) {
	defer func() {
		if r := recover(); r != nil {
			msgs = v.fault(ctx, field, panicError(r))
		}
	}()

	if as, ok := src.(AccessorSource); ok && v.Relation != "" && as.HasAccessor(v.Relation) {
		entity, err := as.Access(ctx, v.Relation)
		if err != nil {
			return v.fault(ctx, field, err)
		}
		if !isNil(entity) {
			return nil
		}
		if isBlank(value) {
			return []string{v.blankMessage()}
		}
		return []string{v.notFoundMessage(value)}
	}

	if isBlank(value) {
		return []string{v.blankMessage()}
	}
	if v.Lookup == nil {
		return v.fault(ctx, field, errors.New("no lookup configured"))
	}
	entity, err := v.Lookup.FindByID(ctx, v.LookupKind, value)
	if err != nil {
		return v.fault(ctx, field, err)
	}
	if isNil(entity) {
		return []string{v.notFoundMessage(value)}
	}
	return nil
}

func (v ExistenceValidator) blankMessage() string {
	return fmt.Sprintf("is blank; a %s identifier is required", v.LookupKind)
}

func (v ExistenceValidator) notFoundMessage(id any) string {
	return fmt.Sprintf("does not reference a known %s (id %v)", v.LookupKind, id)
}

func (v ExistenceValidator) fault(ctx context.Context, field string, err error) []string {
	report(ctx, v.Reporter, "existence validator", &FaultError{
		Kind:  FaultLookup,
		Field: field,
		Err:   fmt.Errorf("find %s: %w", v.LookupKind, err),
	})
	return []string{fmt.Sprintf("error raised while trying to find a valid %s", v.LookupKind)}
}

// CustomFunc checks a value. A non-empty problem is reported as the field's
// message; a non-nil err is a fault and is reported as a generic failure.
type CustomFunc func(ctx context.Context, value any) (problem string, err error)

// CustomValidator runs a caller supplied check.
type CustomValidator struct {
	Check    CustomFunc
	Reporter Reporter
}

// Kind implements Validator.
func (v CustomValidator) Kind() Kind { return KindCustom }

// Validate implements Validator.
func (v CustomValidator) Validate(ctx context.Context, field string, value any, _ ValueSource) (msgs []string) {
	defer func() {
		if r := recover(); r != nil {
			msgs = customFault(ctx, v.Reporter, field, panicError(r))
		}
	}()

	problem, err := v.Check(ctx, value)
	if err != nil {
		return customFault(ctx, v.Reporter, field, err)
	}
	if problem != "" {
		return []string{problem}
	}
	return nil
}

func customFault(ctx context.Context, r Reporter, field string, err error) []string {
	report(ctx, r, "custom validator", &FaultError{Kind: FaultCustom, Field: field, Err: err})
	return []string{"failed validation: " + err.Error()}
}

// ExprValidator is a custom validator written as a CEL expression over
// `value` and `field`. The expression must evaluate to a bool. Blank values
// are not evaluated; combine with a type or existence validator, or a custom
// check, when the field is required.
type ExprValidator struct {
	expr     string
	message  string
	program  cel.Program
	reporter Reporter
}

// newExprEnv declares the variables visible to validator expressions.
func newExprEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("value", cel.DynType),
		cel.Variable("field", cel.StringType),
	)
}

func compileExpr(env *cel.Env, field, expr, message string, reporter Reporter) (*ExprValidator, error) {
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, configErrorf(field, "expr", "compile %q: %v", expr, iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, configErrorf(field, "expr", "program %q: %v", expr, err)
	}
	return &ExprValidator{expr: expr, message: message, program: prg, reporter: reporter}, nil
}

// Kind implements Validator.
func (v *ExprValidator) Kind() Kind { return KindCustom }

// Expr returns the source expression.
func (v *ExprValidator) Expr() string { return v.expr }

// Validate implements Validator.
func (v *ExprValidator) Validate(ctx context.Context, field string, value any, _ ValueSource) (msgs []string) {
	defer func() {
		if r := recover(); r != nil {
			msgs = customFault(ctx, v.reporter, field, panicError(r))
		}
	}()

	if isBlank(value) {
		return nil
	}

	out, _, err := v.program.Eval(map[string]any{"value": exprValue(value), "field": field})
	if err != nil {
		return customFault(ctx, v.reporter, field, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return customFault(ctx, v.reporter, field, fmt.Errorf("expression %q returned %T, not bool", v.expr, out.Value()))
	}
	if ok {
		return nil
	}
	if v.message != "" {
		return []string{v.message}
	}
	return []string{fmt.Sprintf("does not satisfy %s", v.expr)}
}

// exprValue converts values CEL cannot adapt natively.
func exprValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return string(n)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
