package action

import (
	"context"
	"fmt"
)

// Validate runs every validator of every field against src. All validators
// run, even after an earlier one failed, and every message is collected. It
// returns nil or a *ValidationFailure.
//
// fields may be any subset of a contract, and src any source, so a single
// rule can be checked against a detached payload:
//
//	f, _ := contract.Field("order_id")
//	err := action.Validate(ctx, []action.FieldContract{f}, action.MapPayload(m))
func Validate(ctx context.Context, fields []FieldContract, src ValueSource) error {
	failure := &ValidationFailure{}
	for _, f := range fields {
		value, _ := src.ReadField(f.name)
		failure.add(f.name, runField(ctx, f, value, src)...)
	}
	if failure.empty() {
		return nil
	}
	return failure
}

// ValidateValue checks a single value against one field contract.
func ValidateValue(ctx context.Context, field FieldContract, value any) error {
	return Validate(ctx, []FieldContract{field}, MapPayload(map[string]any{field.name: value}))
}

func runField(ctx context.Context, f FieldContract, value any, src ValueSource) []string {
	var msgs []string
	for _, v := range f.validators {
		msgs = append(msgs, runValidator(ctx, v, f.name, value, src)...)
	}
	return msgs
}

// runValidator contains panics from Validator implementations that do not
// isolate their own faults.
func runValidator(ctx context.Context, v Validator, field string, value any, src ValueSource) (msgs []string) {
	defer func() {
		if r := recover(); r != nil {
			msgs = []string{fmt.Sprintf("failed validation: %v", r)}
		}
	}()
	return v.Validate(ctx, field, value, src)
}
