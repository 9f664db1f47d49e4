package action

import (
	"bytes"
	"context"
	"strings"

	"github.com/google/cel-go/cel"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// FieldOptions is the declarative form of a field contract. Validators are
// built in a fixed order: type, model, expr, then custom checks.
type FieldOptions struct {
	Name        string        `yaml:"name"`
	Type        []TypeTag     `yaml:"type,omitempty"`
	TypeMessage string        `yaml:"type_message,omitempty"`
	Model       *ModelOptions `yaml:"model,omitempty"`
	Expr        string        `yaml:"expr,omitempty"`
	Message     string        `yaml:"message,omitempty"`
	Custom      []CustomFunc  `yaml:"-"`
}

// ModelOptions declares a model-backed field. An empty Kind is inferred from
// the field name; an empty Relation defaults to the name without its
// identifier suffix.
type ModelOptions struct {
	Kind     string `yaml:"kind,omitempty"`
	Relation string `yaml:"relation,omitempty"`
}

// FieldContract is the immutable, ordered set of validators for one field.
type FieldContract struct {
	name       string
	validators []Validator
}

// NewField assembles a contract from already constructed validators.
func NewField(name string, validators ...Validator) FieldContract {
	return FieldContract{name: name, validators: append([]Validator(nil), validators...)}
}

// Name returns the field name.
func (f FieldContract) Name() string { return f.name }

// Validators returns the validators in evaluation order.
func (f FieldContract) Validators() []Validator {
	return append([]Validator(nil), f.validators...)
}

// LookupKind returns the kind of the first existence validator, if any.
func (f FieldContract) LookupKind() (string, bool) {
	for _, v := range f.validators {
		if ev, ok := v.(ExistenceValidator); ok && ev.LookupKind != "" {
			return ev.LookupKind, true
		}
	}
	return "", false
}

// lookup returns the collaborator of the first existence validator.
func (f FieldContract) lookup() Lookup {
	for _, v := range f.validators {
		if ev, ok := v.(ExistenceValidator); ok {
			return ev.Lookup
		}
	}
	return nil
}

// Options re-derives the declarative options from the built validators.
// Building the result with the same Builder yields equivalent behaviour.
func (f FieldContract) Options() FieldOptions {
	opts := FieldOptions{Name: f.name}
	for _, v := range f.validators {
		switch tv := v.(type) {
		case TypeValidator:
			opts.Type = append(opts.Type, tv.Allowed...)
			opts.TypeMessage = tv.Message
		case ExistenceValidator:
			opts.Model = &ModelOptions{Kind: tv.LookupKind, Relation: tv.Relation}
		case *ExprValidator:
			opts.Expr = tv.expr
			opts.Message = tv.message
		case CustomValidator:
			opts.Custom = append(opts.Custom, tv.Check)
		}
	}
	return opts
}

// Contract is an ordered list of field contracts.
type Contract struct {
	fields []FieldContract
}

// NewContract returns a contract over fields. Duplicate names are rejected.
func NewContract(fields ...FieldContract) (Contract, error) {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.name == "" {
			return Contract{}, configErrorf("", "name", "field name is required")
		}
		if seen[f.name] {
			return Contract{}, configErrorf(f.name, "name", "declared twice")
		}
		seen[f.name] = true
	}
	return Contract{fields: append([]FieldContract(nil), fields...)}, nil
}

// Fields returns the field contracts in declaration order.
func (c Contract) Fields() []FieldContract {
	return append([]FieldContract(nil), c.fields...)
}

// Field returns the contract for name.
func (c Contract) Field(name string) (FieldContract, bool) {
	for _, f := range c.fields {
		if f.name == name {
			return f, true
		}
	}
	return FieldContract{}, false
}

// Names returns the declared field names.
func (c Contract) Names() []string {
	names := make([]string, len(c.fields))
	for i, f := range c.fields {
		names[i] = f.name
	}
	return names
}

// Subset returns a contract restricted to names, keeping declaration order.
func (c Contract) Subset(names ...string) (Contract, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := c.Field(n); !ok {
			return Contract{}, configErrorf(n, "subset", "not declared in contract")
		}
		want[n] = true
	}
	var out []FieldContract
	for _, f := range c.fields {
		if want[f.name] {
			out = append(out, f)
		}
	}
	return Contract{fields: out}, nil
}

// Validate runs every field contract against src.
func (c Contract) Validate(ctx context.Context, src ValueSource) error {
	return Validate(ctx, c.fields, src)
}

// Builder turns declarative options into field contracts. A Builder is
// immutable after NewBuilder and may be shared.
type Builder struct {
	lookup   Lookup
	reporter Reporter
	cfg      Config
	env      *cel.Env
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLookup sets the collaborator used by model-backed fields.
func WithLookup(l Lookup) BuilderOption {
	return func(b *Builder) { b.lookup = l }
}

// WithBuilderReporter sets where validator faults are reported.
func WithBuilderReporter(r Reporter) BuilderOption {
	return func(b *Builder) { b.reporter = r }
}

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) BuilderOption {
	return func(b *Builder) { b.cfg = cfg }
}

// NewBuilder returns a Builder.
func NewBuilder(opts ...BuilderOption) (*Builder, error) {
	b := &Builder{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(b)
	}
	if b.reporter == nil {
		b.reporter = b.cfg.Reporter()
	}
	env, err := newExprEnv()
	if err != nil {
		return nil, configErrorf("", "expr", "create CEL environment: %v", err)
	}
	b.env = env
	return b, nil
}

// Field builds one field contract.
func (b *Builder) Field(opts FieldOptions) (FieldContract, error) {
	if opts.Name == "" {
		return FieldContract{}, configErrorf("", "name", "field name is required")
	}
	var validators []Validator

	if len(opts.Type) > 0 {
		for _, tag := range opts.Type {
			if !knownTag(tag) {
				return FieldContract{}, configErrorf(opts.Name, "type", "unknown type tag %q", tag)
			}
		}
		validators = append(validators, TypeValidator{
			Allowed: append([]TypeTag(nil), opts.Type...),
			Message: opts.TypeMessage,
		})
	}

	if opts.Model != nil {
		if b.lookup == nil {
			return FieldContract{}, configErrorf(opts.Name, "model", "model-backed field requires a Lookup")
		}
		kind := opts.Model.Kind
		if kind == "" {
			kind = InferKind(opts.Name, b.cfg.IDSuffix)
		}
		relation := opts.Model.Relation
		if relation == "" {
			relation = strings.TrimSuffix(opts.Name, b.cfg.IDSuffix)
		}
		validators = append(validators, ExistenceValidator{
			LookupKind: kind,
			Relation:   relation,
			Lookup:     b.lookup,
			Reporter:   b.reporter,
		})
	}

	if opts.Expr != "" {
		ev, err := compileExpr(b.env, opts.Name, opts.Expr, opts.Message, b.reporter)
		if err != nil {
			return FieldContract{}, err
		}
		validators = append(validators, ev)
	}

	for _, fn := range opts.Custom {
		if fn == nil {
			return FieldContract{}, configErrorf(opts.Name, "custom", "nil check")
		}
		validators = append(validators, CustomValidator{Check: fn, Reporter: b.reporter})
	}

	return FieldContract{name: opts.Name, validators: validators}, nil
}

// Contract builds a contract from several field options.
func (b *Builder) Contract(opts ...FieldOptions) (Contract, error) {
	fields := make([]FieldContract, 0, len(opts))
	for _, o := range opts {
		f, err := b.Field(o)
		if err != nil {
			return Contract{}, err
		}
		fields = append(fields, f)
	}
	return NewContract(fields...)
}

// contractDocument is the YAML shape accepted by LoadYAML.
type contractDocument struct {
	Fields []FieldOptions `yaml:"fields"`
}

// LoadYAML builds a contract from a YAML document of the form
//
//	fields:
//	  - name: order_id
//	    type: [uuid]
//	    model: {kind: Order}
//	  - name: quantity
//	    type: [integer]
//	    expr: value > 0
//
// Unknown keys are rejected.
func (b *Builder) LoadYAML(data []byte) (Contract, error) {
	var doc contractDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Contract{}, configErrorf("", "yaml", "decode contract: %v", err)
	}
	return b.Contract(doc.Fields...)
}

// InferKind derives a lookup kind from a field name: the identifier suffix
// is stripped and the remainder is camel-cased, so "line_item_id" becomes
// "LineItem".
func InferKind(field, suffix string) string {
	base := strings.TrimSuffix(field, suffix)
	parts := strings.FieldsFunc(base, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	caser := cases.Title(language.Und, cases.NoLower)
	for i, p := range parts {
		parts[i] = caser.String(p)
	}
	return strings.Join(parts, "")
}
