package action

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T, lookup Lookup) *Builder {
	t.Helper()
	b, err := NewBuilder(WithLookup(lookup), WithBuilderReporter(NopReporter()))
	require.NoError(t, err)
	return b
}

func TestInferKind(t *testing.T) {
	tests := map[string]struct {
		field  string
		suffix string
		want   string
	}{
		"simple":         {"order_id", "_id", "Order"},
		"multi word":     {"line_item_id", "_id", "LineItem"},
		"no suffix":      {"customer", "_id", "Customer"},
		"custom suffix":  {"orderRef", "Ref", "Order"},
		"dashed":         {"gift-card_id", "_id", "GiftCard"},
		"already camel":  {"LineItem_id", "_id", "LineItem"},
		"suffix is name": {"_id", "_id", ""},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferKind(tt.field, tt.suffix))
		})
	}
}

func TestBuilder_Field(t *testing.T) {
	lookup := NewMemoryLookup()
	b := newTestBuilder(t, lookup)

	t.Run("builds validators in fixed order", func(t *testing.T) {
		f, err := b.Field(FieldOptions{
			Name:   "order_id",
			Type:   []TypeTag{TagString},
			Model:  &ModelOptions{},
			Expr:   "size(value) > 2",
			Custom: []CustomFunc{func(context.Context, any) (string, error) { return "", nil }},
		})
		require.NoError(t, err)

		kinds := make([]Kind, 0)
		for _, v := range f.Validators() {
			kinds = append(kinds, v.Kind())
		}
		assert.Equal(t, []Kind{KindType, KindExistence, KindCustom, KindCustom}, kinds)
	})

	t.Run("infers lookup kind and relation", func(t *testing.T) {
		f, err := b.Field(FieldOptions{Name: "order_id", Model: &ModelOptions{}})
		require.NoError(t, err)

		kind, ok := f.LookupKind()
		assert.True(t, ok)
		assert.Equal(t, "Order", kind)
		ev := f.Validators()[0].(ExistenceValidator)
		assert.Equal(t, "order", ev.Relation)
	})

	t.Run("explicit kind wins", func(t *testing.T) {
		f, err := b.Field(FieldOptions{Name: "buyer_id", Model: &ModelOptions{Kind: "Customer"}})
		require.NoError(t, err)
		kind, _ := f.LookupKind()
		assert.Equal(t, "Customer", kind)
	})

	t.Run("field without model has no lookup kind", func(t *testing.T) {
		f, err := b.Field(FieldOptions{Name: "note", Type: []TypeTag{TagString}})
		require.NoError(t, err)
		_, ok := f.LookupKind()
		assert.False(t, ok)
	})

	configErrors := map[string]FieldOptions{
		"missing name":     {Type: []TypeTag{TagString}},
		"unknown type tag": {Name: "x", Type: []TypeTag{"decimal"}},
		"bad expression":   {Name: "x", Expr: "value >"},
		"nil custom":       {Name: "x", Custom: []CustomFunc{nil}},
	}
	for name, opts := range configErrors {
		t.Run(name, func(t *testing.T) {
			_, err := b.Field(opts)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}

	t.Run("model without lookup", func(t *testing.T) {
		nb, err := NewBuilder()
		require.NoError(t, err)
		_, err = nb.Field(FieldOptions{Name: "order_id", Model: &ModelOptions{}})
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("configured id suffix", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.IDSuffix = "Id"
		nb, err := NewBuilder(WithLookup(lookup), WithConfig(cfg))
		require.NoError(t, err)
		f, err := nb.Field(FieldOptions{Name: "orderId", Model: &ModelOptions{}})
		require.NoError(t, err)
		kind, _ := f.LookupKind()
		assert.Equal(t, "Order", kind)
	})
}

func TestFieldContract_OptionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	lookup := NewMemoryLookup()
	known := uuid.NewString()
	lookup.Add("Order", known, "order")
	b := newTestBuilder(t, lookup)

	fields := []FieldOptions{
		{Name: "order_id", Type: []TypeTag{TagUUID}, Model: &ModelOptions{}},
		{Name: "count", Type: []TypeTag{TagInteger}, Expr: "value < 100", Message: "too many"},
		{Name: "flag", Type: []TypeTag{TagBoolean}},
		{Name: "label", Type: []TypeTag{TagString}, TypeMessage: "must be text"},
	}
	values := []any{
		known,
		uuid.NewString(),
		"not-a-uuid",
		"",
		nil,
		false,
		true,
		"text",
		5,
		500,
		2.5,
	}

	for _, opts := range fields {
		original, err := b.Field(opts)
		require.NoError(t, err)

		rebuilt, err := b.Field(original.Options())
		require.NoError(t, err)
		assert.Equal(t, original.Options().Name, rebuilt.Options().Name)

		for _, v := range values {
			want := ValidateValue(ctx, original, v)
			got := ValidateValue(ctx, rebuilt, v)
			assert.Equal(t, want == nil, got == nil, "field %s value %#v", opts.Name, v)
			if want != nil && got != nil {
				assert.Equal(t, want.Error(), got.Error())
			}
		}
	}
}

func TestContract(t *testing.T) {
	b := newTestBuilder(t, NewMemoryLookup())

	t.Run("rejects duplicate fields", func(t *testing.T) {
		_, err := b.Contract(FieldOptions{Name: "a"}, FieldOptions{Name: "a"})
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("keeps declaration order", func(t *testing.T) {
		c, err := b.Contract(FieldOptions{Name: "b"}, FieldOptions{Name: "a"}, FieldOptions{Name: "c"})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a", "c"}, c.Names())
	})

	t.Run("subset keeps declaration order", func(t *testing.T) {
		c, err := b.Contract(FieldOptions{Name: "b"}, FieldOptions{Name: "a"}, FieldOptions{Name: "c"})
		require.NoError(t, err)
		sub, err := c.Subset("c", "b")
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, sub.Names())
	})

	t.Run("subset of unknown field", func(t *testing.T) {
		c, err := b.Contract(FieldOptions{Name: "a"})
		require.NoError(t, err)
		_, err = c.Subset("z")
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestBuilder_LoadYAML(t *testing.T) {
	ctx := context.Background()
	lookup := NewMemoryLookup()
	lookup.Add("Order", "o-1", "order")
	b := newTestBuilder(t, lookup)

	t.Run("builds contract", func(t *testing.T) {
		c, err := b.LoadYAML([]byte(`
fields:
  - name: order_id
    type: [string]
    model: {}
  - name: quantity
    type: [integer]
    expr: value > 0
    message: must be positive
`))
		require.NoError(t, err)
		assert.Equal(t, []string{"order_id", "quantity"}, c.Names())

		err = c.Validate(ctx, MapPayload(map[string]any{"order_id": "o-2", "quantity": 0}))
		var failure *ValidationFailure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, []string{"order_id", "quantity"}, failure.Fields())
		assert.Equal(t, []string{"must be positive"}, failure.Messages("quantity"))
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		_, err := b.LoadYAML([]byte(`
fields:
  - name: a
    required: true
`))
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("rejects unknown tag", func(t *testing.T) {
		_, err := b.LoadYAML([]byte(`
fields:
  - name: a
    type: [decimal]
`))
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}
