package sqllookup_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/action"
	"github.com/bjaus/action/sqllookup"
)

func openOrders(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqllookup.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE orders (id TEXT PRIMARY KEY, status TEXT NOT NULL);
		INSERT INTO orders (id, status) VALUES ('o-2', 'pending'), ('o-1', 'shipped');
	`)
	require.NoError(t, err)
	return db
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	l, err := sqllookup.New(openOrders(t), sqllookup.WithTable("Order", "orders", "id"))
	require.NoError(t, err)

	t.Run("find by id", func(t *testing.T) {
		got, err := l.FindByID(ctx, "Order", "o-1")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": "o-1", "status": "shipped"}, got)
	})

	t.Run("missing row", func(t *testing.T) {
		got, err := l.FindByID(ctx, "Order", "o-9")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("all of is ordered by id", func(t *testing.T) {
		all, err := l.AllOf(ctx, "Order")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "o-1", all[0].(map[string]any)["id"])
		assert.Equal(t, "o-2", all[1].(map[string]any)["id"])
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := l.FindByID(ctx, "Invoice", 1)
		assert.ErrorIs(t, err, sqllookup.ErrUnknownKind)
		_, err = l.AllOf(ctx, "Invoice")
		assert.ErrorIs(t, err, sqllookup.ErrUnknownKind)
	})
}

func TestNew_RejectsUnsafeIdentifiers(t *testing.T) {
	db := openOrders(t)

	_, err := sqllookup.New(db, sqllookup.WithTable("Order", "orders; DROP TABLE orders", "id"))
	assert.Error(t, err)

	_, err = sqllookup.New(db, sqllookup.WithTable("Order", "orders", "id --"))
	assert.Error(t, err)

	_, err = sqllookup.New(nil)
	assert.Error(t, err)
}

func TestLookup_BacksModelFields(t *testing.T) {
	ctx := context.Background()
	l, err := sqllookup.New(openOrders(t), sqllookup.WithTable("Order", "orders", "id"))
	require.NoError(t, err)

	b, err := action.NewBuilder(action.WithLookup(l), action.WithBuilderReporter(action.NopReporter()))
	require.NoError(t, err)
	c, err := b.Contract(action.FieldOptions{Name: "order_id", Model: &action.ModelOptions{}})
	require.NoError(t, err)

	assert.NoError(t, c.Validate(ctx, action.MapPayload(map[string]any{"order_id": "o-2"})))
	err = c.Validate(ctx, action.MapPayload(map[string]any{"order_id": "o-9"}))
	assert.ErrorIs(t, err, action.ErrValidation)

	batch, err := action.NewBatch(c, "order_id", action.BatchOptions{
		Enqueue: action.EnqueueFunc(func(context.Context, map[string]any) error { return nil }),
	})
	require.NoError(t, err)
	n, err := batch.EnqueueAll(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLookup_QueryFailureIsFault(t *testing.T) {
	ctx := context.Background()
	db := openOrders(t)
	l, err := sqllookup.New(db, sqllookup.WithTable("Order", "missing_table", "id"))
	require.NoError(t, err)

	b, err := action.NewBuilder(action.WithLookup(l), action.WithBuilderReporter(action.NopReporter()))
	require.NoError(t, err)
	f, err := b.Field(action.FieldOptions{Name: "order_id", Model: &action.ModelOptions{}})
	require.NoError(t, err)

	err = action.ValidateValue(ctx, f, "o-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error raised while trying to find a valid Order")
}
