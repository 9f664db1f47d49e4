// Package sqllookup implements action.Lookup over SQL tables, one table per
// lookup kind. Rows are returned as map[string]any keyed by column name.
package sqllookup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite"

	"github.com/bjaus/action"
)

// ErrUnknownKind is returned for a kind with no registered table.
var ErrUnknownKind = errors.New("unknown lookup kind")

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var _ action.Lookup = (*Lookup)(nil)

type table struct {
	name     string
	idColumn string
}

// Lookup resolves entities from SQL tables.
type Lookup struct {
	db     *sql.DB
	tables map[string]table
}

// Option configures a Lookup.
type Option func(*Lookup)

// WithTable maps kind to a table and its identifier column.
func WithTable(kind, tableName, idColumn string) Option {
	return func(l *Lookup) {
		l.tables[kind] = table{name: tableName, idColumn: idColumn}
	}
}

// New returns a Lookup over db. Table and column names are validated as
// plain SQL identifiers since they are interpolated into queries.
func New(db *sql.DB, opts ...Option) (*Lookup, error) {
	if db == nil {
		return nil, errors.New("sqllookup: nil db")
	}
	l := &Lookup{db: db, tables: make(map[string]table)}
	for _, opt := range opts {
		opt(l)
	}
	for kind, t := range l.tables {
		if !identifier.MatchString(t.name) || !identifier.MatchString(t.idColumn) {
			return nil, fmt.Errorf("sqllookup: kind %s: invalid table %q or column %q", kind, t.name, t.idColumn)
		}
	}
	return l, nil
}

// Open opens a SQLite database. In-memory databases are pinned to a single
// connection so every query sees the same data.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// FindByID implements action.Lookup. A missing row yields (nil, nil).
func (l *Lookup) FindByID(ctx context.Context, kind string, id any) (any, error) {
	t, ok := l.tables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	query := fmt.Sprintf(`SELECT * FROM %s WHERE %s = ? LIMIT 1`, t.name, t.idColumn)
	rows, err := l.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", kind, err)
	}
	found, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", kind, err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// AllOf implements action.Lookup. Rows are ordered by identifier.
func (l *Lookup) AllOf(ctx context.Context, kind string) ([]any, error) {
	t, ok := l.tables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	query := fmt.Sprintf(`SELECT * FROM %s ORDER BY %s`, t.name, t.idColumn)
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	found, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	out := make([]any, len(found))
	for i, row := range found {
		out[i] = row
	}
	return out, nil
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
