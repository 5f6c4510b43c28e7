package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type SimpleRow struct {
	scan func(dest ...any) error
}

func NewSimpleRow(scanner func(dest ...any) error) SimpleRow {
	return SimpleRow{scan: scanner}
}

func (r SimpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type TestRowsBase struct{}

func (TestRowsBase) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (TestRowsBase) Conn() *pgx.Conn { return nil }

func (TestRowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (TestRowsBase) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (TestRowsBase) RawValues() [][]byte { return nil }

// stubRows yields one Scan callback per row.
type stubRows struct {
	TestRowsBase
	scans []func(dest ...any) error
	idx   int
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.scans) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.scans) {
		return pgx.ErrNoRows
	}
	return r.scans[r.idx-1](dest...)
}

func (r *stubRows) Err() error { return nil }

func (r *stubRows) Close() {}

// fakeExecutor scripts one response per call shape and records the SQL it was
// handed so tests can check the clauses that carry the semantics.
type fakeExecutor struct {
	execTag pgconn.CommandTag
	execErr error
	row     pgx.Row
	rows    pgx.Rows

	lastSQL  string
	lastArgs []any
}

func (f *fakeExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL, f.lastArgs = query, args
	return f.execTag, f.execErr
}

func (f *fakeExecutor) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	f.lastSQL, f.lastArgs = query, args
	if f.row == nil {
		return SimpleRow{}
	}
	return f.row
}

func (f *fakeExecutor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	f.lastSQL, f.lastArgs = query, args
	if f.rows == nil {
		return &stubRows{}, nil
	}
	return f.rows, nil
}

var _ SQLExecutor = (*fakeExecutor)(nil)
