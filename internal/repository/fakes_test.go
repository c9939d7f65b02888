package repository

import (
	"context"
	"reflect"

	"github.com/jackc/pgx/v5"
)

// fakeRow scans fixed values, or fails with err.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

// fakeQuerier answers every QueryRow with row and remembers the statement.
type fakeQuerier struct {
	row  fakeRow
	sql  []string
	args [][]any
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.sql = append(q.sql, sql)
	q.args = append(q.args, args)
	return q.row
}
