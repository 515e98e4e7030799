// Package db provides the Postgres pool abstraction and bulk copy helper.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyRows bulk-inserts items into table with the COPY protocol, mapping each
// item to one row of column values in columns order. An empty slice is a no-op.
func CopyRows[T any](ctx context.Context, pool Pool, table string, columns []string, items []T, row func(T) []any) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	src := pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
		return row(items[i]), nil
	})
	n, err := pool.CopyFrom(ctx, pgx.Identifier{table}, columns, src)
	if err != nil {
		return 0, eris.Wrapf(err, "db: copy into %s", table)
	}
	return n, nil
}
