// Package db holds the Postgres bulk-write helpers used by the store.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// RowFunc maps one record to the values of a COPY row, in column order.
type RowFunc[T any] func(T) []any

// CopyRecords streams records into table over the COPY protocol and returns
// the number of rows written.
func CopyRecords[T any](ctx context.Context, pool Pool, table string, columns []string, records []T, row RowFunc[T]) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	src := pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		return row(records[i]), nil
	})
	n, err := pool.CopyFrom(ctx, identifier(table), columns, src)
	if err != nil {
		return 0, eris.Wrapf(err, "db: copy %d rows into %s", len(records), table)
	}
	return n, nil
}
