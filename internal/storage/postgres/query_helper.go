package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// rowScanner reads the columns of one select row into a model.
type rowScanner[T any] func(row pgx.Row) (*T, error)

// queryOne returns nil, nil when no row matches.
func queryOne[T any](ctx context.Context, pool *pgxpool.Pool, scan rowScanner[T], query string, args ...any) (*T, error) {
	item, err := scan(pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func queryMany[T any](ctx context.Context, pool *pgxpool.Pool, scan rowScanner[T], query string, args ...any) ([]*T, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*T, error) {
		return scan(row)
	})
}

// execBatch queues query once per item and sends the whole batch in one
// round trip. Close reports the first statement that failed.
func execBatch[T any](ctx context.Context, pool *pgxpool.Pool, query string, items []T, args func(T) ([]any, error)) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, item := range items {
		a, err := args(item)
		if err != nil {
			return err
		}
		batch.Queue(query, a...)
	}
	return pool.SendBatch(ctx, batch).Close()
}

func infallible[T any](args func(T) []any) func(T) ([]any, error) {
	return func(item T) ([]any, error) { return args(item), nil }
}
