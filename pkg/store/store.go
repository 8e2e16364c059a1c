// Package store provides the table-oriented resource store consumed by the
// engine. Two implementations exist: an in-memory store used by tests and
// the demo world, and a postgres-backed store for durable deployments.
// Per-row atomicity is guaranteed; cross-table transactions are not.
package store

import (
	"context"

	"github.com/wastelens/wastelens/pkg/resource"
)

// Store is the narrow interface the engine depends on.
type Store interface {
	// SelectAll returns every row of a table.
	SelectAll(ctx context.Context, table string) ([]resource.Record, error)

	// SelectByKey returns the first row whose field matches value, or nil
	// when no row matches. "id" addresses the primary key; any natural key
	// field the row exposes is also accepted.
	SelectByKey(ctx context.Context, table, field, value string) (resource.Record, error)

	// Insert adds a row.
	Insert(ctx context.Context, rec resource.Record) error

	// Update replaces the row with the same primary key.
	Update(ctx context.Context, rec resource.Record) error

	// Delete removes a row by primary key.
	Delete(ctx context.Context, table, id string) error

	// Upsert inserts rows in bulk. With ignoreDuplicates, rows whose
	// conflict fields collide with an existing row are silently dropped.
	Upsert(ctx context.Context, recs []resource.Record, conflictFields []string, ignoreDuplicates bool) error
}

// All fetches a full table as its concrete row type.
func All[T resource.Record](ctx context.Context, s Store) ([]T, error) {
	var zero T
	rows, err := s.SelectAll(ctx, zero.TableName())
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if typed, ok := r.(T); ok {
			out = append(out, typed)
		}
	}
	return out, nil
}

// ByKey fetches one row by field as its concrete row type. The boolean
// reports whether a row matched.
func ByKey[T resource.Record](ctx context.Context, s Store, field, value string) (T, bool, error) {
	var zero T
	row, err := s.SelectByKey(ctx, zero.TableName(), field, value)
	if err != nil {
		return zero, false, err
	}
	if row == nil {
		return zero, false, nil
	}
	typed, ok := row.(T)
	return typed, ok, nil
}

// Records converts a typed slice to the interface slice Upsert accepts.
func Records[T resource.Record](rows []T) []resource.Record {
	out := make([]resource.Record, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}
