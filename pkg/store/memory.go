package store

import (
	"context"
	"sync"

	"github.com/wastelens/wastelens/pkg/engine/wasteerr"
	"github.com/wastelens/wastelens/pkg/resource"
)

// fielder lets a row expose arbitrary fields for upsert conflict checks.
type fielder interface {
	Field(name string) (string, bool)
}

// MemoryStore is the in-process reference implementation of Store.
// Row values are copied in and out, so callers never share mutable state
// with the store. All operations honour context cancellation.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]resource.Record
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]resource.Record)}
}

func (m *MemoryStore) SelectAll(ctx context.Context, table string) ([]resource.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.tables[table]
	out := make([]resource.Record, len(rows))
	copy(out, rows)
	return out, nil
}

func (m *MemoryStore) SelectByKey(ctx context.Context, table, field, value string) (resource.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.tables[table] {
		if matchField(rec, field, value) {
			return rec, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) Insert(ctx context.Context, rec resource.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	table := rec.TableName()
	for _, existing := range m.tables[table] {
		if existing.RecordID() == rec.RecordID() {
			return wasteerr.Storef("duplicate id %q in table %q", rec.RecordID(), table)
		}
	}
	m.tables[table] = append(m.tables[table], rec)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, rec resource.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	table := rec.TableName()
	for i, existing := range m.tables[table] {
		if existing.RecordID() == rec.RecordID() {
			m.tables[table][i] = rec
			return nil
		}
	}
	return wasteerr.NotFoundf("update: no row %q in table %q", rec.RecordID(), table)
}

func (m *MemoryStore) Delete(ctx context.Context, table, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.tables[table]
	for i, existing := range rows {
		if existing.RecordID() == id {
			m.tables[table] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return wasteerr.NotFoundf("delete: no row %q in table %q", id, table)
}

func (m *MemoryStore) Upsert(ctx context.Context, recs []resource.Record, conflictFields []string, ignoreDuplicates bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	table := recs[0].TableName()
	for _, rec := range recs {
		dup := false
		for _, existing := range m.tables[table] {
			if conflicts(existing, rec, conflictFields) {
				dup = true
				break
			}
		}
		if dup {
			if ignoreDuplicates {
				continue
			}
			return wasteerr.Storef("upsert conflict in table %q", table)
		}
		m.tables[table] = append(m.tables[table], rec)
	}
	return nil
}

func matchField(rec resource.Record, field, value string) bool {
	if field == "id" {
		return rec.RecordID() == value
	}
	if v, ok := rec.Keys()[field]; ok && v == value {
		return true
	}
	if f, ok := rec.(fielder); ok {
		if v, ok := f.Field(field); ok && v == value {
			return true
		}
	}
	return false
}

func conflicts(a, b resource.Record, fields []string) bool {
	if len(fields) == 0 {
		return a.RecordID() == b.RecordID()
	}
	for _, field := range fields {
		av, aok := fieldValue(a, field)
		bv, bok := fieldValue(b, field)
		if !aok || !bok || av != bv {
			return false
		}
	}
	return true
}

func fieldValue(rec resource.Record, field string) (string, bool) {
	if field == "id" {
		return rec.RecordID(), true
	}
	if v, ok := rec.Keys()[field]; ok {
		return v, true
	}
	if f, ok := rec.(fielder); ok {
		return f.Field(field)
	}
	return "", false
}
