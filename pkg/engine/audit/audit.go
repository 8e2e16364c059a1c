// Package audit maintains the append-only action audit trail. Rows are
// never modified after insert.
package audit

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wastelens/wastelens/pkg/engine/wasteerr"
	"github.com/wastelens/wastelens/pkg/resource"
	"github.com/wastelens/wastelens/pkg/store"
)

// Log writes and reads the audit table.
type Log struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewLog builds an audit log over the store.
func NewLog(st store.Store, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{store: st, logger: logger, now: time.Now}
}

// Append inserts one entry. Missing id and timestamp are filled in.
func (l *Log) Append(ctx context.Context, entry resource.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = l.now()
	}
	if err := l.store.Insert(ctx, entry); err != nil {
		l.logger.Error("audit append failed",
			slog.String("action", entry.Action),
			slog.String("resource_id", entry.ResourceID),
			slog.Any("error", err))
		return wasteerr.Storef("audit append: %v", err)
	}
	return nil
}

// Recent returns the most recent entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]resource.AuditEntry, error) {
	entries, err := store.All[resource.AuditEntry](ctx, l.store)
	if err != nil {
		return nil, wasteerr.Storef("audit read: %v", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ExecutedAt.After(entries[j].ExecutedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
