// Package mode persists the per-account execution mode. Only the
// drift-tick's auto-execution pass consults it.
package mode

import (
	"context"
	"fmt"
	"time"

	"github.com/wastelens/wastelens/pkg/engine/wasteerr"
	"github.com/wastelens/wastelens/pkg/resource"
	"github.com/wastelens/wastelens/pkg/store"
)

// Manager reads and writes execution mode records.
type Manager struct {
	store store.Store
	now   func() time.Time
}

// NewManager builds a mode manager over the store.
func NewManager(st store.Store) *Manager {
	return &Manager{store: st, now: time.Now}
}

// Get returns the account's mode, defaulting to manual when no record
// exists.
func (m *Manager) Get(ctx context.Context, accountID string) (string, error) {
	rec, ok, err := store.ByKey[resource.ExecutionMode](ctx, m.store, "account_id", accountID)
	if err != nil {
		return "", wasteerr.Storef("get execution mode %s: %v", accountID, err)
	}
	if !ok {
		return resource.ModeManual, nil
	}
	return rec.Mode, nil
}

// Set writes the account's mode.
func (m *Manager) Set(ctx context.Context, accountID, value string) error {
	if value != resource.ModeManual && value != resource.ModeAutomated {
		return fmt.Errorf("invalid execution mode %q", value)
	}
	rec := resource.ExecutionMode{
		AccountID: accountID,
		Mode:      value,
		UpdatedAt: m.now(),
	}
	_, exists, err := store.ByKey[resource.ExecutionMode](ctx, m.store, "account_id", accountID)
	if err != nil {
		return wasteerr.Storef("get execution mode %s: %v", accountID, err)
	}
	if exists {
		if err := m.store.Update(ctx, rec); err != nil {
			return wasteerr.Storef("update execution mode %s: %v", accountID, err)
		}
		return nil
	}
	if err := m.store.Insert(ctx, rec); err != nil {
		return wasteerr.Storef("insert execution mode %s: %v", accountID, err)
	}
	return nil
}
