package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastelens/wastelens/pkg/resource"
	"github.com/wastelens/wastelens/pkg/store"
)

func TestAppendFillsIDAndTimestamp(t *testing.T) {
	st := store.NewMemoryStore()
	l := NewLog(st, nil)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, resource.AuditEntry{
		Action:     "stop_instance",
		ResourceID: "res-1",
		Success:    true,
	}))

	entries, err := store.All[resource.AuditEntry](ctx, st)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].ExecutedAt.IsZero())
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	st := store.NewMemoryStore()
	l := NewLog(st, nil)
	ctx := context.Background()

	base := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)
	for i, action := range []string{"first", "second", "third"} {
		require.NoError(t, l.Append(ctx, resource.AuditEntry{
			Action:     action,
			ExecutedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := l.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "third", entries[0].Action)
	assert.Equal(t, "first", entries[2].Action)

	limited, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "third", limited[0].Action)
}
