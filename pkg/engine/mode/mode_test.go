package mode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastelens/wastelens/pkg/resource"
	"github.com/wastelens/wastelens/pkg/store"
)

func TestGetDefaultsToManual(t *testing.T) {
	m := NewManager(store.NewMemoryStore())

	got, err := m.Get(context.Background(), "acct-001")
	require.NoError(t, err)
	assert.Equal(t, resource.ModeManual, got)
}

func TestSetAndOverwrite(t *testing.T) {
	m := NewManager(store.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "acct-001", resource.ModeAutomated))
	got, err := m.Get(ctx, "acct-001")
	require.NoError(t, err)
	assert.Equal(t, resource.ModeAutomated, got)

	require.NoError(t, m.Set(ctx, "acct-001", resource.ModeManual))
	got, err = m.Get(ctx, "acct-001")
	require.NoError(t, err)
	assert.Equal(t, resource.ModeManual, got)
}

func TestSetRejectsUnknownMode(t *testing.T) {
	m := NewManager(store.NewMemoryStore())
	assert.Error(t, m.Set(context.Background(), "acct-001", "yolo"))
}
