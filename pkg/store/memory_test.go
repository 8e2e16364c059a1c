package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastelens/wastelens/pkg/engine/wasteerr"
	"github.com/wastelens/wastelens/pkg/resource"
)

func instance(id, naturalID string) resource.Instance {
	return resource.Instance{
		Meta:       resource.Meta{ID: id, AccountID: "acct-001"},
		InstanceID: naturalID,
		Name:       "srv-" + id,
		State:      resource.InstanceRunning,
	}
}

func TestInsertAndSelectAll(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Insert(ctx, instance("a", "i-a")))
	require.NoError(t, st.Insert(ctx, instance("b", "i-b")))

	rows, err := All[resource.Instance](ctx, st)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// Other tables stay empty.
	vols, err := All[resource.Volume](ctx, st)
	require.NoError(t, err)
	assert.Empty(t, vols)
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Insert(ctx, instance("a", "i-a")))
	err := st.Insert(ctx, instance("a", "i-other"))
	assert.ErrorIs(t, err, wasteerr.ErrStore)
}

func TestSelectByKeyPrimaryAndNatural(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Insert(ctx, instance("a", "i-abc")))

	byID, ok, err := ByKey[resource.Instance](ctx, st, "id", "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "i-abc", byID.InstanceID)

	byNatural, ok, err := ByKey[resource.Instance](ctx, st, "instance_id", "i-abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", byNatural.ID)

	_, ok, err = ByKey[resource.Instance](ctx, st, "id", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdate(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	in := instance("a", "i-a")
	require.NoError(t, st.Insert(ctx, in))

	in.State = resource.InstanceStopped
	require.NoError(t, st.Update(ctx, in))

	got, ok, err := ByKey[resource.Instance](ctx, st, "id", "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resource.InstanceStopped, got.State)

	assert.ErrorIs(t, st.Update(ctx, instance("ghost", "i-g")), wasteerr.ErrNotFound)
}

func TestDelete(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Insert(ctx, instance("a", "i-a")))

	require.NoError(t, st.Delete(ctx, resource.TableInstances, "a"))
	_, ok, err := ByKey[resource.Instance](ctx, st, "id", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, st.Delete(ctx, resource.TableInstances, "a"), wasteerr.ErrNotFound)
}

func metric(id, resourceID string, date time.Time) resource.DailyMetric {
	return resource.DailyMetric{
		ID:           id,
		AccountID:    "acct-001",
		ResourceType: resource.TableInstances,
		ResourceID:   resourceID,
		Date:         date,
		Cost:         1.5,
	}
}

func TestUpsertIgnoresConflicts(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	day := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	conflict := []string{"account_id", "resource_type", "resource_id", "date"}

	require.NoError(t, st.Upsert(ctx, Records([]resource.DailyMetric{
		metric("m1", "res-1", day),
	}), conflict, true))

	// Same (account, type, resource, date) under a new row id: dropped.
	require.NoError(t, st.Upsert(ctx, Records([]resource.DailyMetric{
		metric("m2", "res-1", day),
		metric("m3", "res-1", day.AddDate(0, 0, 1)),
	}), conflict, true))

	rows, err := All[resource.DailyMetric](ctx, st)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestUpsertConflictErrorWithoutIgnore(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	day := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	conflict := []string{"account_id", "resource_type", "resource_id", "date"}

	require.NoError(t, st.Upsert(ctx, Records([]resource.DailyMetric{metric("m1", "res-1", day)}), conflict, true))
	err := st.Upsert(ctx, Records([]resource.DailyMetric{metric("m2", "res-1", day)}), conflict, false)
	assert.ErrorIs(t, err, wasteerr.ErrStore)
}

func TestContextCancellation(t *testing.T) {
	st := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.SelectAll(ctx, resource.TableInstances)
	assert.Error(t, err)
	assert.Error(t, st.Insert(ctx, instance("a", "i-a")))
}
