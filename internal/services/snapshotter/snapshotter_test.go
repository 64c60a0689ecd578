package snapshotter

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/stashd/internal/domain"
	"github.com/vadiminshakov/stashd/internal/storage/stash"
	"go.uber.org/zap"
)

type fakeGuard struct {
	running atomic.Bool
}

func (g *fakeGuard) Running() bool { return g.running.Load() }

func newTestStore(t *testing.T) *stash.Store {
	t.Helper()
	st, err := stash.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	price := decimal.RequireFromString("1.50")
	require.NoError(t, st.SaveCatalog(domain.Catalog{Lists: []domain.List{
		{Name: domain.DashboardList},
		{Name: "Cases", Items: []domain.Item{
			{Name: "Chroma Case", Quantity: 2, CurrentPrice: &price},
		}},
	}}))
	require.NoError(t, st.SaveSettings(domain.Settings{
		RefreshIntervalMinutes: 60,
		SnapshotTimeOfDay:      "19:00",
	}))
	return st
}

func newTestSnapshotter(t *testing.T, st *stash.Store, guard refreshGuard, now time.Time) *Snapshotter {
	t.Helper()
	return New(st, guard, time.UTC, zap.NewNop(),
		WithIdlePoll(time.Millisecond),
		withNow(func() time.Time { return now }),
	)
}

func TestNoSnapshotBeforeConfiguredTime(t *testing.T) {
	st := newTestStore(t)
	s := newTestSnapshotter(t, st, &fakeGuard{}, time.Date(2025, 6, 1, 18, 59, 0, 0, time.UTC))

	require.NoError(t, s.MaybeSnapshot(context.Background()))

	_, ok, err := st.Snapshot(domain.DashboardScope, "2025-06-01")
	require.NoError(t, err)
	require.False(t, ok, "too early, nothing to capture")
}

func TestSnapshotCapturedOnceAfterDue(t *testing.T) {
	st := newTestStore(t)
	s := newTestSnapshotter(t, st, &fakeGuard{}, time.Date(2025, 6, 1, 19, 0, 30, 0, time.UTC))

	require.NoError(t, s.MaybeSnapshot(context.Background()))

	rec, ok, err := st.Snapshot(domain.DashboardScope, "2025-06-01")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, rec.Value.Equal(decimal.RequireFromString("3.00")), "2 x 1.50, Dashboard excluded")

	// the same day never snapshots twice, whatever changed in between
	newPrice := decimal.NewFromInt(100)
	cat, err := st.Catalog()
	require.NoError(t, err)
	cat.FindList("Cases").Items[0].CurrentPrice = &newPrice
	require.NoError(t, st.SaveCatalog(cat))

	require.NoError(t, s.MaybeSnapshot(context.Background()))

	rec, _, err = st.Snapshot(domain.DashboardScope, "2025-06-01")
	require.NoError(t, err)
	require.True(t, rec.Value.Equal(decimal.RequireFromString("3.00")), "no overwrite on the second check")

	all, err := st.Snapshots()
	require.NoError(t, err)
	require.Len(t, all, 1, "no duplicate record")
}

func TestSnapshotNextDayGetsOwnRecord(t *testing.T) {
	st := newTestStore(t)

	s := newTestSnapshotter(t, st, &fakeGuard{}, time.Date(2025, 6, 1, 19, 5, 0, 0, time.UTC))
	require.NoError(t, s.MaybeSnapshot(context.Background()))

	s = newTestSnapshotter(t, st, &fakeGuard{}, time.Date(2025, 6, 2, 19, 5, 0, 0, time.UTC))
	require.NoError(t, s.MaybeSnapshot(context.Background()))

	all, err := st.Snapshots()
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestSnapshotWaitsForRefreshToFinish(t *testing.T) {
	st := newTestStore(t)
	guard := &fakeGuard{}
	guard.running.Store(true)

	s := newTestSnapshotter(t, st, guard, time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC))

	done := make(chan error, 1)
	go func() { done <- s.MaybeSnapshot(context.Background()) }()

	select {
	case <-done:
		t.Fatal("capture must be delayed while a refresh cycle is in flight")
	case <-time.After(20 * time.Millisecond):
	}

	_, ok, err := st.Snapshot(domain.DashboardScope, "2025-06-01")
	require.NoError(t, err)
	require.False(t, ok, "nothing captured while the guard is up")

	guard.running.Store(false)
	require.NoError(t, <-done)

	_, ok, err = st.Snapshot(domain.DashboardScope, "2025-06-01")
	require.NoError(t, err)
	require.True(t, ok, "captured once the guard cleared")
}

func TestSnapshotRespectsReferenceTimezone(t *testing.T) {
	st := newTestStore(t)

	// 18:30 UTC is 19:30 in UTC+1: due there, not yet due in UTC
	loc := time.FixedZone("UTC+1", 3600)
	now := time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC)
	s := New(st, &fakeGuard{}, loc, zap.NewNop(),
		WithIdlePoll(time.Millisecond),
		withNow(func() time.Time { return now }),
	)

	require.NoError(t, s.MaybeSnapshot(context.Background()))

	_, ok, err := st.Snapshot(domain.DashboardScope, "2025-06-01")
	require.NoError(t, err)
	require.True(t, ok, "date key and due time evaluate in the reference zone")
}
