package syncer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/stashd/internal/domain"
	"github.com/vadiminshakov/stashd/internal/storage/stash"
	"go.uber.org/zap"
)

type memoryRemote struct {
	mu    sync.Mutex
	blobs map[string][]byte
	fail  bool
}

func newMemoryRemote() *memoryRemote {
	return &memoryRemote{blobs: make(map[string][]byte)}
}

func (r *memoryRemote) Upsert(_ context.Context, id string, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return context.DeadlineExceeded
	}
	stored := make([]byte, len(blob))
	copy(stored, blob)
	r.blobs[id] = stored
	return nil
}

func (r *memoryRemote) Fetch(_ context.Context, id string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	blob, ok := r.blobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return blob, nil
}

func newTestStore(t *testing.T) *stash.Store {
	t.Helper()
	st, err := stash.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	price := decimal.RequireFromString("1.65")
	require.NoError(t, st.SaveCatalog(domain.Catalog{Lists: []domain.List{
		{Name: "Cases", Items: []domain.Item{{Name: "Chroma Case", Quantity: 2, CurrentPrice: &price}}},
	}}))
	require.NoError(t, st.SetLastCycleCompletedAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, st.SaveSnapshot(domain.SnapshotRecord{
		Scope:   domain.DashboardScope,
		DateKey: "2025-05-31",
		Value:   decimal.NewFromInt(3),
	}))
	return st
}

func TestPublishAndRestoreRoundTrip(t *testing.T) {
	st := newTestStore(t)
	remote := newMemoryRemote()
	p := NewPublisher(st, remote, zap.NewNop())

	require.NoError(t, p.Publish(context.Background()))
	require.True(t, p.Healthy())

	state, err := p.Restore(context.Background())
	require.NoError(t, err)
	require.Len(t, state.Catalog.Lists, 1)
	require.Equal(t, "Chroma Case", state.Catalog.Lists[0].Items[0].Name)
	require.NotNil(t, state.LastCycleCompletedAt)
	require.Len(t, state.Snapshots, 1)
}

func TestPublishFailureIsTransient(t *testing.T) {
	st := newTestStore(t)
	remote := newMemoryRemote()
	remote.fail = true
	p := NewPublisher(st, remote, zap.NewNop())

	require.Error(t, p.Publish(context.Background()))
	require.False(t, p.Healthy())

	remote.mu.Lock()
	remote.fail = false
	remote.mu.Unlock()

	// the next cycle's publish is the de facto retry
	require.NoError(t, p.Publish(context.Background()))
	require.True(t, p.Healthy())
}

func TestPublishWithoutRemoteIsNoOp(t *testing.T) {
	st := newTestStore(t)
	p := NewPublisher(st, nil, zap.NewNop())

	require.NoError(t, p.Publish(context.Background()))
	require.True(t, p.Healthy())
}

func TestRestoreNotFound(t *testing.T) {
	st := newTestStore(t)
	p := NewPublisher(st, newMemoryRemote(), zap.NewNop())

	_, err := p.Restore(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInstallationIDReusedAcrossPublishes(t *testing.T) {
	st := newTestStore(t)
	remote := newMemoryRemote()
	p := NewPublisher(st, remote, zap.NewNop())

	require.NoError(t, p.Publish(context.Background()))
	require.NoError(t, p.Publish(context.Background()))

	remote.mu.Lock()
	defer remote.mu.Unlock()
	require.Len(t, remote.blobs, 1, "one installation id, one remote slot")
}

func TestHTTPRemote(t *testing.T) {
	var (
		mu     sync.Mutex
		stored = make(map[string][]byte)
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			blob, _ := io.ReadAll(r.Body)
			stored[r.URL.Path] = blob
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			blob, ok := stored[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(blob)
		}
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL)
	ctx := context.Background()

	_, err := remote.Fetch(ctx, "install-1")
	require.ErrorIs(t, err, ErrNotFound)

	blob, err := json.Marshal(State{Settings: domain.DefaultSettings()})
	require.NoError(t, err)
	require.NoError(t, remote.Upsert(ctx, "install-1", blob))

	got, err := remote.Fetch(ctx, "install-1")
	require.NoError(t, err)
	require.JSONEq(t, string(blob), string(got))
}
