// Package syncer mirrors the full persisted state to a remote durable
// store, best-effort, keyed by a stable per-installation identifier.
package syncer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/stashd/internal/domain"
	"github.com/vadiminshakov/stashd/pkg/retrier"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Remote.Fetch when no blob exists for the id.
var ErrNotFound = errors.New("no remote state for installation")

// Remote is the sync endpoint contract.
type Remote interface {
	Upsert(ctx context.Context, installationID string, blob []byte) error
	Fetch(ctx context.Context, installationID string) ([]byte, error)
}

type store interface {
	Catalog() (domain.Catalog, error)
	Settings() (domain.Settings, error)
	LastCycleCompletedAt() (time.Time, bool, error)
	Snapshots() ([]domain.SnapshotRecord, error)
	InstallationID() (string, error)
}

// State is the serialized form mirrored to the remote store.
type State struct {
	Catalog              domain.Catalog          `json:"catalog"`
	Settings             domain.Settings         `json:"settings"`
	LastCycleCompletedAt *time.Time              `json:"last_cycle_completed_at,omitempty"`
	Snapshots            []domain.SnapshotRecord `json:"snapshots,omitempty"`
}

// Publisher publishes state after each refresh cycle. It never retries on
// its own; the next cycle's publish attempt is the de facto retry.
type Publisher struct {
	store  store
	remote Remote
	logger *zap.Logger

	mu      sync.RWMutex
	lastErr error
}

// NewPublisher creates a Publisher. A nil remote disables publishing.
func NewPublisher(st store, remote Remote, logger *zap.Logger) *Publisher {
	return &Publisher{store: st, remote: remote, logger: logger}
}

// Publish serializes the current state and upserts it remotely. Failures
// are recorded as a transient status and returned, never escalated.
func (p *Publisher) Publish(ctx context.Context) error {
	if p.remote == nil {
		return nil
	}

	err := p.publish(ctx)
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
	return err
}

func (p *Publisher) publish(ctx context.Context) error {
	state, err := p.collect()
	if err != nil {
		return err
	}

	blob, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "encode state")
	}

	id, err := p.store.InstallationID()
	if err != nil {
		return err
	}

	if err := p.remote.Upsert(ctx, id, blob); err != nil {
		return errors.Wrap(err, "upsert remote state")
	}

	p.logger.Debug("state published", zap.Int("bytes", len(blob)))
	return nil
}

func (p *Publisher) collect() (State, error) {
	cat, err := p.store.Catalog()
	if err != nil {
		return State{}, errors.Wrap(err, "collect catalog")
	}
	settings, err := p.store.Settings()
	if err != nil {
		return State{}, errors.Wrap(err, "collect settings")
	}
	snapshots, err := p.store.Snapshots()
	if err != nil {
		return State{}, errors.Wrap(err, "collect snapshots")
	}

	state := State{Catalog: cat, Settings: settings, Snapshots: snapshots}
	if last, ok, err := p.store.LastCycleCompletedAt(); err == nil && ok {
		state.LastCycleCompletedAt = &last
	}
	return state, nil
}

// Healthy reports whether the most recent publish attempt succeeded.
func (p *Publisher) Healthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr == nil
}

// Restore fetches the remotely mirrored state, retrying transient failures.
// It is driven by direct user action only, never by the scheduler.
func (p *Publisher) Restore(ctx context.Context) (State, error) {
	if p.remote == nil {
		return State{}, errors.New("sync remote is not configured")
	}

	id, err := p.store.InstallationID()
	if err != nil {
		return State{}, err
	}

	r := retrier.New(retrier.WithMaxRetries(2), retrier.WithInitialInterval(time.Second))
	blob, err := retrier.DoWithData(r, ctx, func(ctx context.Context) ([]byte, error) {
		blob, err := p.remote.Fetch(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// definitive answer, not worth retrying
			return nil, retrier.Permanent(err)
		}
		return blob, err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return State{}, err
		}
		return State{}, errors.Wrap(err, "fetch remote state")
	}

	var state State
	if err := json.Unmarshal(blob, &state); err != nil {
		return State{}, errors.Wrap(err, "decode remote state")
	}
	return state, nil
}
