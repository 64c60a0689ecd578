// Package snapshotter records the collection's total value once per
// calendar day, used as the fluctuation baseline for the aggregate view.
package snapshotter

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/stashd/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultTick     = time.Minute
	defaultIdlePoll = 3 * time.Second
)

type store interface {
	Catalog() (domain.Catalog, error)
	Settings() (domain.Settings, error)
	Snapshot(scope, dateKey string) (domain.SnapshotRecord, bool, error)
	SaveSnapshot(domain.SnapshotRecord) error
}

// refreshGuard exposes whether a refresh cycle is in flight. Snapshots are
// deferred until the guard clears so they never observe a half-updated mix.
type refreshGuard interface {
	Running() bool
}

// Snapshotter is the snapshot coordinator: a fixed tick that captures at
// most one dashboard snapshot per day at the configured local time.
type Snapshotter struct {
	store  store
	guard  refreshGuard
	loc    *time.Location
	logger *zap.Logger

	tick     time.Duration
	idlePoll time.Duration
	nowFunc  func() time.Time
}

// Option configures the Snapshotter.
type Option func(*Snapshotter)

// WithTick overrides the evaluation tick.
func WithTick(d time.Duration) Option {
	return func(s *Snapshotter) { s.tick = d }
}

// WithIdlePoll overrides how often the coordinator rechecks the refresh
// guard while waiting for a cycle to finish.
func WithIdlePoll(d time.Duration) Option {
	return func(s *Snapshotter) { s.idlePoll = d }
}

func withNow(now func() time.Time) Option {
	return func(s *Snapshotter) { s.nowFunc = now }
}

// New creates a Snapshotter evaluating dates in loc.
func New(st store, guard refreshGuard, loc *time.Location, logger *zap.Logger, opts ...Option) *Snapshotter {
	if loc == nil {
		loc = time.Local
	}
	s := &Snapshotter{
		store:    st,
		guard:    guard,
		loc:      loc,
		logger:   logger,
		tick:     defaultTick,
		idlePoll: defaultIdlePoll,
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run evaluates the snapshot condition on every tick until ctx is
// cancelled. A failed attempt is simply retried on the next tick; the
// existence check re-drives it.
func (s *Snapshotter) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.MaybeSnapshot(ctx); err != nil {
				s.logger.Warn("snapshot attempt failed, will retry next tick", zap.Error(err))
			}
		}
	}
}

// MaybeSnapshot captures today's dashboard snapshot when it is due and not
// yet recorded. It is idempotent: repeated calls on the same day never
// produce a duplicate or overwrite.
func (s *Snapshotter) MaybeSnapshot(ctx context.Context) error {
	now := s.nowFunc().In(s.loc)
	dateKey := domain.DateKey(now, s.loc)

	if _, exists, err := s.store.Snapshot(domain.DashboardScope, dateKey); err != nil {
		return errors.Wrap(err, "check existing snapshot")
	} else if exists {
		return nil
	}

	settings, err := s.store.Settings()
	if err != nil {
		return errors.Wrap(err, "load settings")
	}
	hour, minute, err := settings.SnapshotClock()
	if err != nil {
		return errors.Wrap(err, "parse snapshot time")
	}
	due := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, s.loc)
	if now.Before(due) {
		return nil
	}

	// Wait out any in-flight refresh cycle so the captured total reflects
	// a fully refreshed, internally consistent set of prices.
	for s.guard.Running() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.idlePoll):
		}
	}

	cat, err := s.store.Catalog()
	if err != nil {
		return errors.Wrap(err, "read catalog")
	}

	rec := domain.SnapshotRecord{
		Scope:      domain.DashboardScope,
		DateKey:    dateKey,
		Value:      cat.Total(),
		CapturedAt: s.nowFunc(),
	}
	if err := s.store.SaveSnapshot(rec); err != nil {
		return errors.Wrap(err, "persist snapshot")
	}

	s.logger.Info("daily snapshot captured",
		zap.String("date", dateKey),
		zap.String("value", rec.Value.String()))
	return nil
}
