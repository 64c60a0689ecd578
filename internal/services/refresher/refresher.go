// Package refresher drives the periodic price refresh cycle over the whole
// collection: one polite sequential pass per interval, with bounded retry
// on throttling and incremental per-list persistence.
package refresher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/stashd/internal/domain"
	"github.com/vadiminshakov/stashd/internal/services/pricer"
	"go.uber.org/zap"
)

// State is the scheduler's position in its lifecycle.
type State string

const (
	// StateIdle means no cycle is in flight and none is scheduled yet.
	StateIdle State = "idle"
	// StateWaiting means the next cycle start time is known and pending.
	StateWaiting State = "waiting"
	// StateRunning means a cycle is walking the collection right now.
	StateRunning State = "running"
	// StateBackoff means the cycle is cooling down after throttling.
	StateBackoff State = "backoff"
)

const (
	defaultPacing          = 2500 * time.Millisecond
	defaultCooldownMin     = 10 * time.Second
	defaultCooldownMax     = 30 * time.Second
	defaultThrottleRetries = 3
	defaultWaitGranularity = time.Minute
)

type store interface {
	Catalog() (domain.Catalog, error)
	SaveCatalog(domain.Catalog) error
	Settings() (domain.Settings, error)
	LastCycleCompletedAt() (time.Time, bool, error)
	SetLastCycleCompletedAt(time.Time) error
}

// publisher mirrors state to the remote store after a completed cycle.
type publisher interface {
	Publish(ctx context.Context) error
}

// Refresher is the refresh scheduler. One instance exists per process and
// is started once; a second cycle start while one is running is a no-op.
type Refresher struct {
	store   store
	pricer  pricer.Pricer
	pub     publisher
	logger  *zap.Logger
	nowFunc func() time.Time

	pacing          time.Duration
	cooldownMin     time.Duration
	cooldownMax     time.Duration
	throttleRetries int
	waitGranularity time.Duration

	running atomic.Bool

	mu            sync.RWMutex
	state         State
	status        domain.Status
	lastCompleted time.Time
}

// Option configures the Refresher.
type Option func(*Refresher)

// WithPacing sets the fixed delay between item lookups.
func WithPacing(d time.Duration) Option {
	return func(r *Refresher) { r.pacing = d }
}

// WithCooldown bounds the pause applied after a throttled response.
func WithCooldown(min, max time.Duration) Option {
	return func(r *Refresher) { r.cooldownMin, r.cooldownMax = min, max }
}

// WithThrottleRetries sets how many times a throttled item is retried
// before the cycle gives up on it.
func WithThrottleRetries(n int) Option {
	return func(r *Refresher) { r.throttleRetries = n }
}

// WithWaitGranularity sets how often the waiting state rechecks the clock.
// Coarse by default so process suspension does not skew scheduling.
func WithWaitGranularity(d time.Duration) Option {
	return func(r *Refresher) { r.waitGranularity = d }
}

// WithPublisher attaches the sync publisher fired after each cycle.
func WithPublisher(p publisher) Option {
	return func(r *Refresher) { r.pub = p }
}

func withNow(now func() time.Time) Option {
	return func(r *Refresher) { r.nowFunc = now }
}

// New creates a Refresher over the given store and price source.
func New(st store, pr pricer.Pricer, logger *zap.Logger, opts ...Option) *Refresher {
	r := &Refresher{
		store:           st,
		pricer:          pr,
		logger:          logger,
		nowFunc:         time.Now,
		pacing:          defaultPacing,
		cooldownMin:     defaultCooldownMin,
		cooldownMax:     defaultCooldownMax,
		throttleRetries: defaultThrottleRetries,
		waitGranularity: defaultWaitGranularity,
		state:           StateIdle,
		status:          domain.StatusStable,
	}
	for _, opt := range opts {
		opt(r)
	}

	if last, ok, err := st.LastCycleCompletedAt(); err == nil && ok {
		r.lastCompleted = last
	}
	return r
}

// State returns the current lifecycle state.
func (r *Refresher) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Running reports whether a cycle is currently in flight.
func (r *Refresher) Running() bool {
	return r.running.Load()
}

// Status returns the user-visible health of the last refresh activity.
func (r *Refresher) Status() domain.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// LastCycleCompletedAt returns when the last cycle finished, zero if never.
func (r *Refresher) LastCycleCompletedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastCompleted
}

// Run executes the scheduler loop until ctx is cancelled: wait out the
// remainder of the interval at coarse granularity, run one cycle, repeat.
// A cycle that fails to read its inputs is logged and retried next tick.
func (r *Refresher) Run(ctx context.Context) error {
	for {
		settings, err := r.store.Settings()
		if err != nil {
			r.logger.Error("failed to load settings", zap.Error(err))
			settings = domain.DefaultSettings()
		}

		remaining := r.untilDue(settings.RefreshInterval())
		if remaining > 0 {
			r.setState(StateWaiting)
			pause := r.waitGranularity
			if pause > remaining {
				pause = remaining
			}
			select {
			case <-ctx.Done():
				r.setState(StateIdle)
				return ctx.Err()
			case <-time.After(pause):
			}
			continue
		}

		if err := r.RunCycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.logger.Error("refresh cycle aborted, will retry next interval", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.waitGranularity):
			}
		}
	}
}

func (r *Refresher) untilDue(interval time.Duration) time.Duration {
	r.mu.RLock()
	last := r.lastCompleted
	r.mu.RUnlock()
	if last.IsZero() {
		return 0
	}
	return interval - r.nowFunc().Sub(last)
}

// RunCycle performs one full pass over all eligible items. It is a no-op
// when a cycle is already in flight. The only errors returned are context
// cancellation and failure to read the catalog; everything else is absorbed
// into the cycle status.
func (r *Refresher) RunCycle(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Debug("refresh cycle already in flight, skipping start")
		return nil
	}
	defer r.running.Store(false)

	r.setState(StateRunning)
	defer r.setState(StateIdle)

	cat, err := r.store.Catalog()
	if err != nil {
		return errors.Wrap(err, "read catalog at cycle start")
	}

	r.logger.Info("refresh cycle started", zap.Int("lists", len(cat.ListNames())))

	clean := true
	for _, listName := range cat.ListNames() {
		// Re-read at the list boundary so user edits made mid-cycle are
		// picked up and vanished lists are skipped instead of crashing.
		cat, err = r.store.Catalog()
		if err != nil {
			return errors.Wrapf(err, "re-read catalog before list %s", listName)
		}
		list := cat.FindList(listName)
		if list == nil {
			r.logger.Debug("list disappeared mid-cycle", zap.String("list", listName))
			continue
		}

		if ok := r.refreshList(ctx, list); !ok {
			clean = false
		}

		// Incremental durability: each finished list is written back on
		// its own, so a crash mid-cycle loses at most the in-flight list.
		if err := r.persistList(listName, list.Items); err != nil {
			// The cycle keeps going; the next list's write attempt is
			// independent of this one.
			r.logger.Error("failed to persist list", zap.String("list", listName), zap.Error(err))
			clean = false
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if clean {
		// A full pass with zero failures overrides any residual throttled
		// or source-down status: status reflects the end state.
		r.setStatus(domain.StatusStable)
	}

	now := r.nowFunc()
	r.mu.Lock()
	r.lastCompleted = now
	r.mu.Unlock()
	if err := r.store.SetLastCycleCompletedAt(now); err != nil {
		r.logger.Error("failed to persist cycle completion time", zap.Error(err))
	}

	r.logger.Info("refresh cycle completed", zap.String("status", string(r.Status())))

	if r.pub != nil {
		go func() {
			if err := r.pub.Publish(context.Background()); err != nil {
				r.logger.Warn("sync publish failed", zap.Error(err))
			}
		}()
	}
	return nil
}

// persistList writes the refreshed items of one list into the freshest
// catalog state, so edits a user made to other lists while this list was
// fetching are never stomped. A list deleted during its own fetch simply
// drops the updates.
func (r *Refresher) persistList(listName string, items []domain.Item) error {
	fresh, err := r.store.Catalog()
	if err != nil {
		return errors.Wrap(err, "re-read catalog before persist")
	}
	target := fresh.FindList(listName)
	if target == nil {
		return nil
	}
	target.Items = items
	return r.store.SaveCatalog(fresh)
}

// refreshList fetches prices for every eligible item of one list in stored
// order. It reports false when any lookup failed or was given up on.
func (r *Refresher) refreshList(ctx context.Context, list *domain.List) bool {
	clean := true
	for i := range list.Items {
		if ctx.Err() != nil {
			return clean
		}
		it := &list.Items[i]
		if !it.Refreshable() {
			continue
		}

		quote, err := r.lookupWithCooldown(ctx, it.Name)
		switch {
		case err != nil:
			clean = false
			r.logger.Warn("item lookup failed",
				zap.String("list", list.Name),
				zap.String("item", it.Name),
				zap.Error(err))
		case quote.Lowest == nil:
			clean = false
			r.setStatus(domain.StatusSourceDown)
			r.logger.Warn("no usable price for item",
				zap.String("list", list.Name),
				zap.String("item", it.Name))
		default:
			it.ApplyPrice(*quote.Lowest)
			r.logger.Debug("item refreshed",
				zap.String("item", it.Name),
				zap.String("price", quote.Lowest.String()))
		}

		// Fixed spacing after every lookup, whatever the outcome, to stay
		// polite to the price source.
		r.sleep(ctx, r.pacing)
	}
	return clean
}

// lookupWithCooldown queries the price source, pausing and retrying a
// bounded number of times when throttled. Hard failures are returned
// immediately, the cycle moves on to the next item.
func (r *Refresher) lookupWithCooldown(ctx context.Context, name string) (pricer.Quote, error) {
	cooldown := &backoff.Backoff{
		Min:    r.cooldownMin,
		Max:    r.cooldownMax,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt <= r.throttleRetries; attempt++ {
		quote, err := r.pricer.Lookup(ctx, name)
		if err == nil {
			return quote, nil
		}
		lastErr = err

		if !errors.Is(err, pricer.ErrRateLimited) {
			r.setStatus(domain.StatusSourceDown)
			return pricer.Quote{}, err
		}

		r.setStatus(domain.StatusRateLimited)
		if attempt == r.throttleRetries {
			break
		}

		r.setState(StateBackoff)
		r.sleep(ctx, cooldown.Duration())
		r.setState(StateRunning)
		if ctx.Err() != nil {
			return pricer.Quote{}, ctx.Err()
		}
	}
	return pricer.Quote{}, errors.Wrapf(lastErr, "gave up on %s after %d throttled attempts", name, r.throttleRetries+1)
}

func (r *Refresher) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (r *Refresher) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Refresher) setStatus(s domain.Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}
