// Package internal wires the store, price source, refresher, snapshotter,
// sync publisher and status server into one runnable daemon.
package internal

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/stashd/config"
	"github.com/vadiminshakov/stashd/internal/services/pricer"
	"github.com/vadiminshakov/stashd/internal/services/refresher"
	"github.com/vadiminshakov/stashd/internal/services/snapshotter"
	"github.com/vadiminshakov/stashd/internal/services/syncer"
	"github.com/vadiminshakov/stashd/internal/storage/stash"
	"github.com/vadiminshakov/stashd/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const simulateSeed = 42

// App is one assembled daemon instance.
type App struct {
	store       *stash.Store
	refresher   *refresher.Refresher
	snapshotter *snapshotter.Snapshotter
	publisher   *syncer.Publisher
	web         *web.Server
	logger      *zap.Logger
}

// NewApp builds the daemon from configuration.
func NewApp(conf config.Config, logger *zap.Logger) (*App, error) {
	store, err := stash.Open(conf.DataDir)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}

	// config seeds the persisted settings once; afterwards the external
	// settings surface owns them through the store.
	if err := store.SeedSettings(conf.Settings()); err != nil {
		store.Close()
		return nil, errors.Wrap(err, "seed settings")
	}

	var source pricer.Pricer
	switch conf.Source {
	case "steam":
		source = pricer.NewSteamPricer(
			pricer.WithCurrency(conf.Currency),
			pricer.WithAppID(conf.AppID),
		)
	case "simulate":
		source = pricer.NewSimulatePricer(simulateSeed)
	default:
		store.Close()
		return nil, fmt.Errorf("unsupported price source %q", conf.Source)
	}

	var remote syncer.Remote
	if conf.SyncEndpoint != "" {
		remote = syncer.NewHTTPRemote(conf.SyncEndpoint)
	}
	publisher := syncer.NewPublisher(store, remote, logger.Named("syncer"))

	refresherOpts := []refresher.Option{refresher.WithPublisher(publisher)}
	if conf.Pacing > 0 {
		refresherOpts = append(refresherOpts, refresher.WithPacing(conf.Pacing))
	}
	ref := refresher.New(store, source, logger.Named("refresher"), refresherOpts...)

	loc, err := conf.Location()
	if err != nil {
		store.Close()
		return nil, errors.Wrap(err, "resolve timezone")
	}
	snap := snapshotter.New(store, ref, loc, logger.Named("snapshotter"))

	app := &App{
		store:       store,
		refresher:   ref,
		snapshotter: snap,
		publisher:   publisher,
		logger:      logger,
	}
	if conf.WebAddr != "" {
		app.web = web.NewServer(conf.WebAddr, ref, store, publisher, logger.Named("web"))
	}
	return app, nil
}

// Run starts the periodic loops and blocks until ctx is cancelled or one
// of them fails unrecoverably.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.refresher.Run(ctx) })
	g.Go(func() error { return a.snapshotter.Run(ctx) })
	if a.web != nil {
		g.Go(func() error { return a.web.Start(ctx) })
	}

	a.logger.Info("stashd started")
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}
