// Package stickerbook wires the application: database, repositories,
// local mirror, cache, event bus and services.
package stickerbook

import (
	"context"
	"log/slog"

	"github.com/stickerbook/manager/stickerbook/config"
	"github.com/stickerbook/manager/stickerbook/database"
	"github.com/stickerbook/manager/stickerbook/database/repositories"
	"github.com/stickerbook/manager/stickerbook/events"
	"github.com/stickerbook/manager/stickerbook/intake"
	"github.com/stickerbook/manager/stickerbook/services"
	"github.com/stickerbook/manager/stickerbook/store"
)

func New(cfg Config, version string, commit string) *App {
	return &App{
		Cfg:     cfg,
		Version: version,
		Commit:  commit,
	}
}

type App struct {
	Cfg     Config
	Version string
	Commit  string

	DB                 *database.DB
	AlbumRepository    repositories.AlbumRepository
	StickerRepository  repositories.StickerRepository
	ExchangeRepository repositories.ExchangeRepository
	UserRepository     repositories.UserRepository

	Store        *store.LocalStore
	Cache        *store.Cache
	Bus          *events.Bus
	Relay        *store.Relay
	Preferences  *store.Preferences
	Connectivity *store.ConnectivityMonitor
	IntakeLog    *intake.Log

	ImportService     *services.ImportService
	CollectionService *services.CollectionService
	ExchangeService   *services.ExchangeService
}

// Setup builds the full dependency graph on top of an open database
// connection and starts the mirror relay and connectivity monitor.
func (a *App) Setup(ctx context.Context) error {
	bunDB := a.DB.BunDB()
	a.AlbumRepository = repositories.NewAlbumRepository(bunDB)
	a.StickerRepository = repositories.NewStickerRepository(bunDB)
	a.ExchangeRepository = repositories.NewExchangeRepository(bunDB)
	a.UserRepository = repositories.NewUserRepository(bunDB)

	localStore, err := store.NewLocalStore(a.Cfg.Store.Dir)
	if err != nil {
		return err
	}
	a.Store = localStore
	a.Bus = events.NewBus(config.EventDebounceWindow)
	a.Cache = store.NewCache(a.AlbumRepository, a.StickerRepository, localStore, a.Bus)
	a.Preferences = store.NewPreferences(localStore)
	a.IntakeLog = intake.NewLog(localStore)

	a.Relay = store.NewRelay(localStore, a.Cache, a.Bus)
	if err := a.Relay.Start(); err != nil {
		return err
	}

	a.Connectivity = store.NewConnectivityMonitor(a.DB, a.Bus)
	a.Connectivity.Start(ctx)

	a.ImportService = services.NewImportService(
		a.StickerRepository, a.AlbumRepository, a.Cache, a.Bus, a.IntakeLog)
	a.CollectionService = services.NewCollectionService(
		a.AlbumRepository, a.StickerRepository, a.UserRepository,
		a.Cache, a.Bus, a.Preferences, a.IntakeLog)
	a.ExchangeService = services.NewExchangeService(
		a.ExchangeRepository, a.StickerRepository, a.Cache, a.Bus, a.IntakeLog)

	// Full reloads requested anywhere (another instance included) drop
	// local state immediately.
	a.Bus.Subscribe(events.TypeForceRefresh, func(events.Event) {
		a.Cache.ForceRefresh(context.Background())
	})

	slog.Info("Application wired",
		slog.String("type", "sys"),
		slog.String("store_dir", a.Cfg.Store.Dir),
		slog.String("instance_id", localStore.InstanceID()),
	)
	return nil
}

// Close shuts the background pieces down in reverse dependency order.
func (a *App) Close() {
	if a.Connectivity != nil {
		a.Connectivity.Stop()
	}
	if a.Relay != nil {
		if err := a.Relay.Stop(); err != nil {
			slog.Warn("Failed to stop mirror relay",
				slog.String("type", "sys"),
				slog.Any("error", err),
			)
		}
	}
	if a.Bus != nil {
		a.Bus.Flush()
		a.Bus.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
