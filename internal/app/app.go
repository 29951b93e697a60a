package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/SloeberX/auction-tracker/internal/config"
	"github.com/SloeberX/auction-tracker/internal/logging"
	"github.com/SloeberX/auction-tracker/internal/scrape"
	"github.com/SloeberX/auction-tracker/internal/server"
	"github.com/SloeberX/auction-tracker/internal/service"
	"github.com/SloeberX/auction-tracker/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app")}
}

func (a *App) openStore() (*storage.Store, error) {
	return storage.Open(a.Config.Storage.DataDir, a.Logger)
}

func (a *App) newFetcher() scrape.Fetcher {
	return scrape.NewClient(scrape.ClientOptions{
		BaseURL:   a.Config.Scrape.BaseURL,
		Timeout:   a.Config.Scrape.RequestTimeout,
		UserAgent: a.Config.Scrape.UserAgent,
	}, a.Logger)
}

// Run executes the long-running tracking service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := a.openStore()
	if err != nil {
		return err
	}

	if err := store.CreateBackup("startup"); err != nil {
		a.Logger.Error().Err(err).Msg("startup backup failed")
	}
	if err := store.PruneBackups(a.Config.Storage.BackupRetention); err != nil {
		a.Logger.Warn().Err(err).Msg("backup pruning failed")
	}

	hub := server.NewHub(a.Logger)
	tracker := service.New(a.Config, a.newFetcher(), store, hub, a.Logger)
	if err := tracker.Start(ctx); err != nil {
		return err
	}
	defer tracker.Stop()

	go a.backupLoop(ctx, store)

	srv := server.New(a.Config.Server.Addr, tracker, hub, a.Logger)

	a.Logger.Info().Msg("starting tracking service")
	err = srv.ListenAndServe(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("tracking service stopped")
	return nil
}

func (a *App) backupLoop(ctx context.Context, store *storage.Store) {
	interval := a.Config.Storage.BackupInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.CreateBackup("periodic"); err != nil {
				a.Logger.Error().Err(err).Msg("periodic backup failed")
			}
			if err := store.PruneBackups(a.Config.Storage.BackupRetention); err != nil {
				a.Logger.Warn().Err(err).Msg("backup pruning failed")
			}
		}
	}
}

// ExportOptions hold parameters for exporting a listing's bid history.
type ExportOptions struct {
	ListingID string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	ListingID string
	Limit     int
}

// SimulateOptions configure the simulate command.
type SimulateOptions struct {
	Price  float64
	EndsIn time.Duration
}
