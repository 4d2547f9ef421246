package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JustinTDCT/Posteract/internal/config"
	"github.com/JustinTDCT/Posteract/internal/db"
	"github.com/JustinTDCT/Posteract/internal/httputil"
	"github.com/JustinTDCT/Posteract/internal/logging"
	"github.com/JustinTDCT/Posteract/internal/metadata"
	"github.com/JustinTDCT/Posteract/internal/overlay"
	"github.com/JustinTDCT/Posteract/internal/plex"
	"github.com/JustinTDCT/Posteract/internal/repository"
	"github.com/JustinTDCT/Posteract/internal/scheduler"
	"github.com/JustinTDCT/Posteract/internal/selection"
	"github.com/JustinTDCT/Posteract/internal/version"
	"github.com/JustinTDCT/Posteract/internal/workflow"
	"github.com/urfave/cli/v3"
)

// app holds everything a command needs, wired from configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *db.DB
	jobs     *repository.JobRepository
	outcomes *repository.OutcomeRepository
	plex     *plex.Client
	workflow *workflow.Workflow
	planner  *scheduler.Planner
}

func newApp(ctx context.Context, cmd *cli.Command) (*app, error) {
	cfg, err := config.Load(cmd.String("config"), cmd.String("env"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	logger.Info("starting Posteract", "version", version.Load("version.json").Version)

	database, err := db.Connect(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	jobs := repository.NewJobRepository(database, cfg.RetryDelay)
	outcomes := repository.NewOutcomeRepository(database)
	plexClient := plex.NewClient(cfg.Plex, logger)

	tmdb := metadata.NewTMDBProvider(cfg.TMDB.APIKey, logger)
	var fanart metadata.Provider
	if cfg.FanartEnabled() {
		fanart = metadata.NewFanartProvider(cfg.Fanart.APIKey, true, logger)
	}

	deps := workflow.Deps{
		Resolver:   selection.NewResolver(tmdb, fanart, logger),
		Downloader: httputil.NewDownloader(logger),
		Catalogue:  plexClient,
		Jobs:       jobs,
		Outcomes:   outcomes,
	}
	if cfg.Overlays.Enabled {
		deps.Decorator = overlay.NewService(cfg.Overlays, logger)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       database,
		jobs:     jobs,
		outcomes: outcomes,
		plex:     plexClient,
		workflow: workflow.New(cfg, deps, logger),
		planner:  scheduler.NewPlanner(cfg, outcomes, jobs, plexClient, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", "error", err)
	}
}
