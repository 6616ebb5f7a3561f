package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"go.uber.org/multierr"

	"github.com/solatis/cpq/internal/cache"
	"github.com/solatis/cpq/internal/catalog"
	"github.com/solatis/cpq/internal/configurator"
	"github.com/solatis/cpq/internal/core/api"
	"github.com/solatis/cpq/internal/core/config"
	"github.com/solatis/cpq/internal/core/db"
	"github.com/solatis/cpq/internal/core/perf"
	"github.com/solatis/cpq/internal/core/session"
)

// app is the wired client: local state, API client, model cache.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	db      *sqlx.DB
	session *session.Store
	perf    *perf.Recorder
	client  *api.Client
	cache   *cache.Cache
	catalog *catalog.Catalog
}

func openApp(ctx context.Context) (*app, error) {
	logger, err := stderrLogger()
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	envToken, err := config.AuthTokenFromEnv()
	if err != nil {
		return nil, err
	}

	database, err := db.OpenContext(ctx, cfg.StateDBURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open local state: %w", err)
	}
	a := &app{cfg: cfg, log: logger, db: database}

	if err := requireMigrations(database); err != nil {
		return nil, multierr.Append(err, a.Close())
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to load queries: %w", err), a.Close())
	}
	if a.session, err = session.NewStore(queries, session.WithEnvToken(envToken)); err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	if a.perf, err = perf.NewRecorder(queries); err != nil {
		return nil, multierr.Append(err, a.Close())
	}

	a.client, err = api.New(api.Options{
		BaseURL:       cfg.APIBaseURL(),
		Timeout:       cfg.RequestTimeout,
		SlowThreshold: cfg.SlowRequestThreshold,
		Tokens:        a.session,
		Metrics:       a.perf,
		Logger:        logger,
		OnUnauthorized: func(ctx context.Context) {
			if err := a.session.Clear(ctx); err != nil {
				logger.Warn("failed to clear session after 401", "error", err)
			}
		},
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to create API client: %w", err), a.Close())
	}

	if a.cache, err = cache.Open(cfg.CachePath); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to open cache: %w", err), a.Close())
	}
	a.catalog, err = catalog.New(a.client, a.cache, catalog.Options{
		ModelTTL:     cfg.ModelCacheTTL,
		ModelListTTL: cfg.ModelListCacheTTL,
		Logger:       logger,
	})
	if err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	return a, nil
}

// requireMigrations refuses to run against a database missing any
// embedded migration.
func requireMigrations(database *sqlx.DB) error {
	statuses, err := db.MigrateStatus(database)
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("migration %s not applied - run 'cpq migrate' first", s.ID)
		}
	}
	return nil
}

// newStore creates a configuration session. interactive enables the
// debounce and autosave timers; one-shot commands drive validation directly.
func (a *app) newStore(interactive bool) (*configurator.Store, error) {
	opts := configurator.Options{
		DebounceDelay:    -1,
		AutosaveInterval: -1,
		MaxRetries:       a.cfg.MaxRetries,
		Logger:           a.log,
	}
	if interactive {
		opts.DebounceDelay = a.cfg.DebounceDelay
		opts.AutosaveInterval = a.cfg.AutosaveInterval
	}
	return configurator.New(a.client, a.catalog, opts)
}

// Close releases the cache and database.
func (a *app) Close() error {
	var err error
	if a.cache != nil {
		err = multierr.Append(err, a.cache.Close())
	}
	if a.db != nil {
		err = multierr.Append(err, a.db.Close())
	}
	return err
}
