/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package app assembles the ssm components from a ServiceConfig.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/carverauto/ssm/pkg/actions"
	"github.com/carverauto/ssm/pkg/api"
	"github.com/carverauto/ssm/pkg/configstore"
	"github.com/carverauto/ssm/pkg/crypto/secrets"
	"github.com/carverauto/ssm/pkg/db"
	"github.com/carverauto/ssm/pkg/lifecycle"
	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/metrics"
	"github.com/carverauto/ssm/pkg/models"
	"github.com/carverauto/ssm/pkg/orchestrator"
	"github.com/carverauto/ssm/pkg/scheduler"
	"github.com/carverauto/ssm/pkg/service"
	"github.com/carverauto/ssm/pkg/sources"
	"github.com/carverauto/ssm/pkg/version"
	"github.com/carverauto/ssm/pkg/workspace"
)

const (
	janitorInterval = 5 * time.Minute
	closeTimeout    = 10 * time.Second
)

// ErrDatabaseBackendRequired is returned by database-only operations when no
// postgres backend is configured.
var ErrDatabaseBackendRequired = errors.New("command requires a postgres backend")

var (
	errUnknownKeyProvider = errors.New("unknown key provider")
	errKeyFileRequired    = errors.New("keys.file is required for the file key provider")
	errCannotRegister     = errors.New("store does not support node registration")
)

// App is a fully wired ssm process.
type App struct {
	cfg      *models.ServiceConfig
	logger   logger.Logger
	backends *backends
	metrics  *metrics.Manager
	tracer   *sdktrace.TracerProvider

	Vault        *workspace.Vault
	Store        *configstore.Store
	Orchestrator *orchestrator.Orchestrator
	Service      *service.Service
	API          *api.Server
	Scheduler    *scheduler.Scheduler
}

// Build opens the configured backends and wires every component. cfg must
// already be validated.
func Build(ctx context.Context, cfg *models.ServiceConfig) (*App, error) {
	loggers, err := lifecycle.ComponentLoggers(cfg.Logging,
		"ssm-main", "ssm-store", "ssm-orchestrator", "ssm-scheduler", "ssm-api", "ssm-workspace")
	if err != nil {
		return nil, err
	}

	mainLogger := loggers["ssm-main"]

	keys, err := keyProvider(&cfg.Keys)
	if err != nil {
		return nil, err
	}

	b, err := openBackends(ctx, cfg, loggers["ssm-store"])
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: mainLogger, backends: b}

	a.tracer, err = logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName:    cfg.Metrics.ServiceName,
		ServiceVersion: version.GetVersion(),
		Logger:         mainLogger,
		OTel:           cfg.Tracing,
	})
	if err != nil {
		b.Close()
		return nil, err
	}

	a.metrics, err = metrics.NewManager(ctx, &cfg.Metrics, version.GetVersion())
	if err != nil && !errors.Is(err, metrics.ErrMetricsDisabled) {
		a.Close()
		return nil, err
	}

	recorder, err := metrics.NewRecorder(a.metrics.Meter())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	a.Store = configstore.NewStore(b.nodes, secrets.NewEnvelope(keys, secrets.InfoServerConfig), loggers["ssm-store"])
	a.Vault = workspace.NewVault(b.nodes, secrets.NewEnvelope(keys, secrets.InfoOAuthTokens))

	provider := workspace.NewProvider(workspace.ConfigFromModel(&cfg.Google), a.Vault, loggers["ssm-workspace"])

	a.Orchestrator = orchestrator.New(orchestrator.Dependencies{
		Store:    a.Store,
		Leases:   b.coord,
		Provider: provider,
		Fetchers: sources.NewRegistry(time.Now),
		Replier: actions.NewAutoReplier(b.coord, actions.RateLimit{
			MaxPerWindow: cfg.RateLimit.MaxPerWindow,
			Window:       time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute,
		}, loggers["ssm-orchestrator"]),
		Sheets:  actions.NewSheetLogger(loggers["ssm-orchestrator"]),
		Metrics: recorder,
	}, orchestrator.Config{
		CycleTimeout: cfg.CycleTimeout.Std(),
		LeaseTTL:     cfg.LeaseTTL(),
	}, loggers["ssm-orchestrator"])

	a.Service = service.New(a.Store, a.Orchestrator, mainLogger)

	a.API, err = api.NewServer(a.Service, cfg.APIKey, loggers["ssm-api"])
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Scheduler = scheduler.New(b.nodes, a.Orchestrator, scheduler.Config{
		Interval:    cfg.Scheduler.CheckInterval.Std(),
		Concurrency: cfg.Scheduler.Concurrency,
		BatchSize:   cfg.Scheduler.BatchSize,
	}, loggers["ssm-scheduler"])

	return a, nil
}

func keyProvider(cfg *models.KeyConfig) (secrets.KeyProvider, error) {
	var provider secrets.KeyProvider

	switch cfg.Provider {
	case "env":
		provider = &secrets.EnvKeyProvider{Var: cfg.EnvVar}
	case "file":
		if cfg.File == "" {
			return nil, errKeyFileRequired
		}

		provider = &secrets.FileKeyProvider{Path: cfg.File}
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownKeyProvider, cfg.Provider)
	}

	if cfg.CacheTTL > 0 {
		provider = secrets.NewCachingKeyProvider(provider, cfg.CacheTTL.Std())
	}

	return provider, nil
}

// Serve runs the HTTP API, the cron scheduler when enabled and the expired
// row janitor until ctx is canceled.
func (a *App) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.API.ListenAndServe(gctx, a.cfg.ListenAddr)
	})

	if a.cfg.Scheduler.Enabled {
		g.Go(func() error {
			if err := a.Scheduler.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		})
	} else {
		a.logger.Info().Msg("Scheduler disabled, only manual triggers will run")
	}

	if cleaners := a.backends.cleaners(); len(cleaners) > 0 {
		g.Go(func() error {
			a.janitor(gctx, cleaners)
			return nil
		})
	}

	return g.Wait()
}

// janitor drops expired lease and rate-limit entries.
func (a *App) janitor(ctx context.Context, cleaners []expiryCleaner) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep(ctx, cleaners)
		}
	}
}

func (a *App) sweep(ctx context.Context, cleaners []expiryCleaner) int64 {
	var total int64

	for _, c := range cleaners {
		removed, err := c.CleanExpired(ctx)
		if err != nil {
			a.logger.Warn().Str("error_class", models.ErrorClass(err)).Msg("Failed to clean expired entries")
			continue
		}

		total += removed
	}

	if total > 0 {
		a.logger.Debug().Int64("removed", total).Msg("Cleaned expired entries")
	}

	return total
}

// RunOnce runs one manual cycle for nodeID outside the HTTP surface.
func (a *App) RunOnce(ctx context.Context, nodeID string) (*models.PollResult, error) {
	return a.Orchestrator.RunCycle(ctx, nodeID, models.TriggerManual)
}

// HasDatabase reports whether any backend uses postgres.
func (a *App) HasDatabase() bool {
	return a.backends.db != nil
}

// Migrate applies pending schema migrations.
func (a *App) Migrate(ctx context.Context) (int, error) {
	if a.backends.db == nil {
		return 0, ErrDatabaseBackendRequired
	}

	return a.backends.db.Migrate(ctx)
}

// RegisterNode creates a node record owned by node.OwnerID.
func (a *App) RegisterNode(ctx context.Context, node *models.MonitoredNode) error {
	switch store := a.backends.nodes.(type) {
	case *db.DB:
		return store.RegisterNode(ctx, node)
	case interface{ PutNode(*models.MonitoredNode) }:
		store.PutNode(node)
		return nil
	default:
		return errCannotRegister
	}
}

// ImportToken seals and stores an OAuth token for a user's connection.
func (a *App) ImportToken(ctx context.Context, userID, connectionID string, tok *oauth2.Token) error {
	return a.Vault.Save(ctx, userID, connectionID, tok)
}

// Close flushes telemetry and releases the backends.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Warn().Str("error_class", models.ErrorClass(err)).Msg("Failed to shut down metrics")
		}
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn().Str("error_class", models.ErrorClass(err)).Msg("Failed to shut down tracer provider")
		}
	}

	if err := logger.ShutdownOTEL(ctx); err != nil {
		a.logger.Warn().Str("error_class", models.ErrorClass(err)).Msg("Failed to shut down log exporter")
	}

	a.backends.Close()
}
