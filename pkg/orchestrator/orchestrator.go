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

// Package orchestrator runs one poll cycle for a node: load, fetch, match,
// execute, persist.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/carverauto/ssm/pkg/actions"
	"github.com/carverauto/ssm/pkg/credentials"
	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/models"
	"github.com/carverauto/ssm/pkg/rules"
	"github.com/carverauto/ssm/pkg/sources"
)

const (
	leaseKeyPrefix = "ssm:node:"

	defaultCycleTimeout = 2 * time.Minute
	defaultLeaseGrace   = 30 * time.Second

	// persistTimeout bounds the detached write-back after a cycle deadline.
	persistTimeout = 10 * time.Second
)

// Config tunes a cycle.
type Config struct {
	CycleTimeout time.Duration
	LeaseTTL     time.Duration
	// HolderPrefix identifies this process in lease records.
	HolderPrefix string
}

// Dependencies are the collaborators of an Orchestrator. Metrics and Tracer
// may be nil.
type Dependencies struct {
	Store    ConfigStore
	Leases   LeaseStore
	Provider credentials.Provider
	Fetchers sources.Registry
	Replier  *actions.AutoReplier
	Sheets   *actions.SheetLogger
	Metrics  Recorder
	Tracer   trace.Tracer
}

// Orchestrator runs poll cycles. It is safe for concurrent use; at most one
// cycle per node runs at a time, enforced through the lease store.
type Orchestrator struct {
	deps   Dependencies
	cfg    Config
	logger logger.Logger
	now    func() time.Time
}

// New returns an Orchestrator.
func New(deps Dependencies, cfg Config, log logger.Logger) *Orchestrator {
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = defaultCycleTimeout
	}

	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = cfg.CycleTimeout + defaultLeaseGrace
	}

	if cfg.HolderPrefix == "" {
		cfg.HolderPrefix = "ssm"
	}

	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}

	if deps.Fetchers == nil {
		deps.Fetchers = sources.NewRegistry(nil)
	}

	if deps.Tracer == nil {
		deps.Tracer = logger.GetTracer(tracerName)
	}

	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: log,
		now:    time.Now,
	}
}

// SetClock overrides the clock used for audit timestamps and durations.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// LeaseKey is the per-node lease key.
func LeaseKey(nodeID string) string {
	return leaseKeyPrefix + nodeID
}

// sourceRun is the outcome of one adapter.
type sourceRun struct {
	source    models.EventSource
	settings  models.SourceSettings
	events    []models.SSMEvent
	watermark string
	err       error
	processed bool
}

// cycle carries the mutable state of one RunCycle call.
type cycle struct {
	nodeID string
	node   *models.MonitoredNode
	config *models.ServerConfig
	result *models.PollResult
	runs   []*sourceRun
	log    logger.Logger

	// sheet and loadedSinkID are the sink name and cached id at load time.
	sheet        string
	loadedSinkID string
}

// RunCycle executes one cycle for nodeID. A second concurrent call for the
// same node fails with models.ErrCycleInProgress. Soft failures end up in
// PollResult.Errors; the returned error is reserved for failures that stop
// the cycle before any event is fetched.
func (o *Orchestrator) RunCycle(ctx context.Context, nodeID string, trigger models.TriggerSource) (*models.PollResult, error) {
	started := o.now()
	result := &models.PollResult{Source: trigger, State: models.StateIdle}

	ctx, span := o.deps.Tracer.Start(ctx, spanCycle, trace.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.String("trigger", string(trigger)),
	))
	defer span.End()

	holder := o.cfg.HolderPrefix + ":" + uuid.NewString()

	if err := o.deps.Leases.Acquire(ctx, LeaseKey(nodeID), holder, o.cfg.LeaseTTL); err != nil {
		span.SetStatus(codes.Error, "lease: "+models.ErrorClass(err))

		if errors.Is(err, models.ErrLeaseHeld) {
			return nil, fmt.Errorf("node %s: %w", nodeID, models.ErrCycleInProgress)
		}

		return nil, fmt.Errorf("acquire lease for node %s: %w", nodeID, err)
	}

	defer o.release(ctx, nodeID, holder)

	c := &cycle{
		nodeID: nodeID,
		result: result,
		log:    logger.Wrap(o.logger.With().Str("node_id", nodeID).Str("trigger", string(trigger)).Logger()),
	}

	cycleCtx, cancel := context.WithTimeout(ctx, o.cfg.CycleTimeout)
	defer cancel()

	if err := o.load(cycleCtx, c); err != nil {
		c.result.State = models.StateAborted
		c.result.AddError("load: " + models.ErrorClass(err))
		o.finish(ctx, c, started)

		return result, err
	}

	o.fetch(cycleCtx, c)

	alerts := o.match(cycleCtx, c)

	o.execute(cycleCtx, c, alerts)

	if cycleCtx.Err() != nil {
		c.result.State = models.StateAborted
		c.result.AddError("cycle: " + models.ErrorClass(cycleCtx.Err()))
		c.log.Warn().Str("state", string(models.StateAborted)).Msg("Cycle deadline exceeded, committing finished sources only")
	}

	o.persist(ctx, c)
	o.finish(ctx, c, started)

	return result, nil
}

func (o *Orchestrator) release(ctx context.Context, nodeID, holder string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := o.deps.Leases.Release(releaseCtx, LeaseKey(nodeID), holder); err != nil {
		o.logger.Warn().
			Str("node_id", nodeID).
			Str("error_class", models.ErrorClass(err)).
			Msg("Failed to release node lease")
	}
}

func (o *Orchestrator) load(ctx context.Context, c *cycle) error {
	c.result.State = models.StateLoading

	ctx, span := o.deps.Tracer.Start(ctx, spanLoad)
	defer span.End()

	cfg, node, err := o.deps.Store.Load(ctx, c.nodeID)
	c.node = node

	if err != nil {
		span.SetStatus(codes.Error, models.ErrorClass(err))
		c.log.Error().
			Str("state", string(models.StateLoading)).
			Str("error_class", models.ErrorClass(err)).
			Msg("Failed to load server config")

		return err
	}

	c.config = cfg

	if sink := cfg.SpreadsheetSink; sink != nil {
		c.sheet = sink.SheetName
		c.loadedSinkID = sink.SpreadsheetID
	}

	return nil
}

// fetch runs every enabled adapter concurrently and joins them. One source
// failing never cancels the other.
func (o *Orchestrator) fetch(ctx context.Context, c *cycle) {
	c.result.State = models.StateFetching

	ctx, span := o.deps.Tracer.Start(ctx, spanFetch)
	defer span.End()

	var g errgroup.Group

	for _, src := range models.AllSources {
		settings := c.config.PollingSettings.ForSource(src)
		if settings == nil || !settings.Enabled {
			continue
		}

		fetcher, ok := o.deps.Fetchers[src]
		if !ok {
			continue
		}

		run := &sourceRun{source: src, settings: *settings}
		c.runs = append(c.runs, run)

		g.Go(func() error {
			run.events, run.watermark, run.err = fetcher.FetchFor(ctx, o.deps.Provider, c.node.OwnerID, run.settings)
			return nil
		})
	}

	_ = g.Wait()

	for _, run := range c.runs {
		c.result.EventsFetched += len(run.events)

		if run.err != nil {
			c.result.AddError(string(run.source) + ": " + models.ErrorClass(run.err))
			span.AddEvent("source failed", trace.WithAttributes(
				attribute.String("source", string(run.source)),
				attribute.String("error_class", models.ErrorClass(run.err)),
			))
			c.log.Warn().
				Str("source", string(run.source)).
				Int("events", len(run.events)).
				Str("error_class", models.ErrorClass(run.err)).
				Msg("Source fetch failed")
		}
	}

	span.SetAttributes(attribute.Int("events", c.result.EventsFetched))
}

func (o *Orchestrator) match(ctx context.Context, c *cycle) []models.SSMAlert {
	c.result.State = models.StateMatching

	_, span := o.deps.Tracer.Start(ctx, spanMatch)
	defer span.End()

	var events []models.SSMEvent
	for _, run := range c.runs {
		events = append(events, run.events...)
	}

	alerts := rules.Match(events, c.config.Rules, c.config.AlertTemplates)
	c.result.AlertsGenerated = len(alerts)
	span.SetAttributes(attribute.Int("alerts", len(alerts)))

	c.log.Debug().
		Int("events", len(events)).
		Int("alerts", len(alerts)).
		Msg("Matching complete")

	return alerts
}

// execute runs actions source by source so a deadline part way through still
// leaves earlier sources fully processed.
func (o *Orchestrator) execute(ctx context.Context, c *cycle, alerts []models.SSMAlert) {
	c.result.State = models.StateExecuting

	ctx, span := o.deps.Tracer.Start(ctx, spanExecute)
	defer span.End()

	mail := &lazyClient[credentials.MailClient]{}
	sheets := &lazyClient[credentials.SheetsClient]{}

	for _, run := range c.runs {
		if ctx.Err() != nil {
			return
		}

		events := make(map[string]*models.SSMEvent, len(run.events))
		for i := range run.events {
			events[run.events[i].ID] = &run.events[i]
		}

		var batch []models.SSMAlert

		for _, a := range alerts {
			if _, ok := events[a.EventID]; ok {
				batch = append(batch, a)
			}
		}

		if len(batch) > 0 {
			if run.source == models.SourceEmail {
				o.autoReply(ctx, c, mail, events, batch)
			}

			o.logRows(ctx, c, sheets, events, batch)
		}

		run.processed = ctx.Err() == nil
	}
}

func (o *Orchestrator) autoReply(
	ctx context.Context, c *cycle, mail *lazyClient[credentials.MailClient], events map[string]*models.SSMEvent, alerts []models.SSMAlert) {
	settings := c.config.AutoReply
	if settings == nil || !settings.Enabled || o.deps.Replier == nil {
		return
	}

	client, err := mail.get(func() (credentials.MailClient, error) {
		return o.deps.Provider.Mail(ctx, c.node.OwnerID, c.config.PollingSettings.Email.ConnectionID)
	})
	if err != nil {
		c.result.AddError("auto_reply: " + models.ErrorClass(fmt.Errorf("%w: %w", models.ErrCredentials, err)))
		return
	}

	summary := o.deps.Replier.ReplyAll(ctx, client, c.node.OwnerID, settings, events, alerts)
	c.result.AutoRepliesSent += summary.Sent
	c.result.AutoRepliesRateLimited += summary.RateLimited

	for _, err := range summary.Errors {
		c.result.AddError("auto_reply: " + models.ErrorClass(err))
	}
}

func (o *Orchestrator) logRows(
	ctx context.Context, c *cycle, sheets *lazyClient[credentials.SheetsClient], events map[string]*models.SSMEvent, alerts []models.SSMAlert) {
	sink := c.config.SpreadsheetSink
	if sink == nil || !sink.Enabled || o.deps.Sheets == nil {
		return
	}

	connection := sink.ConnectionID
	if connection == "" {
		connection = c.config.PollingSettings.Email.ConnectionID
	}

	client, err := sheets.get(func() (credentials.SheetsClient, error) {
		return o.deps.Provider.Sheets(ctx, c.node.OwnerID, connection)
	})
	if err != nil {
		c.result.AddError("spreadsheet: " + models.ErrorClass(fmt.Errorf("%w: %w", models.ErrCredentials, err)))
		return
	}

	summary := o.deps.Sheets.LogAlerts(ctx, client, c.node.OwnerID, sink, events, alerts)
	c.result.SheetRowsLogged += summary.Rows

	if summary.Stale || (summary.SpreadsheetID != "" && sink.SpreadsheetID == "") {
		sink.SpreadsheetID = summary.SpreadsheetID
	}

	if summary.Err != nil {
		c.result.AddError("spreadsheet: " + models.ErrorClass(summary.Err))
	}
}

// persist writes advanced cursors and a changed sink id back to the config.
// It runs on a detached context so a cycle that hit its deadline still
// commits the sources it finished.
func (o *Orchestrator) persist(ctx context.Context, c *cycle) {
	if c.result.State != models.StateAborted {
		c.result.State = models.StatePersisting
	}

	cursors := make(map[models.EventSource]*sourceRun)

	for _, run := range c.runs {
		if run.processed && run.watermark != "" && run.watermark != run.settings.Cursor {
			cursors[run.source] = run
		}
	}

	// The sink id changes when it is first resolved or when the cached one
	// turned out to be deleted.
	var (
		sinkChanged bool
		sinkID      string
	)

	if sink := c.config.SpreadsheetSink; sink != nil && sink.SpreadsheetID != c.loadedSinkID {
		sinkChanged, sinkID = true, sink.SpreadsheetID
	}

	if len(cursors) == 0 && !sinkChanged {
		return
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	persistCtx, span := o.deps.Tracer.Start(persistCtx, spanPersist)
	defer span.End()

	committed := make(map[string]string, len(cursors))

	// mutate may run again on a newer version, so it only touches a source
	// whose connection is unchanged since load.
	mutate := func(latest *models.ServerConfig) {
		clear(committed)

		for src, run := range cursors {
			settings := latest.PollingSettings.ForSource(src)
			if settings == nil || settings.ConnectionID != run.settings.ConnectionID {
				continue
			}

			settings.Cursor = run.watermark
			committed[string(src)] = run.watermark
		}

		if sink := latest.SpreadsheetSink; sinkChanged && sink != nil && sink.SheetName == c.sheet && sink.SpreadsheetID == c.loadedSinkID {
			sink.SpreadsheetID = sinkID
		}
	}

	version, err := o.deps.Store.SaveState(persistCtx, c.nodeID, c.node.ServerConfigVersion, mutate)
	if err != nil {
		span.SetStatus(codes.Error, models.ErrorClass(err))
		c.result.AddError("persist: " + models.ErrorClass(err))
		c.log.Error().
			Str("state", string(models.StatePersisting)).
			Str("error_class", models.ErrorClass(err)).
			Msg("Failed to persist cycle state")

		return
	}

	if len(committed) > 0 {
		c.result.UpdatedCursors = committed
	}

	c.log.Debug().Int64("version", version).Int("cursors", len(committed)).Msg("Cycle state persisted")
}

func (o *Orchestrator) finish(ctx context.Context, c *cycle, started time.Time) {
	if c.result.State != models.StateAborted {
		c.result.State = models.StateIdle
	}

	// Soft errors leave the cycle successful; Errors carries them.
	c.result.Success = c.result.State != models.StateAborted
	c.result.DurationMs = o.now().Sub(started).Milliseconds()

	if c.node != nil {
		var errText *string

		if len(c.result.Errors) > 0 {
			text := strings.Join(c.result.Errors, "; ")
			errText = &text
		}

		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()

		if err := o.deps.Store.RecordPoll(recordCtx, c.nodeID, o.now().UTC(), errText); err != nil {
			c.log.Warn().Str("error_class", models.ErrorClass(err)).Msg("Failed to record poll audit fields")
		}
	}

	o.deps.Metrics.RecordCycle(ctx, c.result)
	annotateCycle(trace.SpanFromContext(ctx), c.result)

	c.log.Info().
		Str("state", string(c.result.State)).
		Bool("success", c.result.Success).
		Int("events", c.result.EventsFetched).
		Int("alerts", c.result.AlertsGenerated).
		Int("replies", c.result.AutoRepliesSent).
		Int("rate_limited", c.result.AutoRepliesRateLimited).
		Int("rows", c.result.SheetRowsLogged).
		Int("errors", len(c.result.Errors)).
		Int64("duration_ms", c.result.DurationMs).
		Msg("Poll cycle finished")
}

// lazyClient resolves a client at most once per cycle.
type lazyClient[T any] struct {
	once   sync.Once
	client T
	err    error
}

func (l *lazyClient[T]) get(resolve func() (T, error)) (T, error) {
	l.once.Do(func() {
		l.client, l.err = resolve()
	})

	return l.client, l.err
}
