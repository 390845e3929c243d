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

// Package scheduler is the cron trigger: on every tick it runs a cycle for
// each node whose polling interval has elapsed.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/models"
)

const (
	defaultInterval    = time.Minute
	defaultConcurrency = 8
	defaultBatchSize   = 100
)

// Config tunes the scheduler.
type Config struct {
	Interval    time.Duration
	Concurrency int
	BatchSize   int
}

// TickStats summarizes one tick.
type TickStats struct {
	Due       int
	Completed int
	Skipped   int
	Failed    int
}

// Scheduler enumerates due nodes and fans cycles out to a bounded pool.
type Scheduler struct {
	lister NodeLister
	runner CycleRunner
	clock  Clock
	cfg    Config
	logger logger.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New returns a Scheduler using the wall clock.
func New(lister NodeLister, runner CycleRunner, cfg Config, log logger.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	return &Scheduler{
		lister: lister,
		runner: runner,
		clock:  realClock{},
		cfg:    cfg,
		logger: log,
		done:   make(chan struct{}),
	}
}

// SetClock replaces the clock, for tests.
func (s *Scheduler) SetClock(clock Clock) {
	s.clock = clock
}

// Start ticks until ctx is canceled or Stop is called. A tick that is still
// running when the next one fires delays it rather than overlapping.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := s.clock.Ticker(s.cfg.Interval)
	defer ticker.Stop()

	s.wg.Add(1)
	defer s.wg.Done()

	s.logger.Info().
		Dur("interval", s.cfg.Interval).
		Int("concurrency", s.cfg.Concurrency).
		Msg("Starting scheduler")

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

// Stop signals Start to return and waits for the current tick to drain.
func (s *Scheduler) Stop(_ context.Context) error {
	s.closeOnce.Do(func() {
		close(s.done)
	})

	s.wg.Wait()

	s.logger.Info().Msg("Scheduler stopped")

	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	stats, err := s.Tick(ctx)
	if err != nil {
		s.logger.Error().Str("error_class", models.ErrorClass(err)).Msg("Failed to list due nodes")
		return
	}

	if stats.Due == 0 {
		return
	}

	s.logger.Info().
		Int("due", stats.Due).
		Int("completed", stats.Completed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("Scheduler tick complete")
}

// Tick runs one scheduling pass and blocks until every started cycle ends.
func (s *Scheduler) Tick(ctx context.Context) (TickStats, error) {
	nodes, err := s.lister.ListDueNodes(ctx, s.clock.Now(), s.cfg.BatchSize)
	if err != nil {
		return TickStats{}, err
	}

	var (
		completed, skipped, failed atomic.Int64
		g                          errgroup.Group
	)

	g.SetLimit(s.cfg.Concurrency)

	for _, node := range nodes {
		if ctx.Err() != nil {
			break
		}

		nodeID := node.ID

		g.Go(func() error {
			_, err := s.runner.RunCycle(ctx, nodeID, models.TriggerCron)

			switch {
			case err == nil:
				completed.Add(1)
			case errors.Is(err, models.ErrCycleInProgress):
				skipped.Add(1)
			default:
				failed.Add(1)
				s.logger.Warn().
					Str("node_id", nodeID).
					Str("error_class", models.ErrorClass(err)).
					Msg("Scheduled cycle failed")
			}

			return nil
		})
	}

	_ = g.Wait()

	return TickStats{
		Due:       len(nodes),
		Completed: int(completed.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}, nil
}
