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

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/memstore"
	"github.com/carverauto/ssm/pkg/models"
)

var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

type recordingRunner struct {
	mu      sync.Mutex
	calls   []string
	active  int
	maxSeen int
	delay   time.Duration
	errs    map[string]error
}

func (r *recordingRunner) RunCycle(_ context.Context, nodeID string, trigger models.TriggerSource) (*models.PollResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, nodeID)
	r.active++

	if r.active > r.maxSeen {
		r.maxSeen = r.active
	}
	r.mu.Unlock()

	time.Sleep(r.delay)

	r.mu.Lock()
	r.active--
	err := r.errs[nodeID]
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return &models.PollResult{Success: true, Source: trigger}, nil
}

func (r *recordingRunner) sortedCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := append([]string(nil), r.calls...)
	sort.Strings(out)

	return out
}

func seededStore(t *testing.T) *memstore.Store {
	t.Helper()

	store := memstore.New()
	recent := testNow.Add(-2 * time.Minute)
	stale := testNow.Add(-10 * time.Minute)

	store.PutNode(&models.MonitoredNode{ID: "never", BackgroundPollingEnabled: true, ServerConfigEncrypted: []byte{1}})
	store.PutNode(&models.MonitoredNode{ID: "stale", BackgroundPollingEnabled: true, ServerConfigEncrypted: []byte{1}, LastBackgroundPollAt: &stale, PollIntervalMinutes: 5})
	store.PutNode(&models.MonitoredNode{ID: "recent", BackgroundPollingEnabled: true, ServerConfigEncrypted: []byte{1}, LastBackgroundPollAt: &recent, PollIntervalMinutes: 5})
	store.PutNode(&models.MonitoredNode{ID: "disabled", ServerConfigEncrypted: []byte{1}})
	store.PutNode(&models.MonitoredNode{ID: "cleared", BackgroundPollingEnabled: true})

	return store
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func (fixedClock) Ticker(d time.Duration) Ticker { return &realTicker{t: time.NewTicker(d)} }

func TestTickRunsDueNodesOnly(t *testing.T) {
	runner := &recordingRunner{}
	s := New(seededStore(t), runner, Config{}, logger.NewTestLogger())
	s.SetClock(fixedClock{now: testNow})

	stats, err := s.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, TickStats{Due: 2, Completed: 2}, stats)
	assert.Equal(t, []string{"never", "stale"}, runner.sortedCalls())
}

func TestTickRespectsConcurrency(t *testing.T) {
	store := memstore.New()
	for i := 0; i < 12; i++ {
		store.PutNode(&models.MonitoredNode{ID: fmt.Sprintf("n%02d", i), BackgroundPollingEnabled: true, ServerConfigEncrypted: []byte{1}})
	}

	runner := &recordingRunner{delay: 20 * time.Millisecond}
	s := New(store, runner, Config{Concurrency: 3}, logger.NewTestLogger())
	s.SetClock(fixedClock{now: testNow})

	stats, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Completed)
	assert.LessOrEqual(t, runner.maxSeen, 3)
	assert.Len(t, runner.sortedCalls(), 12)
}

func TestTickBatchSize(t *testing.T) {
	store := memstore.New()
	for i := 0; i < 5; i++ {
		store.PutNode(&models.MonitoredNode{ID: fmt.Sprintf("n%d", i), BackgroundPollingEnabled: true, ServerConfigEncrypted: []byte{1}})
	}

	runner := &recordingRunner{}
	s := New(store, runner, Config{BatchSize: 2}, logger.NewTestLogger())
	s.SetClock(fixedClock{now: testNow})

	stats, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Due)
}

func TestTickClassifiesOutcomes(t *testing.T) {
	runner := &recordingRunner{errs: map[string]error{
		"never": fmt.Errorf("node never: %w", models.ErrCycleInProgress),
		"stale": fmt.Errorf("load: %w", models.ErrEncryption),
	}}

	s := New(seededStore(t), runner, Config{}, logger.NewTestLogger())
	s.SetClock(fixedClock{now: testNow})

	stats, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickStats{Due: 2, Skipped: 1, Failed: 1}, stats)
}

func TestTickListError(t *testing.T) {
	ctrl := gomock.NewController(t)
	lister := NewMockNodeLister(ctrl)
	runner := NewMockCycleRunner(ctrl)

	lister.EXPECT().ListDueNodes(gomock.Any(), testNow, defaultBatchSize).Return(nil, errors.New("db down"))

	s := New(lister, runner, Config{}, logger.NewTestLogger())
	s.SetClock(fixedClock{now: testNow})

	_, err := s.Tick(context.Background())
	require.Error(t, err)
}

func TestStartTicksUntilStopped(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock := NewMockClock(ctrl)
	ticker := NewMockTicker(ctrl)
	lister := NewMockNodeLister(ctrl)
	runner := NewMockCycleRunner(ctrl)

	ticks := make(chan time.Time)
	ran := make(chan string, 4)

	clock.EXPECT().Ticker(time.Minute).Return(ticker)
	clock.EXPECT().Now().Return(testNow).AnyTimes()
	ticker.EXPECT().Chan().Return((<-chan time.Time)(ticks)).AnyTimes()
	ticker.EXPECT().Stop()

	lister.EXPECT().ListDueNodes(gomock.Any(), testNow, defaultBatchSize).
		Return([]*models.MonitoredNode{{ID: "node-1"}}, nil).Times(2)
	runner.EXPECT().RunCycle(gomock.Any(), "node-1", models.TriggerCron).
		DoAndReturn(func(context.Context, string, models.TriggerSource) (*models.PollResult, error) {
			ran <- "node-1"
			return &models.PollResult{Success: true}, nil
		}).Times(2)

	s := New(lister, runner, Config{}, logger.NewTestLogger())
	s.SetClock(clock)

	errCh := make(chan error, 1)

	go func() { errCh <- s.Start(context.Background()) }()

	<-ran

	ticks <- testNow.Add(time.Minute)

	<-ran

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, <-errCh)
}

func TestStartReturnsOnCancel(t *testing.T) {
	store := memstore.New()
	s := New(store, &recordingRunner{}, Config{Interval: time.Hour}, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	go func() { errCh <- s.Start(ctx) }()

	cancel()

	require.ErrorIs(t, <-errCh, context.Canceled)
}
