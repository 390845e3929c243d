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

package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/ssm/pkg/models"
)

func TestWriteConfigCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutNode(&models.MonitoredNode{ID: "n1", OwnerID: "u1"})

	enabled := true
	require.NoError(t, s.WriteConfig(ctx, &models.ConfigWrite{
		NodeID: "n1", PreviousVersion: 0, Version: 1, Ciphertext: []byte("c1"),
		PollingEnabled: &enabled, IntervalMinutes: 10,
	}))

	err := s.WriteConfig(ctx, &models.ConfigWrite{NodeID: "n1", PreviousVersion: 0, Version: 1, Ciphertext: []byte("c2")})
	require.ErrorIs(t, err, models.ErrVersionConflict)

	node, err := s.GetNode(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), node.ServerConfigVersion)
	assert.Equal(t, []byte("c1"), node.ServerConfigEncrypted)
	assert.True(t, node.BackgroundPollingEnabled)
	assert.Equal(t, 10, node.PollIntervalMinutes)
}

func TestGetNodeReturnsCopy(t *testing.T) {
	s := New()
	s.PutNode(&models.MonitoredNode{ID: "n1", ServerConfigEncrypted: []byte("abc")})

	node, err := s.GetNode(context.Background(), "n1")
	require.NoError(t, err)
	node.ServerConfigEncrypted[0] = 'z'

	again, err := s.GetNode(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again.ServerConfigEncrypted)

	_, err = s.GetNode(context.Background(), "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestListDueNodes(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	old := now.Add(-time.Hour)
	fresh := now.Add(-time.Minute)

	s := New()
	s.PutNode(&models.MonitoredNode{ID: "due-old", BackgroundPollingEnabled: true, ServerConfigEncrypted: []byte{1}, LastBackgroundPollAt: &old, PollIntervalMinutes: 5})
	s.PutNode(&models.MonitoredNode{ID: "due-never", BackgroundPollingEnabled: true, ServerConfigEncrypted: []byte{1}})
	s.PutNode(&models.MonitoredNode{ID: "fresh", BackgroundPollingEnabled: true, ServerConfigEncrypted: []byte{1}, LastBackgroundPollAt: &fresh, PollIntervalMinutes: 5})
	s.PutNode(&models.MonitoredNode{ID: "off", ServerConfigEncrypted: []byte{1}})

	due, err := s.ListDueNodes(context.Background(), now, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "due-never", due[0].ID)
	assert.Equal(t, "due-old", due[1].ID)

	due, err = s.ListDueNodes(context.Background(), now, 1)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestIncrementIsAtomicAndWindowed(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	s := New()
	s.SetClock(func() time.Time { return now })

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := s.Increment(context.Background(), "k", time.Hour)
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	n, err := s.Increment(context.Background(), "k", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(51), n)

	now = now.Add(2 * time.Hour)

	n, err = s.Increment(context.Background(), "k", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCleanExpiredDropsLapsedEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	s := New()
	s.SetClock(func() time.Time { return now })

	for i := 0; i < 100; i++ {
		_, err := s.Increment(ctx, fmt.Sprintf("reply:user-1:sender-%d", i), time.Hour)
		require.NoError(t, err)
	}

	_, err := s.Increment(ctx, "reply:user-1:late", 3*time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Acquire(ctx, "ssm:node:node-1", "h1", time.Minute))

	removed, err := s.CleanExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	now = now.Add(2 * time.Hour)

	removed, err = s.CleanExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(101), removed)
	assert.Len(t, s.counters, 1)
	assert.Empty(t, s.leases)

	n, err := s.Increment(ctx, "reply:user-1:late", 3*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestLeases(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	s := New()
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Acquire(ctx, "ssm:node:n1", "a", time.Minute))
	require.ErrorIs(t, s.Acquire(ctx, "ssm:node:n1", "b", time.Minute), models.ErrLeaseHeld)

	require.NoError(t, s.Release(ctx, "ssm:node:n1", "b"))
	require.ErrorIs(t, s.Acquire(ctx, "ssm:node:n1", "b", time.Minute), models.ErrLeaseHeld)

	now = now.Add(2 * time.Minute)
	require.NoError(t, s.Acquire(ctx, "ssm:node:n1", "b", time.Minute))

	require.NoError(t, s.Release(ctx, "ssm:node:n1", "b"))
	require.NoError(t, s.Acquire(ctx, "ssm:node:n1", "a", time.Minute))
}

func TestSealedTokens(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetSealedToken(ctx, "u1", "gmail")
	require.ErrorIs(t, err, models.ErrNotFound)

	sealed := []byte("sealed")
	require.NoError(t, s.PutSealedToken(ctx, "u1", "gmail", sealed))
	sealed[0] = 'X'

	got, err := s.GetSealedToken(ctx, "u1", "gmail")
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed"), got)

	_, err = s.GetSealedToken(ctx, "u2", "gmail")
	require.ErrorIs(t, err, models.ErrNotFound)
}
