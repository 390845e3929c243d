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

package kv

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/models"
)

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	require.Eventually(t, func() bool {
		return srv.JetStreamEnabled()
	}, 5*time.Second, 50*time.Millisecond, "embedded NATS server not ready for JetStream")

	t.Cleanup(srv.Shutdown)

	return srv
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*NatsStore, *clock) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping embedded JetStream test in short mode")
	}

	srv := runJetStreamServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewNatsStore(ctx, Options{URL: srv.ClientURL(), Bucket: "ssm-test", TTL: time.Hour}, logger.NewTestLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	c := &clock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	store.SetClock(c.Now)

	return store, c
}

func TestLeaseLifecycle(t *testing.T) {
	store, c := newTestStore(t)
	ctx := context.Background()
	key := "ssm:node:node-1"

	require.NoError(t, store.Acquire(ctx, key, "worker-a", 150*time.Second))
	require.ErrorIs(t, store.Acquire(ctx, key, "worker-b", 150*time.Second), models.ErrLeaseHeld)

	// Renewal by the same holder succeeds.
	require.NoError(t, store.Acquire(ctx, key, "worker-a", 150*time.Second))

	// A stranger's release is ignored.
	require.NoError(t, store.Release(ctx, key, "worker-b"))
	require.ErrorIs(t, store.Acquire(ctx, key, "worker-b", 150*time.Second), models.ErrLeaseHeld)

	require.NoError(t, store.Release(ctx, key, "worker-a"))
	require.NoError(t, store.Acquire(ctx, key, "worker-b", 150*time.Second))

	// Expired leases are taken over.
	c.Advance(151 * time.Second)
	require.NoError(t, store.Acquire(ctx, key, "worker-c", 150*time.Second))

	require.NoError(t, store.Release(ctx, "ssm:node:never-held", "worker-a"))
}

func TestLeaseSingleWinner(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			if err := store.Acquire(ctx, "ssm:node:race", "worker-"+string(rune('a'+i)), time.Minute); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, models.ErrLeaseHeld)
			}
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestIncrementConcurrent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	key := "user-1|0123456789abcdef|1717322400"

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts []int64
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			n, err := store.Increment(ctx, key, time.Hour)
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			counts = append(counts, n)
			mu.Unlock()
		}()
	}

	wg.Wait()

	sort.Slice(counts, func(i, j int) bool { return counts[i] < counts[j] })
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, counts)
}

func TestIncrementWindowResets(t *testing.T) {
	store, c := newTestStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	c.Advance(time.Minute)

	got, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestNewNatsStoreValidation(t *testing.T) {
	_, err := NewNatsStore(context.Background(), Options{Bucket: "b"}, logger.NewTestLogger())
	require.ErrorIs(t, err, errNatsURLRequired)

	_, err = NewNatsStore(context.Background(), Options{URL: "nats://127.0.0.1:1"}, logger.NewTestLogger())
	require.ErrorIs(t, err, errBucketRequired)
}

func TestEncodeKeyUsesKVAlphabet(t *testing.T) {
	for _, key := range []string{"ssm:node:a b", "u@x.com|ff|1", "ключ"} {
		for _, r := range encodeKey(key) {
			valid := r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			assert.True(t, valid, "key %q encoded with %q", key, r)
		}
	}
}
