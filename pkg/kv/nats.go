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

// Package kv keeps cycle leases and auto-reply counters in a NATS JetStream
// key-value bucket. Updates are compare-and-swap on the entry revision.
package kv

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/models"
)

const (
	maxCASAttempts = 16

	leasePrefix = "lease."
	ratePrefix  = "rate."
)

// Options configures NewNatsStore.
type Options struct {
	URL       string
	CredsFile string
	Domain    string
	Bucket    string
	// TTL bounds how long any entry survives without a write. It must
	// exceed both the lease TTL and the longest rate-limit window.
	TTL time.Duration
}

// NatsStore implements the orchestrator lease store and the auto-reply
// rate counter.
type NatsStore struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	logger logger.Logger
	now    func() time.Time
}

type leaseRecord struct {
	Holder    string    `json:"holder"`
	ExpiresAt time.Time `json:"expires_at"`
}

type counterRecord struct {
	Count     int64     `json:"count"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewNatsStore connects and creates or updates the bucket.
func NewNatsStore(ctx context.Context, opts Options, log logger.Logger) (*NatsStore, error) {
	if opts.URL == "" {
		return nil, errNatsURLRequired
	}

	if opts.Bucket == "" {
		return nil, errBucketRequired
	}

	connectOpts := []nats.Option{
		nats.Name("ssm"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}

	if opts.CredsFile != "" {
		connectOpts = append(connectOpts, nats.UserCredentials(opts.CredsFile))
	}

	nc, err := nats.Connect(opts.URL, connectOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	var js jetstream.JetStream
	if opts.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, opts.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	config := jetstream.KeyValueConfig{
		Bucket:      opts.Bucket,
		Description: "ssm cycle leases and auto-reply counters",
		History:     1,
	}

	if opts.TTL > 0 {
		config.TTL = opts.TTL
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, config)
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create KV bucket: %w", err)
	}

	log.Info().Str("bucket", opts.Bucket).Dur("ttl", opts.TTL).Msg("Connected to JetStream KV")

	return &NatsStore{nc: nc, kv: kv, logger: log, now: time.Now}, nil
}

// SetClock overrides the time source used for expiry decisions.
func (n *NatsStore) SetClock(now func() time.Time) {
	n.now = now
}

// Acquire takes the lease for key or returns models.ErrLeaseHeld. An
// expired lease or one already held by holder is overwritten.
func (n *NatsStore) Acquire(ctx context.Context, key, holder string, ttl time.Duration) error {
	k := leasePrefix + encodeKey(key)

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		now := n.now()

		payload, err := json.Marshal(leaseRecord{Holder: holder, ExpiresAt: now.Add(ttl).UTC()})
		if err != nil {
			return err
		}

		entry, err := n.kv.Get(ctx, k)

		switch {
		case errors.Is(err, jetstream.ErrKeyNotFound):
			_, err = n.kv.Create(ctx, k, payload)
		case err != nil:
			return fmt.Errorf("failed to get lease %s: %w", key, err)
		default:
			var current leaseRecord
			if jerr := json.Unmarshal(entry.Value(), &current); jerr != nil {
				return fmt.Errorf("lease %s: %w", key, errCorruptEntry)
			}

			if current.Holder != holder && now.Before(current.ExpiresAt) {
				return fmt.Errorf("%s: %w", key, models.ErrLeaseHeld)
			}

			_, err = n.kv.Update(ctx, k, payload, entry.Revision())
		}

		if err == nil {
			return nil
		}

		if !errors.Is(err, jetstream.ErrKeyExists) {
			return fmt.Errorf("failed to write lease %s: %w", key, err)
		}
	}

	// Lost every race: someone else keeps taking it.
	return fmt.Errorf("%s: %w", key, models.ErrLeaseHeld)
}

// Release deletes the lease if holder still owns it.
func (n *NatsStore) Release(ctx context.Context, key, holder string) error {
	k := leasePrefix + encodeKey(key)

	entry, err := n.kv.Get(ctx, k)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to get lease %s: %w", key, err)
	}

	var current leaseRecord
	if err := json.Unmarshal(entry.Value(), &current); err != nil || current.Holder != holder {
		return nil
	}

	err = n.kv.Delete(ctx, k, jetstream.LastRevision(entry.Revision()))
	if err != nil && !errors.Is(err, jetstream.ErrKeyExists) && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete lease %s: %w", key, err)
	}

	return nil
}

// Increment bumps the counter for key and returns the new value. The
// counter restarts once window has elapsed since its first increment.
func (n *NatsStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := ratePrefix + encodeKey(key)

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		now := n.now()
		next := counterRecord{Count: 1, ExpiresAt: now.Add(window).UTC()}

		entry, err := n.kv.Get(ctx, k)
		found := err == nil

		if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return 0, fmt.Errorf("failed to get counter: %w", err)
		}

		if found {
			var current counterRecord
			if err := json.Unmarshal(entry.Value(), &current); err != nil {
				return 0, errCorruptEntry
			}

			if now.Before(current.ExpiresAt) {
				next = counterRecord{Count: current.Count + 1, ExpiresAt: current.ExpiresAt}
			}
		}

		payload, err := json.Marshal(next)
		if err != nil {
			return 0, err
		}

		if found {
			_, err = n.kv.Update(ctx, k, payload, entry.Revision())
		} else {
			_, err = n.kv.Create(ctx, k, payload)
		}

		if err == nil {
			return next.Count, nil
		}

		if !errors.Is(err, jetstream.ErrKeyExists) {
			return 0, fmt.Errorf("failed to write counter: %w", err)
		}
	}

	return 0, errCASExhausted
}

// Close drains the connection.
func (n *NatsStore) Close() error {
	n.nc.Close()

	return nil
}

// encodeKey maps arbitrary keys onto the KV key alphabet.
func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}
