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

// Package memstore is a single-process backend for nodes, rate-limit
// counters and cycle leases. It backs the memory store option and tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carverauto/ssm/pkg/models"
)

type counter struct {
	value     int64
	expiresAt time.Time
}

type lease struct {
	holder    string
	expiresAt time.Time
}

// Store keeps all state behind one mutex.
type Store struct {
	mu       sync.Mutex
	nodes    map[string]*models.MonitoredNode
	counters map[string]*counter
	leases   map[string]*lease
	tokens   map[string][]byte
	now      func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		nodes:    make(map[string]*models.MonitoredNode),
		counters: make(map[string]*counter),
		leases:   make(map[string]*lease),
		tokens:   make(map[string][]byte),
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now = now
}

// PutNode registers or replaces a node record.
func (s *Store) PutNode(node *models.MonitoredNode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes[node.ID] = cloneNode(node)
}

// GetNode returns a copy of the node or models.ErrNotFound.
func (s *Store) GetNode(_ context.Context, nodeID string) (*models.MonitoredNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, models.ErrNotFound)
	}

	return cloneNode(node), nil
}

// WriteConfig applies w only when the stored version is w.PreviousVersion.
func (s *Store) WriteConfig(_ context.Context, w *models.ConfigWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[w.NodeID]
	if !ok {
		return fmt.Errorf("node %s: %w", w.NodeID, models.ErrNotFound)
	}

	if node.ServerConfigVersion != w.PreviousVersion {
		return fmt.Errorf("node %s at version %d, expected %d: %w",
			w.NodeID, node.ServerConfigVersion, w.PreviousVersion, models.ErrVersionConflict)
	}

	updatedAt := w.UpdatedAt

	node.ServerConfigEncrypted = append([]byte(nil), w.Ciphertext...)
	node.ServerConfigVersion = w.Version
	node.ServerConfigUpdatedAt = &updatedAt

	if w.PollingEnabled != nil {
		node.BackgroundPollingEnabled = *w.PollingEnabled
	}

	if w.IntervalMinutes > 0 {
		node.PollIntervalMinutes = w.IntervalMinutes
	}

	return nil
}

// ClearConfig disables polling and drops the ciphertext.
func (s *Store) ClearConfig(_ context.Context, nodeID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[nodeID]
	if !ok {
		return fmt.Errorf("node %s: %w", nodeID, models.ErrNotFound)
	}

	node.BackgroundPollingEnabled = false
	node.ServerConfigEncrypted = nil
	node.ServerConfigUpdatedAt = &at

	return nil
}

// RecordPoll updates the audit fields only.
func (s *Store) RecordPoll(_ context.Context, nodeID string, at time.Time, errText *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[nodeID]
	if !ok {
		return fmt.Errorf("node %s: %w", nodeID, models.ErrNotFound)
	}

	node.LastBackgroundPollAt = &at

	if errText != nil {
		msg := *errText
		node.LastBackgroundPollError = &msg
	} else {
		node.LastBackgroundPollError = nil
	}

	return nil
}

// ListDueNodes returns nodes due at now, least recently polled first.
func (s *Store) ListDueNodes(_ context.Context, now time.Time, limit int) ([]*models.MonitoredNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*models.MonitoredNode, 0)

	for _, node := range s.nodes {
		if node.Due(now) {
			due = append(due, cloneNode(node))
		}
	}

	sort.Slice(due, func(i, j int) bool {
		a, b := due[i].LastBackgroundPollAt, due[j].LastBackgroundPollAt
		switch {
		case a == nil && b == nil:
			return due[i].ID < due[j].ID
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

// Increment bumps the counter for key, resetting it once window has elapsed.
func (s *Store) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	c, ok := s.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		c = &counter{expiresAt: now.Add(window)}
		s.counters[key] = c
	}

	c.value++

	return c.value, nil
}

// CleanExpired drops lapsed counters and leases and reports how many went.
func (s *Store) CleanExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	var removed int64

	for key, c := range s.counters {
		if !now.Before(c.expiresAt) {
			delete(s.counters, key)
			removed++
		}
	}

	for key, l := range s.leases {
		if !now.Before(l.expiresAt) {
			delete(s.leases, key)
			removed++
		}
	}

	return removed, nil
}

// Acquire takes the lease for key or returns models.ErrLeaseHeld.
func (s *Store) Acquire(_ context.Context, key, holder string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if l, ok := s.leases[key]; ok && now.Before(l.expiresAt) && l.holder != holder {
		return fmt.Errorf("%s: %w", key, models.ErrLeaseHeld)
	}

	s.leases[key] = &lease{holder: holder, expiresAt: now.Add(ttl)}

	return nil
}

// Release drops the lease if holder still owns it.
func (s *Store) Release(_ context.Context, key, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.leases[key]; ok && l.holder == holder {
		delete(s.leases, key)
	}

	return nil
}

// GetSealedToken returns the sealed token for a user connection.
func (s *Store) GetSealedToken(_ context.Context, userID, connectionID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, ok := s.tokens[userID+"|"+connectionID]
	if !ok {
		return nil, fmt.Errorf("token for connection %s: %w", connectionID, models.ErrNotFound)
	}

	return append([]byte(nil), sealed...), nil
}

// PutSealedToken stores or replaces a sealed token.
func (s *Store) PutSealedToken(_ context.Context, userID, connectionID string, sealed []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[userID+"|"+connectionID] = append([]byte(nil), sealed...)

	return nil
}

func cloneNode(n *models.MonitoredNode) *models.MonitoredNode {
	out := *n
	out.ServerConfigEncrypted = append([]byte(nil), n.ServerConfigEncrypted...)

	if len(n.ServerConfigEncrypted) == 0 {
		out.ServerConfigEncrypted = nil
	}

	if n.ServerConfigUpdatedAt != nil {
		t := *n.ServerConfigUpdatedAt
		out.ServerConfigUpdatedAt = &t
	}

	if n.LastBackgroundPollAt != nil {
		t := *n.LastBackgroundPollAt
		out.LastBackgroundPollAt = &t
	}

	if n.LastBackgroundPollError != nil {
		e := *n.LastBackgroundPollError
		out.LastBackgroundPollError = &e
	}

	return &out
}
