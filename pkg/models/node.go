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

package models

import "time"

// DefaultPollIntervalMinutes applies when a config omits interval_minutes.
const DefaultPollIntervalMinutes = 5

// MonitoredNode is the workflow node a monitoring configuration is attached to.
// Only the audit fields are plaintext; everything else lives in the encrypted blob.
type MonitoredNode struct {
	ID                       string     `json:"id"`
	CanvasID                 string     `json:"canvas_id"`
	OwnerID                  string     `json:"owner_id"`
	BackgroundPollingEnabled bool       `json:"background_polling_enabled"`
	ServerConfigEncrypted    []byte     `json:"-"`
	ServerConfigVersion      int64      `json:"server_config_version"`
	ServerConfigUpdatedAt    *time.Time `json:"server_config_updated_at,omitempty"`
	LastBackgroundPollAt     *time.Time `json:"last_background_poll_at,omitempty"`
	LastBackgroundPollError  *string    `json:"last_background_poll_error,omitempty"`
	PollIntervalMinutes      int        `json:"poll_interval_minutes"`
}

// HasConfig reports whether the node currently carries an encrypted config.
func (n *MonitoredNode) HasConfig() bool {
	return n != nil && len(n.ServerConfigEncrypted) > 0
}

// Due reports whether a cron cycle should run for the node at now.
func (n *MonitoredNode) Due(now time.Time) bool {
	if n == nil || !n.BackgroundPollingEnabled || !n.HasConfig() {
		return false
	}

	if n.LastBackgroundPollAt == nil {
		return true
	}

	interval := n.PollIntervalMinutes
	if interval <= 0 {
		interval = DefaultPollIntervalMinutes
	}

	return now.Sub(*n.LastBackgroundPollAt) >= time.Duration(interval)*time.Minute
}

// ConfigWrite is one atomic replacement of a node's encrypted config.
// The repository applies it only when the stored version equals
// PreviousVersion, which makes every write a compare-and-swap.
type ConfigWrite struct {
	NodeID          string
	PreviousVersion int64
	Version         int64
	Ciphertext      []byte
	UpdatedAt       time.Time
	// PollingEnabled is left untouched when nil (cursor-only write-back).
	PollingEnabled  *bool
	IntervalMinutes int
}
