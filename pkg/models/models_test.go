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

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "string", input: `"90s"`, want: 90 * time.Second},
		{name: "nanoseconds", input: `1000000000`, want: time.Second},
		{name: "bad string", input: `"soon"`, wantErr: true},
		{name: "bool", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Std())
		})
	}
}

func TestSeverityOrdering(t *testing.T) {
	assert.Less(t, SeverityLow.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityCritical.Rank())

	assert.Equal(t, SeverityHigh, MaxSeverity(SeverityLow, SeverityHigh))
	assert.Equal(t, SeverityCritical, MaxSeverity(SeverityCritical, SeverityMedium))
	assert.Equal(t, SeverityLow, MaxSeverity(SeverityLow, Severity("bogus")))
	assert.False(t, Severity("urgent").Valid())
}

func TestNodeDue(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-2 * time.Minute)
	old := now.Add(-30 * time.Minute)

	tests := []struct {
		name string
		node *MonitoredNode
		want bool
	}{
		{name: "never polled", node: &MonitoredNode{BackgroundPollingEnabled: true, ServerConfigEncrypted: []byte{1}}, want: true},
		{name: "disabled", node: &MonitoredNode{ServerConfigEncrypted: []byte{1}}, want: false},
		{name: "cleared", node: &MonitoredNode{BackgroundPollingEnabled: true}, want: false},
		{name: "recent", node: &MonitoredNode{BackgroundPollingEnabled: true, ServerConfigEncrypted: []byte{1}, LastBackgroundPollAt: &recent, PollIntervalMinutes: 5}, want: false},
		{name: "elapsed", node: &MonitoredNode{BackgroundPollingEnabled: true, ServerConfigEncrypted: []byte{1}, LastBackgroundPollAt: &old, PollIntervalMinutes: 15}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.node.Due(now))
		})
	}
}

func TestPollResultKeepsFirstErrors(t *testing.T) {
	var r PollResult

	for i := 0; i < 25; i++ {
		r.AddError(fmt.Sprintf("err-%d", i))
	}

	require.Len(t, r.Errors, MaxPollErrors)
	assert.Equal(t, "err-0", r.Errors[0])
	assert.Equal(t, "err-9", r.Errors[9])
}

func TestErrorClass(t *testing.T) {
	assert.Equal(t, "validation", ErrorClass(&ValidationError{Field: "rules", Reason: "required"}))
	assert.Equal(t, "source_fetch", ErrorClass(fmt.Errorf("email: %w", ErrSourceFetch)))
	assert.Equal(t, "timeout", ErrorClass(fmt.Errorf("cycle: %w", context.DeadlineExceeded)))
	assert.Equal(t, "internal", ErrorClass(assert.AnError))
	assert.Empty(t, ErrorClass(nil))
}

func TestValidationErrorsUnwrap(t *testing.T) {
	var errs ValidationErrors
	require.NoError(t, errs.Err())

	errs = append(errs, &ValidationError{Field: "rules[0].severity", Reason: "unknown severity"})

	err := errs.Err()
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "rules[0].severity")
}

func TestServiceConfigDefaults(t *testing.T) {
	cfg := &ServiceConfig{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendMemory, cfg.Store)
	assert.Equal(t, BackendMemory, cfg.Leases)
	assert.Equal(t, 2*time.Minute, cfg.CycleTimeout.Std())
	assert.Equal(t, 2*time.Minute+30*time.Second, cfg.LeaseTTL())
	assert.Equal(t, "SSM_CONFIG_KEY", cfg.Keys.EnvVar)
}

func TestServiceConfigBackendChecks(t *testing.T) {
	require.ErrorIs(t, (&ServiceConfig{Store: BackendPostgres}).Validate(), errDatabaseRequired)
	require.ErrorIs(t, (&ServiceConfig{Leases: BackendNATS}).Validate(), errNATSRequired)
	require.ErrorIs(t, (&ServiceConfig{Store: "sqlite"}).Validate(), errUnknownBackend)

	cfg := &ServiceConfig{Leases: BackendNATS, NATS: &NATSConfig{URL: "nats://localhost:4222"}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ssm-leases", cfg.NATS.Bucket)
}

func TestEmailEventBody(t *testing.T) {
	e := SSMEvent{Type: EventTypeEmail, Content: "From: a@example.com\nSubject: hi\n\nline one\n\nline two"}
	assert.Equal(t, "line one\n\nline two", e.Body())
}
