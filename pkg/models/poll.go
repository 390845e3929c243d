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

// TriggerSource records who started a cycle.
type TriggerSource string

const (
	TriggerCron   TriggerSource = "cron"
	TriggerManual TriggerSource = "manual"
)

// CycleState is a poll orchestrator state.
type CycleState string

const (
	StateIdle       CycleState = "idle"
	StateLoading    CycleState = "loading"
	StateFetching   CycleState = "fetching"
	StateMatching   CycleState = "matching"
	StateExecuting  CycleState = "executing"
	StatePersisting CycleState = "persisting"
	StateAborted    CycleState = "aborted"
)

// MaxPollErrors bounds PollResult.Errors.
const MaxPollErrors = 10

// PollResult is the only artifact returned to a caller or written to audit fields.
type PollResult struct {
	Success                bool              `json:"success"`
	EventsFetched          int               `json:"events_fetched"`
	AlertsGenerated        int               `json:"alerts_generated"`
	AutoRepliesSent        int               `json:"auto_replies_sent"`
	AutoRepliesRateLimited int               `json:"auto_replies_rate_limited"`
	SheetRowsLogged        int               `json:"sheet_rows_logged"`
	DurationMs             int64             `json:"duration_ms"`
	Source                 TriggerSource     `json:"source"`
	UpdatedCursors         map[string]string `json:"updated_cursors,omitempty"`
	Errors                 []string          `json:"errors,omitempty"`
	State                  CycleState        `json:"state"`
}

// AddError appends a soft error, keeping only the first MaxPollErrors.
func (r *PollResult) AddError(msg string) {
	if len(r.Errors) >= MaxPollErrors {
		return
	}

	r.Errors = append(r.Errors, msg)
}
