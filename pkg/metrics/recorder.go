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

package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/carverauto/ssm/pkg/models"
)

const (
	metricCycles      = "ssm_poll_cycles_total"
	metricDuration    = "ssm_poll_cycle_duration_seconds"
	metricEvents      = "ssm_events_fetched_total"
	metricAlerts      = "ssm_alerts_generated_total"
	metricAutoReplies = "ssm_auto_replies_total"
	metricSheetRows   = "ssm_sheet_rows_logged_total"
	metricCycleErrors = "ssm_poll_errors_total"
)

const (
	outcomeSuccess = "success"
	outcomePartial = "partial"
	outcomeFailed  = "failed"
	outcomeAborted = "aborted"
)

var errNilMeter = errors.New("meter is required")

// Recorder turns finished poll cycles into counters and a duration
// histogram. Attributes carry only trigger source, outcome, stage and error
// class.
type Recorder struct {
	cycles      metric.Int64Counter
	duration    metric.Float64Histogram
	events      metric.Int64Counter
	alerts      metric.Int64Counter
	autoReplies metric.Int64Counter
	sheetRows   metric.Int64Counter
	cycleErrors metric.Int64Counter
}

// NewRecorder registers the cycle instruments on meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	if meter == nil {
		return nil, errNilMeter
	}

	r := &Recorder{}

	var err error

	if r.cycles, err = meter.Int64Counter(metricCycles,
		metric.WithDescription("Finished poll cycles by trigger source and outcome")); err != nil {
		return nil, err
	}

	if r.duration, err = meter.Float64Histogram(metricDuration,
		metric.WithDescription("Wall time of a poll cycle"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}

	if r.events, err = meter.Int64Counter(metricEvents,
		metric.WithDescription("Events fetched from all sources")); err != nil {
		return nil, err
	}

	if r.alerts, err = meter.Int64Counter(metricAlerts,
		metric.WithDescription("Alerts produced by the rule engine")); err != nil {
		return nil, err
	}

	if r.autoReplies, err = meter.Int64Counter(metricAutoReplies,
		metric.WithDescription("Auto-replies by result")); err != nil {
		return nil, err
	}

	if r.sheetRows, err = meter.Int64Counter(metricSheetRows,
		metric.WithDescription("Rows appended to the spreadsheet sink")); err != nil {
		return nil, err
	}

	if r.cycleErrors, err = meter.Int64Counter(metricCycleErrors,
		metric.WithDescription("Soft cycle errors by stage and class")); err != nil {
		return nil, err
	}

	return r, nil
}

// RecordCycle implements the orchestrator's recorder hook.
func (r *Recorder) RecordCycle(ctx context.Context, result *models.PollResult) {
	if result == nil {
		return
	}

	source := attribute.String("source", string(result.Source))

	r.cycles.Add(ctx, 1, metric.WithAttributes(source, attribute.String("outcome", outcome(result))))
	r.duration.Record(ctx, (time.Duration(result.DurationMs) * time.Millisecond).Seconds(), metric.WithAttributes(source))

	addCount(ctx, r.events, result.EventsFetched)
	addCount(ctx, r.alerts, result.AlertsGenerated)
	addCount(ctx, r.sheetRows, result.SheetRowsLogged)
	addCount(ctx, r.autoReplies, result.AutoRepliesSent, attribute.String("result", "sent"))
	addCount(ctx, r.autoReplies, result.AutoRepliesRateLimited, attribute.String("result", "rate_limited"))

	for _, e := range result.Errors {
		stage, class, ok := strings.Cut(e, ": ")
		if !ok {
			stage, class = "cycle", "unknown"
		}

		r.cycleErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("class", class),
		))
	}
}

func addCount(ctx context.Context, c metric.Int64Counter, n int, attrs ...attribute.KeyValue) {
	if n <= 0 {
		return
	}

	c.Add(ctx, int64(n), metric.WithAttributes(attrs...))
}

func outcome(result *models.PollResult) string {
	switch {
	case result.State == models.StateAborted:
		return outcomeAborted
	case result.Success && len(result.Errors) > 0:
		return outcomePartial
	case result.Success:
		return outcomeSuccess
	default:
		return outcomeFailed
	}
}
