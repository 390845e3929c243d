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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/carverauto/ssm/pkg/models"
)

func newTestRecorder(t *testing.T) (*Recorder, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()

	manager, err := NewManagerWithReader(context.Background(), reader, "ssm-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	recorder, err := NewRecorder(manager.Meter())
	require.NoError(t, err)

	return recorder, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}

	return out
}

// sumBy returns counter totals keyed by the value of attribute key.
func sumBy(t *testing.T, m metricdata.Metrics, key attribute.Key) map[string]int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)

	out := make(map[string]int64)

	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(key)
		out[v.Emit()] += dp.Value
	}

	return out
}

func total(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()

	var n int64
	for _, v := range sumBy(t, m, "source") {
		n += v
	}

	return n
}

func TestRecordCycle(t *testing.T) {
	recorder, reader := newTestRecorder(t)
	ctx := context.Background()

	recorder.RecordCycle(ctx, &models.PollResult{
		Success:                true,
		Source:                 models.TriggerCron,
		State:                  models.StateIdle,
		EventsFetched:          7,
		AlertsGenerated:        2,
		AutoRepliesSent:        1,
		AutoRepliesRateLimited: 3,
		SheetRowsLogged:        2,
		DurationMs:             1500,
		Errors:                 []string{"calendar: source_fetch"},
	})
	recorder.RecordCycle(ctx, &models.PollResult{
		Source:     models.TriggerManual,
		State:      models.StateAborted,
		DurationMs: 10,
		Errors:     []string{"load: encryption", "garbled"},
	})
	recorder.RecordCycle(ctx, nil)

	metrics := collect(t, reader)

	assert.Equal(t, map[string]int64{"partial": 1, "aborted": 1}, sumBy(t, metrics[metricCycles], "outcome"))
	assert.Equal(t, map[string]int64{"cron": 1, "manual": 1}, sumBy(t, metrics[metricCycles], "source"))
	assert.Equal(t, int64(7), total(t, metrics[metricEvents]))
	assert.Equal(t, int64(2), total(t, metrics[metricAlerts]))
	assert.Equal(t, int64(2), total(t, metrics[metricSheetRows]))
	assert.Equal(t, map[string]int64{"sent": 1, "rate_limited": 3}, sumBy(t, metrics[metricAutoReplies], "result"))
	assert.Equal(t, map[string]int64{"source_fetch": 1, "encryption": 1, "unknown": 1}, sumBy(t, metrics[metricCycleErrors], "class"))
	assert.Equal(t, map[string]int64{"calendar": 1, "load": 1, "cycle": 1}, sumBy(t, metrics[metricCycleErrors], "stage"))

	hist, ok := metrics[metricDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)

	var (
		count   uint64
		seconds float64
	)

	for _, dp := range hist.DataPoints {
		count += dp.Count
		seconds += dp.Sum
	}

	assert.Equal(t, uint64(2), count)
	assert.InDelta(t, 1.51, seconds, 1e-9)
}

func TestRecordCycleFailedOutcome(t *testing.T) {
	recorder, reader := newTestRecorder(t)

	recorder.RecordCycle(context.Background(), &models.PollResult{Source: models.TriggerCron, State: models.StateIdle})

	metrics := collect(t, reader)
	assert.Equal(t, map[string]int64{"failed": 1}, sumBy(t, metrics[metricCycles], "outcome"))

	_, ok := metrics[metricEvents]
	assert.False(t, ok, "zero counts are not recorded")
}

func TestNewManagerDisabled(t *testing.T) {
	manager, err := NewManager(context.Background(), &models.MetricsConfig{Enabled: false}, "1.0.0")
	require.ErrorIs(t, err, ErrMetricsDisabled)
	require.NotNil(t, manager)

	recorder, err := NewRecorder(manager.Meter())
	require.NoError(t, err)

	recorder.RecordCycle(context.Background(), &models.PollResult{Success: true})
	require.NoError(t, manager.Shutdown(context.Background()))
}

func TestNewRecorderRequiresMeter(t *testing.T) {
	_, err := NewRecorder(nil)
	require.ErrorIs(t, err, errNilMeter)
}
