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

package orchestrator

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/ssm/pkg/models"
)

const tracerName = "github.com/carverauto/ssm/pkg/orchestrator"

// Span names. Stage spans are children of spanCycle.
const (
	spanCycle   = "ssm.cycle"
	spanLoad    = "ssm.load"
	spanFetch   = "ssm.fetch"
	spanMatch   = "ssm.match"
	spanExecute = "ssm.execute"
	spanPersist = "ssm.persist"
)

// annotateCycle copies the outcome counters onto the cycle span. Only
// counts and error classes are recorded.
func annotateCycle(span trace.Span, result *models.PollResult) {
	span.SetAttributes(
		attribute.String("state", string(result.State)),
		attribute.Bool("success", result.Success),
		attribute.Int("events", result.EventsFetched),
		attribute.Int("alerts", result.AlertsGenerated),
		attribute.Int("replies", result.AutoRepliesSent),
		attribute.Int("rows", result.SheetRowsLogged),
		attribute.Int("errors", len(result.Errors)),
	)

	if result.State == models.StateAborted && len(result.Errors) > 0 {
		span.SetStatus(codes.Error, result.Errors[len(result.Errors)-1])
	}
}
