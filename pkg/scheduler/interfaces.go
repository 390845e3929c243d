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

package scheduler

//go:generate mockgen -destination=mock_scheduler.go -package=scheduler github.com/carverauto/ssm/pkg/scheduler Clock,Ticker,NodeLister,CycleRunner

import (
	"context"
	"time"

	"github.com/carverauto/ssm/pkg/models"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// NodeLister enumerates nodes whose next cron cycle is due.
type NodeLister interface {
	ListDueNodes(ctx context.Context, now time.Time, limit int) ([]*models.MonitoredNode, error)
}

// CycleRunner runs one poll cycle. *orchestrator.Orchestrator implements it.
type CycleRunner interface {
	RunCycle(ctx context.Context, nodeID string, trigger models.TriggerSource) (*models.PollResult, error)
}
