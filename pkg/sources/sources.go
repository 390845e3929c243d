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

// Package sources turns mailbox and calendar items into SSM events.
package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/carverauto/ssm/pkg/credentials"
	"github.com/carverauto/ssm/pkg/models"
)

// Fetcher is the uniform adapter shape used by the orchestrator. It resolves
// its own client so that a credential failure stays local to one source.
type Fetcher interface {
	Source() models.EventSource
	FetchFor(ctx context.Context, provider credentials.Provider, userID string,
		settings models.SourceSettings) (events []models.SSMEvent, watermark string, err error)
}

// Registry maps each source to its adapter.
type Registry map[models.EventSource]Fetcher

// NewRegistry returns the email and calendar adapters sharing one clock.
func NewRegistry(now func() time.Time) Registry {
	if now == nil {
		now = time.Now
	}

	email := &EmailAdapter{Now: now}
	calendar := &CalendarAdapter{Now: now}

	return Registry{
		email.Source():    email,
		calendar.Source(): calendar,
	}
}

func fetchError(src models.EventSource, stage string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", src, stage, models.ErrSourceFetch, err)
}
