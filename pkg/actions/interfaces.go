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

// Package actions executes the side effects of an alert: the rate-limited
// auto-reply and the spreadsheet log.
package actions

//go:generate mockgen -destination=mock_actions.go -package=actions github.com/carverauto/ssm/pkg/actions RateCounter

import (
	"context"
	"time"
)

// RateCounter is a shared fixed-window counter. Increment must be atomic
// across processes and returns the value after incrementing.
type RateCounter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}
