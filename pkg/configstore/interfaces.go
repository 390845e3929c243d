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

package configstore

//go:generate mockgen -destination=mock_configstore.go -package=configstore github.com/carverauto/ssm/pkg/configstore NodeRepository,Sealer

import (
	"context"
	"time"

	"github.com/carverauto/ssm/pkg/models"
)

// NodeRepository persists node records. WriteConfig is a compare-and-swap on
// ServerConfigVersion and returns models.ErrVersionConflict on mismatch.
type NodeRepository interface {
	GetNode(ctx context.Context, nodeID string) (*models.MonitoredNode, error)
	WriteConfig(ctx context.Context, w *models.ConfigWrite) error
	ClearConfig(ctx context.Context, nodeID string, at time.Time) error
	RecordPoll(ctx context.Context, nodeID string, at time.Time, errText *string) error
	ListDueNodes(ctx context.Context, now time.Time, limit int) ([]*models.MonitoredNode, error)
}

// Sealer encrypts config blobs. *secrets.Envelope implements it.
type Sealer interface {
	Seal(ctx context.Context, plaintext, aad []byte) ([]byte, error)
	Open(ctx context.Context, payload, aad []byte) ([]byte, error)
}
