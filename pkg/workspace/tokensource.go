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

package workspace

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/models"
)

const persistTimeout = 5 * time.Second

// persistingSource writes refreshed tokens back to the vault so the next
// cycle starts from the newest refresh token.
type persistingSource struct {
	ctx          context.Context
	base         oauth2.TokenSource
	vault        *Vault
	userID       string
	connectionID string
	logger       logger.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tok.AccessToken == s.last {
		return tok, nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), persistTimeout)
	defer cancel()

	if err := s.vault.Save(ctx, s.userID, s.connectionID, tok); err != nil {
		// The refreshed token still works for this cycle.
		s.logger.Warn().
			Str("connection_id", s.connectionID).
			Str("error_class", models.ErrorClass(err)).
			Msg("Failed to persist refreshed token")

		return tok, nil
	}

	s.last = tok.AccessToken

	return tok, nil
}
