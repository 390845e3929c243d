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
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/carverauto/ssm/pkg/models"
)

// TokenStore persists sealed OAuth tokens. *db.DB and *memstore.Store
// implement it.
type TokenStore interface {
	GetSealedToken(ctx context.Context, userID, connectionID string) ([]byte, error)
	PutSealedToken(ctx context.Context, userID, connectionID string, sealed []byte) error
}

// Sealer encrypts token blobs. *secrets.Envelope implements it.
type Sealer interface {
	Seal(ctx context.Context, plaintext, aad []byte) ([]byte, error)
	Open(ctx context.Context, payload, aad []byte) ([]byte, error)
}

// Vault stores OAuth tokens sealed and bound to their user connection.
type Vault struct {
	store  TokenStore
	sealer Sealer
}

// NewVault returns a vault over store.
func NewVault(store TokenStore, sealer Sealer) *Vault {
	return &Vault{store: store, sealer: sealer}
}

// Load returns the token for a connection. A missing or unreadable token is
// reported as models.ErrCredentials.
func (v *Vault) Load(ctx context.Context, userID, connectionID string) (*oauth2.Token, error) {
	sealed, err := v.store.GetSealedToken(ctx, userID, connectionID)
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w: no stored token", connectionID, models.ErrCredentials)
	}

	plain, err := v.sealer.Open(ctx, sealed, tokenAAD(userID, connectionID))
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w: token does not decrypt", connectionID, models.ErrCredentials)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(plain, &tok); err != nil {
		return nil, fmt.Errorf("connection %s: %w: malformed token", connectionID, models.ErrCredentials)
	}

	return &tok, nil
}

// Save seals and stores tok.
func (v *Vault) Save(ctx context.Context, userID, connectionID string, tok *oauth2.Token) error {
	plain, err := json.Marshal(tok)
	if err != nil {
		return err
	}

	sealed, err := v.sealer.Seal(ctx, plain, tokenAAD(userID, connectionID))
	if err != nil {
		return err
	}

	return v.store.PutSealedToken(ctx, userID, connectionID, sealed)
}

func tokenAAD(userID, connectionID string) []byte {
	return []byte(userID + "\x00" + connectionID)
}
