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

package secrets

import (
	"context"
	"fmt"
)

// Info strings keep keys for different purposes independent even when they
// share provider material.
const (
	InfoServerConfig = "ssm-server-config-v1"
	InfoOAuthTokens  = "ssm-oauth-tokens-v1"
)

// Envelope resolves a key per operation and seals payloads with it.
type Envelope struct {
	provider KeyProvider
	info     string
}

// NewEnvelope binds a provider to a key purpose.
func NewEnvelope(provider KeyProvider, info string) *Envelope {
	return &Envelope{provider: provider, info: info}
}

// Seal encrypts plaintext bound to aad with a fresh nonce.
func (e *Envelope) Seal(ctx context.Context, plaintext, aad []byte) ([]byte, error) {
	c, err := e.cipher(ctx)
	if err != nil {
		return nil, err
	}

	return c.Seal(plaintext, aad)
}

// Open decrypts a payload produced by Seal with the same aad.
func (e *Envelope) Open(ctx context.Context, payload, aad []byte) ([]byte, error) {
	c, err := e.cipher(ctx)
	if err != nil {
		return nil, err
	}

	return c.Open(payload, aad)
}

func (e *Envelope) cipher(ctx context.Context) (*Cipher, error) {
	material, err := e.provider.KeyMaterial(ctx)
	if err != nil {
		return nil, fmt.Errorf("secrets: resolve key: %w", err)
	}

	key, err := DeriveKey(material, e.info)
	if err != nil {
		return nil, err
	}

	return NewCipher(key)
}
