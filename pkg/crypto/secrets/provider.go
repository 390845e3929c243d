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
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
)

//go:generate mockgen -destination=mock_provider.go -package=secrets github.com/carverauto/ssm/pkg/crypto/secrets KeyProvider

var (
	// ErrKeyUnavailable indicates the provider has no key material.
	ErrKeyUnavailable = errors.New("secrets: key material unavailable")
	// ErrKeyTooShort rejects material below 32 bytes.
	ErrKeyTooShort = errors.New("secrets: key material must be at least 32 bytes")
)

const minMaterialLength = 32

// KeyProvider supplies raw key material. Callers outside this package never
// see the material; they go through Envelope.
type KeyProvider interface {
	KeyMaterial(ctx context.Context) ([]byte, error)
}

// StaticKeyProvider returns fixed material. Intended for tests and local runs.
type StaticKeyProvider struct {
	material []byte
}

// NewStaticKeyProvider copies material into a provider.
func NewStaticKeyProvider(material []byte) *StaticKeyProvider {
	buf := make([]byte, len(material))
	copy(buf, material)

	return &StaticKeyProvider{material: buf}
}

func (p *StaticKeyProvider) KeyMaterial(_ context.Context) ([]byte, error) {
	if len(p.material) == 0 {
		return nil, ErrKeyUnavailable
	}

	return p.material, nil
}

// EnvKeyProvider reads base64 or hex encoded material from an environment variable.
type EnvKeyProvider struct {
	Var string
}

func (p *EnvKeyProvider) KeyMaterial(_ context.Context) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(p.Var))
	if raw == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrKeyUnavailable, p.Var)
	}

	return decodeMaterial(raw)
}

// FileKeyProvider reads encoded material from a mounted secret file.
type FileKeyProvider struct {
	Path string
}

func (p *FileKeyProvider) KeyMaterial(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}

	return decodeMaterial(strings.TrimSpace(string(data)))
}

func decodeMaterial(raw string) ([]byte, error) {
	var (
		material []byte
		err      error
	)

	if decoded, hexErr := hex.DecodeString(raw); hexErr == nil {
		material = decoded
	} else {
		material, err = base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: material is neither hex nor base64", ErrKeyUnavailable)
		}
	}

	if len(material) < minMaterialLength {
		return nil, ErrKeyTooShort
	}

	return material, nil
}

// CachingKeyProvider memoizes another provider's material for ttl.
type CachingKeyProvider struct {
	inner KeyProvider
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	material  []byte
	fetchedAt time.Time
}

// NewCachingKeyProvider wraps inner. A non-positive ttl caches forever.
func NewCachingKeyProvider(inner KeyProvider, ttl time.Duration) *CachingKeyProvider {
	return &CachingKeyProvider{inner: inner, ttl: ttl, now: time.Now}
}

func (p *CachingKeyProvider) KeyMaterial(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.material != nil && (p.ttl <= 0 || p.now().Sub(p.fetchedAt) < p.ttl) {
		return p.material, nil
	}

	material, err := p.inner.KeyMaterial(ctx)
	if err != nil {
		return nil, err
	}

	p.material = material
	p.fetchedAt = p.now()

	return material, nil
}

// DeriveKey expands provider material into a 32-byte AES key bound to info.
func DeriveKey(material []byte, info string) ([]byte, error) {
	key := make([]byte, keyLength)

	r := hkdf.New(sha256.New, material, nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("secrets: derive key: %w", err)
	}

	return key, nil
}
