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

// Package secrets encrypts configuration blobs and tokens at rest.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	keyLength     = 32
	nonceLength   = 12
	formatVersion = byte(1)
)

var (
	// ErrInvalidKeyLength indicates the provided key is not the required size.
	ErrInvalidKeyLength = errors.New("secrets: encryption key must be 32 bytes")
	// ErrCiphertextTooShort indicates the ciphertext payload is shorter than the nonce.
	ErrCiphertextTooShort = errors.New("secrets: ciphertext too short")
	// ErrUnsupportedFormat indicates an unknown payload version byte.
	ErrUnsupportedFormat = errors.New("secrets: unsupported payload format")
	// ErrAuthentication indicates the GCM tag did not verify.
	ErrAuthentication = errors.New("secrets: authentication failed")
)

// Cipher wraps AES-256-GCM. Every Seal draws a fresh random nonce.
type Cipher struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewCipher constructs a Cipher from the provided key bytes.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != keyLength {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: create cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, nonceLength)
	if err != nil {
		return nil, fmt.Errorf("secrets: init gcm: %w", err)
	}

	return &Cipher{aead: gcm, rand: rand.Reader}, nil
}

// Seal encrypts plaintext bound to aad. The payload layout is
// version(1) | nonce(12) | ciphertext+tag.
func (c *Cipher) Seal(plaintext, aad []byte) ([]byte, error) {
	out := make([]byte, 1+nonceLength, 1+nonceLength+len(plaintext)+c.aead.Overhead())
	out[0] = formatVersion

	nonce := out[1 : 1+nonceLength]
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return nil, fmt.Errorf("secrets: generate nonce: %w", err)
	}

	return c.aead.Seal(out, nonce, plaintext, aad), nil
}

// Open reverses Seal. A tag mismatch, including a wrong aad, yields
// ErrAuthentication.
func (c *Cipher) Open(payload, aad []byte) ([]byte, error) {
	if len(payload) < 1+nonceLength+c.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	if payload[0] != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, payload[0])
	}

	nonce := payload[1 : 1+nonceLength]

	plaintext, err := c.aead.Open(nil, nonce, payload[1+nonceLength:], aad)
	if err != nil {
		return nil, ErrAuthentication
	}

	return plaintext, nil
}
