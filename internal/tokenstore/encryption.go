// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package tokenstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

var (
	// ErrDecryptionFailed means the stored value was written with another key
	// or has been tampered with.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidCiphertext means the stored value is not ciphertext at all.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

const encryptionContext = "schoolhub-credential-store-v1"

// Encryptor seals values with AES-256-GCM under a key derived by
// HKDF-SHA256 from a master key. The nonce is prepended to the ciphertext.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor builds an Encryptor from a base64 master key. An empty key
// returns nil, nil: encryption disabled.
func NewEncryptor(masterKeyB64 string) (*Encryptor, error) {
	if masterKeyB64 == "" {
		return nil, nil
	}
	master, err := base64.StdEncoding.DecodeString(masterKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(master) < 16 {
		return nil, errors.New("master key must be at least 16 bytes")
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(encryptionContext)), key); err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM cipher: %w", err)
	}
	return &Encryptor{aead: aead}, nil
}

// Encrypt returns base64(nonce || ciphertext).
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrInvalidCiphertext)
	}
	n := e.aead.NonceSize()
	if len(data) < n+e.aead.Overhead() {
		return "", fmt.Errorf("%w: data too short", ErrInvalidCiphertext)
	}
	plain, err := e.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecryptionFailed, err.Error())
	}
	return string(plain), nil
}

// EncryptedKV encrypts every value written to the wrapped scope.
type EncryptedKV struct {
	inner KV
	enc   *Encryptor
}

// WithEncryption wraps kv. A nil enc returns kv unchanged.
func WithEncryption(kv KV, enc *Encryptor) KV {
	if enc == nil {
		return kv
	}
	return &EncryptedKV{inner: kv, enc: enc}
}

func (e *EncryptedKV) Get(key string) (string, bool, error) {
	v, ok, err := e.inner.Get(key)
	if err != nil || !ok {
		return "", ok, err
	}
	plain, err := e.enc.Decrypt(v)
	if err != nil {
		return "", false, fmt.Errorf("decrypt %s: %w", key, err)
	}
	return plain, true, nil
}

func (e *EncryptedKV) Set(key, value string) error {
	sealed, err := e.enc.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", key, err)
	}
	return e.inner.Set(key, sealed)
}

func (e *EncryptedKV) Remove(key string) error {
	return e.inner.Remove(key)
}
