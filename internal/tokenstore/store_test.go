// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package tokenstore

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/tomtom215/schoolhub/internal/models"
)

func testUser() *models.UserRecord {
	return &models.UserRecord{ID: 7, Email: "head@school.edu", Role: models.RoleAdmin, FirstName: "Grace"}
}

func setupBadgerStore(t *testing.T) (*Store, *BadgerKV, *MemoryKV) {
	t.Helper()
	persistent, err := OpenBadgerKV("")
	if err != nil {
		t.Fatalf("OpenBadgerKV() error = %v", err)
	}
	t.Cleanup(func() { _ = persistent.Close() })
	session := NewMemoryKV()
	return New(persistent, session), persistent, session
}

func TestSaveRememberMeUsesPersistentScope(t *testing.T) {
	store, persistent, session := setupBadgerStore(t)

	if err := store.Save(Credentials{User: testUser(), AccessToken: "A1", RefreshToken: "R1"}, true); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if v, ok, _ := persistent.Get(KeyAccessToken); !ok || v != "A1" {
		t.Errorf("persistent access_token = %q, %v", v, ok)
	}
	if _, ok, _ := session.Get(KeyAccessToken); ok {
		t.Error("session scope should be empty")
	}
	if store.ActiveScope() != ScopePersistent {
		t.Errorf("ActiveScope() = %v", store.ActiveScope())
	}
}

func TestSaveClearsOtherScope(t *testing.T) {
	store, persistent, session := setupBadgerStore(t)

	if err := store.Save(Credentials{User: testUser(), AccessToken: "A1", RefreshToken: "R1"}, true); err != nil {
		t.Fatalf("Save(remember) error = %v", err)
	}
	if err := store.Save(Credentials{User: testUser(), AccessToken: "A2"}, false); err != nil {
		t.Fatalf("Save(session) error = %v", err)
	}

	for _, key := range allKeys {
		if _, ok, _ := persistent.Get(key); ok {
			t.Errorf("persistent scope still holds %s", key)
		}
	}
	if v, _, _ := session.Get(KeyAccessToken); v != "A2" {
		t.Errorf("session access_token = %q, want A2", v)
	}
	if _, ok, _ := session.Get(KeyRefreshToken); ok {
		t.Error("empty refresh token should not be stored")
	}
}

func TestLoad(t *testing.T) {
	store := NewMemory()

	c, scope, err := store.Load()
	if err != nil || scope != ScopeNone || c.User != nil {
		t.Fatalf("empty Load() = %+v, %v, %v", c, scope, err)
	}

	if err := store.Save(Credentials{User: testUser(), AccessToken: "A1", RefreshToken: "R1"}, false); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// A fresh Store over the same scopes simulates a restart of the caller.
	reopened := New(store.persistent, store.session)
	c, scope, err = reopened.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if scope != ScopeSession {
		t.Errorf("scope = %v, want session", scope)
	}
	if c.User == nil || c.User.Email != "head@school.edu" || c.AccessToken != "A1" || c.RefreshToken != "R1" {
		t.Errorf("Load() = %+v", c)
	}
}

func TestLoadCorruptUser(t *testing.T) {
	persistent := NewMemoryKV()
	_ = persistent.Set(KeyUser, "{not json")
	store := New(persistent, NewMemoryKV())

	if _, _, err := store.Load(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load() error = %v, want ErrCorrupt", err)
	}
}

func TestUpdateTokensWritesActiveScope(t *testing.T) {
	store, persistent, session := setupBadgerStore(t)
	if err := store.Save(Credentials{User: testUser(), AccessToken: "A1", RefreshToken: "R1"}, true); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.UpdateTokens("A2", ""); err != nil {
		t.Fatalf("UpdateTokens() error = %v", err)
	}
	if v, _, _ := persistent.Get(KeyAccessToken); v != "A2" {
		t.Errorf("access_token = %q, want A2", v)
	}
	if v, _, _ := persistent.Get(KeyRefreshToken); v != "R1" {
		t.Errorf("refresh_token = %q, want R1 kept", v)
	}

	if err := store.UpdateTokens("A3", "R2"); err != nil {
		t.Fatalf("UpdateTokens() error = %v", err)
	}
	if v, _, _ := persistent.Get(KeyRefreshToken); v != "R2" {
		t.Errorf("refresh_token = %q, want rotated R2", v)
	}
	if _, ok, _ := session.Get(KeyAccessToken); ok {
		t.Error("session scope must stay empty")
	}
}

func TestClear(t *testing.T) {
	store, persistent, session := setupBadgerStore(t)
	_ = store.Save(Credentials{User: testUser(), AccessToken: "A1"}, true)
	_ = session.Set(KeyAccessToken, "stray")

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	for _, kv := range []KV{persistent, session} {
		for _, key := range allKeys {
			if _, ok, _ := kv.Get(key); ok {
				t.Errorf("%s still present after Clear", key)
			}
		}
	}
	if store.ActiveScope() != ScopeNone {
		t.Errorf("ActiveScope() = %v", store.ActiveScope())
	}
}

func TestEncryptedKV(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	enc, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	raw := NewMemoryKV()
	kv := WithEncryption(raw, enc)
	if err := kv.Set(KeyAccessToken, "secret-access-token"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	stored, _, _ := raw.Get(KeyAccessToken)
	if strings.Contains(stored, "secret") {
		t.Errorf("value stored in clear text: %q", stored)
	}
	got, ok, err := kv.Get(KeyAccessToken)
	if err != nil || !ok || got != "secret-access-token" {
		t.Errorf("Get() = %q, %v, %v", got, ok, err)
	}

	other, _ := NewEncryptor(base64.StdEncoding.EncodeToString([]byte("another-key-of-sufficient-size!!")))
	if _, _, err := WithEncryption(raw, other).Get(KeyAccessToken); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("wrong key error = %v, want ErrDecryptionFailed", err)
	}
}

func TestNewEncryptor(t *testing.T) {
	if enc, err := NewEncryptor(""); enc != nil || err != nil {
		t.Errorf("empty key should disable encryption, got %v, %v", enc, err)
	}
	if _, err := NewEncryptor(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Error("short key should fail")
	}
	if _, err := NewEncryptor("%%%"); err == nil {
		t.Error("invalid base64 should fail")
	}
	if kv := WithEncryption(NewMemoryKV(), nil); kv == nil {
		t.Error("nil encryptor should return the inner kv")
	}
}
