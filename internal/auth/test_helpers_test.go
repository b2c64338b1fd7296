// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/schoolhub/internal/apierror"
	"github.com/tomtom215/schoolhub/internal/models"
	"github.com/tomtom215/schoolhub/internal/tokenstore"
)

const (
	testEmail    = "teacher@school.edu"
	testPassword = "correct-horse"
)

// fakeBackend is a scriptable Backend.
type fakeBackend struct {
	mu sync.Mutex

	loginErr   error
	refreshErr error
	logoutErr  error
	rotate     bool

	// refreshGate, when set, blocks Refresh until closed.
	refreshGate chan struct{}

	logins    atomic.Int32
	refreshes atomic.Int32
	logouts   atomic.Int32
	generated atomic.Int32

	lastReset models.PasswordResetRequest
}

func (f *fakeBackend) Login(_ context.Context, creds models.Credentials) (*models.LoginResponse, error) {
	f.logins.Add(1)
	f.mu.Lock()
	err := f.loginErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if creds.Password != testPassword {
		return nil, apierror.Unauthorized("POST", "/api/v1/auth/login/", "Invalid credentials")
	}
	return &models.LoginResponse{
		Access:  "A1",
		Refresh: "R1",
		User:    &models.UserRecord{ID: 42, Email: creds.Email, Role: models.RoleTeacher},
	}, nil
}

func (f *fakeBackend) Logout(context.Context, string) error {
	f.logouts.Add(1)
	return f.logoutErr
}

func (f *fakeBackend) Refresh(ctx context.Context, _ string) (*models.RefreshResponse, error) {
	f.refreshes.Add(1)
	if f.refreshGate != nil {
		select {
		case <-f.refreshGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	n := f.generated.Add(1)
	resp := &models.RefreshResponse{Access: "A" + string(rune('1'+n))}
	if f.rotate {
		resp.Refresh = "R" + string(rune('1'+n))
	}
	return resp, nil
}

func (f *fakeBackend) VerifyEmail(context.Context, models.VerifyEmailRequest) error { return nil }

func (f *fakeBackend) SendPasswordResetCode(context.Context, models.PasswordResetCodeRequest) error {
	return nil
}

func (f *fakeBackend) VerifyPasswordResetCode(context.Context, models.PasswordResetVerifyRequest) error {
	return nil
}

func (f *fakeBackend) ResetPassword(_ context.Context, req models.PasswordResetRequest) error {
	f.lastReset = req
	return nil
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	backend *fakeBackend
	store   *tokenstore.Store
	clock   *fakeClock
	manager *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend: &fakeBackend{},
		store:   tokenstore.NewMemory(),
		clock:   newFakeClock(),
	}
	h.manager = NewManager(h.backend, h.store, Options{Clock: h.clock.Now})
	return h
}

func (h *harness) login(t *testing.T, rememberMe bool) {
	t.Helper()
	if _, err := h.manager.Login(context.Background(), models.Credentials{Email: testEmail, Password: testPassword}, rememberMe); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
}

var errNetwork = apierror.Transport("POST", "/api/v1/auth/login/", errors.New("connection refused"))

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
		Subject:   "42",
	})
	s, err := tok.SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}
