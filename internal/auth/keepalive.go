// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/schoolhub/internal/logging"
)

// ErrNoExpiry is returned by AccessTokenExpiry for tokens that are not JWTs
// or carry no exp claim.
var ErrNoExpiry = errors.New("access token has no expiry")

// AccessTokenExpiry reads the exp claim of a JWT access token. The signature
// is not checked: the client cannot verify it and only uses the value to
// schedule a refresh.
func AccessTokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, errors.Join(ErrNoExpiry, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, errors.Join(ErrNoExpiry, err)
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

// KeepAlive refreshes the access token shortly before it expires so that
// requests rarely hit a 401. It runs as a supervised service.
//
// Tokens without a readable exp claim are left to reactive refresh.
type KeepAlive struct {
	manager  *Manager
	interval time.Duration
	lead     time.Duration
	now      func() time.Time
}

// NewKeepAlive checks the token every interval and refreshes when it
// expires within lead.
func NewKeepAlive(m *Manager, interval, lead time.Duration) *KeepAlive {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &KeepAlive{manager: m, interval: interval, lead: lead, now: m.now}
}

// Serve implements suture.Service.
func (k *KeepAlive) Serve(ctx context.Context) error {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			k.Check(ctx)
		}
	}
}

// Check performs one keepalive pass and reports whether a refresh ran.
func (k *KeepAlive) Check(ctx context.Context) bool {
	s := k.manager.Session()
	if s.State != StateAuthenticated || s.AccessToken == "" {
		return false
	}
	exp, err := AccessTokenExpiry(s.AccessToken)
	if err != nil {
		return false
	}
	if exp.Sub(k.now()) > k.lead {
		return false
	}

	if _, err := k.manager.RefreshIfStale(ctx, s.AccessToken); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Keepalive refresh failed")
	}
	return true
}

// String implements fmt.Stringer for suture logs.
func (k *KeepAlive) String() string {
	return "auth-keepalive"
}
