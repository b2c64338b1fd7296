// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

// Package auth owns the client session: who is signed in, with which
// tokens, and how the session moves between anonymous, authenticating,
// authenticated and refreshing.
//
// A Manager is an ordinary value created by the application and passed to
// whatever needs it; there is no package-level session. All transitions go
// through its methods and are published to OnChange listeners.
//
// Refresh is coalesced: while one refresh is in flight every other caller
// waits for and receives that refresh's result, so a burst of expired
// requests costs a single refresh call.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/schoolhub/internal/apierror"
	"github.com/tomtom215/schoolhub/internal/logging"
	"github.com/tomtom215/schoolhub/internal/metrics"
	"github.com/tomtom215/schoolhub/internal/models"
	"github.com/tomtom215/schoolhub/internal/tokenstore"
	"github.com/tomtom215/schoolhub/internal/validation"
)

var (
	// ErrNotAuthenticated is returned by Refresh when there is no session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrLoginInProgress is returned when Login is called while another
	// login has not finished.
	ErrLoginInProgress = errors.New("login already in progress")

	// ErrSessionExpired wraps the cause of a failed refresh.
	ErrSessionExpired = errors.New("session expired")
)

// Backend is the part of the REST API the session depends on.
type Backend interface {
	Login(ctx context.Context, creds models.Credentials) (*models.LoginResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*models.RefreshResponse, error)

	VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) error
	SendPasswordResetCode(ctx context.Context, req models.PasswordResetCodeRequest) error
	VerifyPasswordResetCode(ctx context.Context, req models.PasswordResetVerifyRequest) error
	ResetPassword(ctx context.Context, req models.PasswordResetRequest) error
}

// CredentialStore persists credentials across restarts.
type CredentialStore interface {
	Save(c tokenstore.Credentials, rememberMe bool) error
	Load() (tokenstore.Credentials, tokenstore.Scope, error)
	UpdateTokens(access, refresh string) error
	Clear() error
}

// Options tunes a Manager. Zero values select defaults.
type Options struct {
	Lockout LockoutPolicy

	// RefreshTimeout bounds a refresh call independently of the callers
	// waiting on it.
	RefreshTimeout time.Duration

	// Clock replaces time.Now in tests.
	Clock func() time.Time
}

// Manager is the session state machine.
type Manager struct {
	backend        Backend
	store          CredentialStore
	policy         LockoutPolicy
	refreshTimeout time.Duration
	now            func() time.Time
	audit          *logging.AuthLogger

	mu          sync.RWMutex
	session     Session
	initialized bool

	refreshes singleflight.Group

	listenersMu sync.Mutex
	listeners   map[int]func(Session)
	nextID      int
}

// NewManager creates an anonymous Manager. Call Initialize to restore a
// stored session.
func NewManager(backend Backend, store CredentialStore, opts Options) *Manager {
	if opts.Lockout.MaxAttempts == 0 {
		opts.Lockout = DefaultLockoutPolicy()
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 15 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Manager{
		backend:        backend,
		store:          store,
		policy:         opts.Lockout,
		refreshTimeout: opts.RefreshTimeout,
		now:            opts.Clock,
		audit:          logging.NewAuthLogger(),
		listeners:      make(map[int]func(Session)),
	}
}

// Initialize restores a stored session without contacting the backend.
// The restore is optimistic: a stale access token is discovered on the
// first request and handled by reauthentication. Missing or unreadable
// storage leaves the session anonymous and is not an error. Calls after
// the first are no-ops.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.initialized = true

	creds, scope, err := m.store.Load()
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Stored credentials unreadable, starting anonymous")
		if clearErr := m.store.Clear(); clearErr != nil {
			logging.Ctx(ctx).Warn().Err(clearErr).Msg("Failed to clear unreadable credentials")
		}
		m.mu.Unlock()
		return nil
	}

	restored := creds.User != nil && creds.AccessToken != ""
	if restored {
		m.session.User = creds.User
		m.session.AccessToken = creds.AccessToken
		m.session.RefreshToken = creds.RefreshToken
		m.session.IsAuthenticated = true
		m.session.State = StateAuthenticated
	}
	snap := m.session.clone()
	m.mu.Unlock()

	if restored {
		logging.Ctx(ctx).Info().Str("scope", scope.String()).Int64("user_id", creds.User.ID).Msg("Session restored")
		m.audit.Log(logging.AuthEvent{Event: "session_restored", Email: creds.User.Email, Success: true})
	}
	m.publish(snap)
	return nil
}

// Login authenticates with the backend and persists the result in the
// persistent scope when rememberMe is set, otherwise in the session scope.
//
// Every failed attempt counts toward the lockout, network failures
// included. While locked out Login returns an apierror of KindLockout
// without contacting the backend. Payloads failing client-side validation
// are rejected before the lockout check and do not count.
func (m *Manager) Login(ctx context.Context, creds models.Credentials, rememberMe bool) (*models.UserRecord, error) {
	if verr := validation.ValidateStruct(&creds); verr != nil {
		return nil, apierror.Validation(verr.Fields())
	}

	m.mu.Lock()
	if remaining := m.lockoutRemainingLocked(); remaining > 0 {
		m.session.LastError = apierror.Lockout(remaining).UserMessage()
		snap := m.session.clone()
		m.mu.Unlock()
		metrics.RecordLogin("locked")
		m.publish(snap)
		return nil, apierror.Lockout(remaining)
	}
	if m.session.State == StateAuthenticating {
		m.mu.Unlock()
		return nil, ErrLoginInProgress
	}
	m.session.State = StateAuthenticating
	m.session.LastError = ""
	snap := m.session.clone()
	m.mu.Unlock()
	m.publish(snap)

	resp, err := m.backend.Login(ctx, creds)
	if err == nil && (resp == nil || resp.User == nil) {
		err = apierror.Decode("POST", "login", 200, errors.New("login response has no user"))
	}
	if err != nil {
		return nil, m.loginFailed(ctx, creds.Email, err)
	}

	m.mu.Lock()
	saveErr := m.store.Save(tokenstore.Credentials{
		User:         resp.User,
		AccessToken:  resp.Access,
		RefreshToken: resp.Refresh,
	}, rememberMe)
	m.session = Session{
		State:           StateAuthenticated,
		User:            resp.User.Clone(),
		AccessToken:     resp.Access,
		RefreshToken:    resp.Refresh,
		IsAuthenticated: true,
	}
	snap = m.session.clone()
	m.mu.Unlock()

	if saveErr != nil {
		logging.Ctx(ctx).Warn().Err(saveErr).Msg("Failed to persist credentials, session will not survive restart")
	}
	metrics.RecordLogin("success")
	m.audit.Log(logging.AuthEvent{Event: "login", Email: creds.Email, UserID: strconv.FormatInt(resp.User.ID, 10), Success: true})
	m.publish(snap)
	return resp.User.Clone(), nil
}

// loginFailed leaves the session anonymous. A session that was signed in
// before the attempt is dropped from memory and storage, so a failed
// re-login never keeps sending or restoring the previous tokens.
func (m *Manager) loginFailed(ctx context.Context, email string, cause error) error {
	m.mu.Lock()
	if m.session.User != nil || m.session.AccessToken != "" || m.session.RefreshToken != "" {
		m.resetLocked("")
	}
	m.session.State = StateAnonymous
	m.session.IsAuthenticated = false
	m.session.LoginAttempts++
	m.session.LastLoginAttempt = m.now()
	m.session.LastError = apierror.UserMessage(cause)
	attempts := m.session.LoginAttempts
	snap := m.session.clone()
	m.mu.Unlock()

	metrics.RecordLogin("failure")
	m.audit.Log(logging.AuthEvent{Event: "login", Email: email, Success: false, Reason: cause.Error()})
	if m.policy.AttemptsLeft(attempts) == 0 {
		logging.Ctx(ctx).Warn().
			Int("attempts", attempts).
			Dur("duration", m.policy.Duration).
			Msg("Login locked")
	}
	m.publish(snap)
	return cause
}

// Logout ends the session. The backend is told on a best-effort basis; its
// failure is logged and never prevents local state and both storage scopes
// from being cleared.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.RLock()
	refresh := m.session.RefreshToken
	signedIn := m.session.User != nil
	email := ""
	if signedIn {
		email = m.session.User.Email
	}
	m.mu.RUnlock()

	defer func() {
		m.clear("")
		m.audit.Log(logging.AuthEvent{Event: "logout", Email: email, Success: true})
	}()

	if !signedIn {
		return
	}
	if err := m.backend.Logout(ctx, refresh); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Logout request failed, clearing local session anyway")
	}
}

// Refresh obtains a new access token. Concurrent callers share one backend
// call and its result. A caller whose ctx ends stops waiting, but the
// refresh itself keeps running under RefreshTimeout so other waiters still
// get an answer.
//
// On failure the session is cleared from memory and storage, the state
// becomes anonymous with SessionExpiredMessage, and the returned error
// wraps ErrSessionExpired.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.mu.RLock()
	state := m.session.State
	m.mu.RUnlock()
	if state != StateAuthenticated && state != StateRefreshing {
		return "", ErrNotAuthenticated
	}

	detached := context.WithoutCancel(ctx)
	ch := m.refreshes.DoChan("refresh", func() (any, error) {
		return m.doRefresh(detached)
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.AuthRefreshWaiters.Inc()
		}
		if res.Err != nil {
			return "", res.Err
		}
		token, _ := res.Val.(string)
		return token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RefreshIfStale is Refresh for a request that failed with usedToken. When
// the session already holds a different token, another request refreshed
// in the meantime and that token is returned without a backend call.
func (m *Manager) RefreshIfStale(ctx context.Context, usedToken string) (string, error) {
	m.mu.RLock()
	current, state := m.session.AccessToken, m.session.State
	m.mu.RUnlock()

	if state == StateAuthenticated && current != "" && current != usedToken {
		return current, nil
	}
	return m.Refresh(ctx)
}

func (m *Manager) doRefresh(parent context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(parent, m.refreshTimeout)
	defer cancel()

	m.mu.Lock()
	if m.session.State != StateAuthenticated && m.session.State != StateRefreshing {
		m.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	m.session.State = StateRefreshing
	m.session.IsRefreshing = true
	refresh := m.session.RefreshToken
	snap := m.session.clone()
	m.mu.Unlock()
	m.publish(snap)

	resp, err := m.backend.Refresh(ctx, refresh)
	if err == nil && (resp == nil || resp.Access == "") {
		err = apierror.Decode("POST", "refresh", 200, errors.New("refresh response has no access token"))
	}
	metrics.RecordRefresh(err)

	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Token refresh failed, session expired")
		m.audit.Log(logging.AuthEvent{Event: "token_refresh", Success: false, Reason: err.Error()})
		m.mu.Lock()
		ours := m.session.State == StateRefreshing
		if ours {
			m.resetLocked(SessionExpiredMessage)
			snap = m.session.clone()
		}
		m.mu.Unlock()
		if ours {
			m.publish(snap)
		}
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	m.mu.Lock()
	if m.session.State != StateRefreshing {
		// Logged out while the refresh was in flight.
		m.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	storeErr := m.store.UpdateTokens(resp.Access, resp.Refresh)
	m.session.AccessToken = resp.Access
	if resp.Refresh != "" {
		m.session.RefreshToken = resp.Refresh
	}
	m.session.State = StateAuthenticated
	m.session.IsRefreshing = false
	snap = m.session.clone()
	m.mu.Unlock()

	if storeErr != nil {
		logging.Ctx(ctx).Warn().Err(storeErr).Msg("Failed to persist refreshed token")
	}
	logging.Ctx(ctx).Debug().
		Str("access_token", logging.SanitizeToken(resp.Access)).
		Bool("rotated", resp.Refresh != "").
		Msg("Access token refreshed")
	m.publish(snap)
	return resp.Access, nil
}

// clear drops the session and both storage scopes. Lockout counters
// survive so that clearing cannot be used to skip a lock.
func (m *Manager) clear(lastError string) {
	m.mu.Lock()
	m.resetLocked(lastError)
	snap := m.session.clone()
	m.mu.Unlock()
	m.publish(snap)
}

// resetLocked is clear without the publish. m.mu must be held, so a caller
// can check the state and reset it in one critical section.
func (m *Manager) resetLocked(lastError string) {
	if err := m.store.Clear(); err != nil {
		logging.Warn().Err(err).Msg("Failed to clear stored credentials")
	}
	m.session = Session{
		State:            StateAnonymous,
		LoginAttempts:    m.session.LoginAttempts,
		LastLoginAttempt: m.session.LastLoginAttempt,
		LastError:        lastError,
	}
}

// Session returns a snapshot of the current state.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.clone()
}

// AccessToken returns the current access token, or "".
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.AccessToken
}

// User returns the signed-in user, or nil.
func (m *Manager) User() *models.UserRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.User.Clone()
}

// LockoutRemaining returns the countdown until Login is allowed again.
func (m *Manager) LockoutRemaining() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lockoutRemainingLocked()
}

func (m *Manager) lockoutRemainingLocked() time.Duration {
	return m.policy.Remaining(m.session.LoginAttempts, m.session.LastLoginAttempt, m.now())
}

// DismissError clears LastError, typically after the UI has shown it.
func (m *Manager) DismissError() {
	m.mu.Lock()
	if m.session.LastError == "" {
		m.mu.Unlock()
		return
	}
	m.session.LastError = ""
	snap := m.session.clone()
	m.mu.Unlock()
	m.publish(snap)
}

// OnChange registers fn to receive a snapshot after every transition. fn
// runs synchronously on the goroutine that caused the transition and must
// not block. The returned func unregisters it.
func (m *Manager) OnChange(fn func(Session)) (unsubscribe func()) {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.listenersMu.Unlock()

	return func() {
		m.listenersMu.Lock()
		delete(m.listeners, id)
		m.listenersMu.Unlock()
	}
}

func (m *Manager) publish(s Session) {
	metrics.AuthState.Set(stateGauge(s.State))

	m.listenersMu.Lock()
	fns := make([]func(Session), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenersMu.Unlock()

	for _, fn := range fns {
		fn(s.clone())
	}
}
