// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package auth

import (
	"time"

	"github.com/tomtom215/schoolhub/internal/models"
)

// State is the position of the session in its lifecycle.
type State int

// Session states.
//
//	anonymous -> authenticating -> authenticated | anonymous
//	authenticated -> refreshing -> authenticated | anonymous
//	any -> anonymous (logout)
const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "anonymous"
	}
}

// Status is State plus the error condition a UI renders.
type Status string

// Session statuses.
const (
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
	StatusRefreshing     Status = "refreshing"
	StatusError          Status = "error"
)

// SessionExpiredMessage is set as LastError when a refresh fails.
const SessionExpiredMessage = "Your session has expired. Please log in again."

// Session is a snapshot of the authentication state. The Manager hands out
// copies; mutating one has no effect.
type Session struct {
	State            State
	User             *models.UserRecord
	AccessToken      string
	RefreshToken     string
	IsAuthenticated  bool
	IsRefreshing     bool
	LoginAttempts    int
	LastLoginAttempt time.Time
	LastError        string
}

// Status folds LastError into the state: an anonymous session with an
// error reports StatusError.
func (s Session) Status() Status {
	switch s.State {
	case StateAuthenticating:
		return StatusAuthenticating
	case StateAuthenticated:
		return StatusAuthenticated
	case StateRefreshing:
		return StatusRefreshing
	}
	if s.LastError != "" {
		return StatusError
	}
	return StatusAnonymous
}

func (s Session) clone() Session {
	s.User = s.User.Clone()
	return s
}

// stateGauge maps states onto the auth state gauge.
func stateGauge(s State) float64 {
	return float64(s)
}
