// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// AuthEvent is one entry in the session audit trail.
type AuthEvent struct {
	// Event is login, logout, token_refresh, session_restored or lockout.
	Event   string
	Email   string
	UserID  string
	Success bool
	Reason  string
}

// AuthLogger writes session lifecycle events with credentials masked.
type AuthLogger struct {
	logger zerolog.Logger
}

// NewAuthLogger returns an AuthLogger on the global logger.
func NewAuthLogger() *AuthLogger {
	return &AuthLogger{logger: WithComponent("auth")}
}

// Log writes event. Failures log at warn, successes at info.
func (l *AuthLogger) Log(event AuthEvent) {
	e := l.logger.Info()
	status := "success"
	if !event.Success {
		e = l.logger.Warn()
		status = "failed"
	}
	e = e.Str("event", event.Event).Str("status", status)
	if event.Email != "" {
		e = e.Str("email", SanitizeEmail(event.Email))
	}
	if event.UserID != "" {
		e = e.Str("user_id", event.UserID)
	}
	if event.Reason != "" {
		e = e.Str("reason", truncate(event.Reason, 200))
	}
	e.Msg("Auth event")
}

// SanitizeToken masks a token down to its first and last four characters.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeEmail keeps the first two characters of the local part.
//
//	SanitizeEmail("john.doe@school.edu") // "jo***@school.edu"
func SanitizeEmail(email string) string {
	at := strings.Index(email, "@")
	switch {
	case email == "":
		return ""
	case at <= 0:
		return "***"
	case at <= 2:
		return "***" + email[at:]
	default:
		return email[:2] + "***" + email[at:]
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
