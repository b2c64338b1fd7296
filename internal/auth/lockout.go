// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package auth

import "time"

// LockoutPolicy limits repeated failed logins on this client.
//
// The lock is never stored. It is derived from the attempt counter and the
// time of the last failed attempt, so it lifts by itself once Duration has
// passed and a countdown can be computed at any moment.
type LockoutPolicy struct {
	// MaxAttempts is the number of failures after which logins are refused.
	MaxAttempts int `json:"max_attempts"`

	// Duration is how long logins stay refused after the last failure.
	Duration time.Duration `json:"duration"`
}

// DefaultLockoutPolicy allows three attempts, then a fifteen minute lock.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts: 3,
		Duration:    15 * time.Minute,
	}
}

// Remaining returns how much longer logins are refused, or 0 when they are
// allowed.
func (p LockoutPolicy) Remaining(attempts int, lastAttempt, now time.Time) time.Duration {
	if p.MaxAttempts <= 0 || attempts < p.MaxAttempts || lastAttempt.IsZero() {
		return 0
	}
	elapsed := now.Sub(lastAttempt)
	if elapsed >= p.Duration {
		return 0
	}
	return p.Duration - elapsed
}

// AttemptsLeft returns how many failures remain before the lock engages.
func (p LockoutPolicy) AttemptsLeft(attempts int) int {
	if left := p.MaxAttempts - attempts; left > 0 {
		return left
	}
	return 0
}
