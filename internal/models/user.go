// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

// Package models holds the wire types exchanged with the SchoolHub backend.
//
// Field names follow the backend's snake_case JSON. Types that are sent as
// request bodies carry validate tags checked by internal/validation before
// the request is issued.
package models

import "strings"

// Account roles issued by the backend.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleParent  = "parent"
	RoleStaff   = "staff"
)

// UserRecord is the authenticated account as returned by login. It is
// replaced wholesale, never edited in place.
type UserRecord struct {
	ID         int64  `json:"id"`
	Username   string `json:"username,omitempty"`
	Email      string `json:"email"`
	Role       string `json:"role,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	IsVerified bool   `json:"is_verified,omitempty"`
}

// Clone returns a copy safe to hand to callers.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// DisplayName prefers the full name and falls back to username then email.
func (u *UserRecord) DisplayName() string {
	if u == nil {
		return ""
	}
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// HasRole reports whether the user holds role, case-insensitively.
func (u *UserRecord) HasRole(role string) bool {
	return u != nil && strings.EqualFold(u.Role, role)
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the login reply. Cookie-based deployments return only
// User and set the session cookie instead of issuing tokens.
type LoginResponse struct {
	Access  string      `json:"access,omitempty"`
	Refresh string      `json:"refresh,omitempty"`
	User    *UserRecord `json:"user"`
}

// RefreshRequest is the refresh body. Refresh is omitted when the backend
// reads the refresh token from a cookie.
type RefreshRequest struct {
	Refresh string `json:"refresh,omitempty"`
}

// RefreshResponse carries the new access token. Refresh is set only when
// the backend rotates refresh tokens.
type RefreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// LogoutRequest is the logout body.
type LogoutRequest struct {
	Refresh string `json:"refresh,omitempty"`
}

// VerifyEmailRequest confirms an address with the code mailed to it.
type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,min=4,max=12"`
}

// PasswordResetCodeRequest starts the reset flow.
type PasswordResetCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetVerifyRequest checks the mailed code before a new password
// is chosen.
type PasswordResetVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,min=4,max=12"`
}

// PasswordResetRequest completes the reset flow.
type PasswordResetRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Code            string `json:"code" validate:"required,min=4,max=12"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// MessageResponse is the generic acknowledgement body.
type MessageResponse struct {
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
}
