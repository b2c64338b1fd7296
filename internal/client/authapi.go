// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package client

import (
	"context"
	"net/http"

	"github.com/tomtom215/schoolhub/internal/models"
)

// AuthAPI is the backend side of the auth manager. Its calls never go
// through reauthentication.
type AuthAPI struct {
	c *Client
}

// NewAuthAPI returns an AuthAPI on c.
func NewAuthAPI(c *Client) *AuthAPI {
	return &AuthAPI{c: c}
}

// post sends an auth call with reauthentication disabled; a 401 here
// means bad credentials, not an expired session.
func (a *AuthAPI) post(ctx context.Context, path string, body, out any) error {
	return a.c.DoJSON(ctx, Request{
		Method:     http.MethodPost,
		Path:       path,
		Body:       body,
		SkipReauth: true,
	}, out)
}

// Login posts credentials. Cookie-based deployments answer with only the
// user and a session cookie, which the jar keeps.
func (a *AuthAPI) Login(ctx context.Context, creds models.Credentials) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := a.post(ctx, LoginPath, creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes the refresh token server-side.
func (a *AuthAPI) Logout(ctx context.Context, refreshToken string) error {
	return a.post(ctx, LogoutPath, models.LogoutRequest{Refresh: refreshToken}, nil)
}

// Refresh exchanges the refresh token for a new access token.
func (a *AuthAPI) Refresh(ctx context.Context, refreshToken string) (*models.RefreshResponse, error) {
	var resp models.RefreshResponse
	if err := a.post(ctx, RefreshPath, models.RefreshRequest{Refresh: refreshToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyEmail confirms an address with the code the backend mailed.
func (a *AuthAPI) VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) error {
	return a.post(ctx, VerifyEmailPath, req, nil)
}

// SendPasswordResetCode asks the backend to mail a reset code. The backend
// answers the same way for unknown addresses.
func (a *AuthAPI) SendPasswordResetCode(ctx context.Context, req models.PasswordResetCodeRequest) error {
	return a.post(ctx, PasswordResetSendPath, req, nil)
}

// VerifyPasswordResetCode checks a reset code without consuming it, so a
// form can validate the code before asking for the new password.
func (a *AuthAPI) VerifyPasswordResetCode(ctx context.Context, req models.PasswordResetVerifyRequest) error {
	return a.post(ctx, PasswordResetVerifyPath, req, nil)
}

// ResetPassword sets the new password. The backend revokes the user's
// refresh tokens, so other signed-in clients must log in again.
func (a *AuthAPI) ResetPassword(ctx context.Context, req models.PasswordResetRequest) error {
	return a.post(ctx, PasswordResetConfirmPath, req, nil)
}
