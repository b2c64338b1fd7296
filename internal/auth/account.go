// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package auth

import (
	"context"

	"github.com/tomtom215/schoolhub/internal/apierror"
	"github.com/tomtom215/schoolhub/internal/logging"
	"github.com/tomtom215/schoolhub/internal/models"
	"github.com/tomtom215/schoolhub/internal/validation"
)

// Account flows that do not need a session. They do not touch session
// state or the lockout counter.

// VerifyEmail confirms an address with a mailed code.
func (m *Manager) VerifyEmail(ctx context.Context, email, code string) error {
	req := models.VerifyEmailRequest{Email: email, Code: code}
	if err := checkRequest(&req); err != nil {
		return err
	}
	if err := m.backend.VerifyEmail(ctx, req); err != nil {
		return err
	}
	m.audit.Log(logging.AuthEvent{Event: "verify_email", Email: email, Success: true})
	return nil
}

// SendPasswordResetCode starts the reset flow.
func (m *Manager) SendPasswordResetCode(ctx context.Context, email string) error {
	req := models.PasswordResetCodeRequest{Email: email}
	if err := checkRequest(&req); err != nil {
		return err
	}
	return m.backend.SendPasswordResetCode(ctx, req)
}

// VerifyPasswordResetCode checks the mailed code.
func (m *Manager) VerifyPasswordResetCode(ctx context.Context, email, code string) error {
	req := models.PasswordResetVerifyRequest{Email: email, Code: code}
	if err := checkRequest(&req); err != nil {
		return err
	}
	return m.backend.VerifyPasswordResetCode(ctx, req)
}

// ResetPassword completes the flow. Mismatched confirmation is rejected
// locally as a validation error on confirm_password.
func (m *Manager) ResetPassword(ctx context.Context, req models.PasswordResetRequest) error {
	if err := checkRequest(&req); err != nil {
		return err
	}
	if err := m.backend.ResetPassword(ctx, req); err != nil {
		m.audit.Log(logging.AuthEvent{Event: "password_reset", Email: req.Email, Success: false, Reason: err.Error()})
		return err
	}
	m.audit.Log(logging.AuthEvent{Event: "password_reset", Email: req.Email, Success: true})
	return nil
}

func checkRequest(v any) error {
	if verr := validation.ValidateStruct(v); verr != nil {
		return apierror.Validation(verr.Fields())
	}
	return nil
}
