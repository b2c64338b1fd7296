// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package mockbackend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/schoolhub/internal/logging"
	"github.com/tomtom215/schoolhub/internal/models"
)

// accessClaims are the claims of an issued access token.
type accessClaims struct {
	Email      string `json:"email"`
	Role       string `json:"role,omitempty"`
	Generation int64  `json:"gen"`
	jwt.RegisteredClaims
}

type userKey struct{}

// UserFromContext returns the authenticated user id set by requireAuth.
func UserFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userKey{}).(int64)
	return id, ok
}

func (s *Server) issueAccess(user models.UserRecord) (string, error) {
	now := s.now()
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	claims := accessClaims{
		Email:      user.Email,
		Role:       user.Role,
		Generation: gen,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.AccessTTL)),
			ID:        uuid.NewString(),
			Issuer:    "schoolhub-mock",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (s *Server) issueRefresh(userID int64) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.refreshTokens[token] = userID
	s.mu.Unlock()
	return token
}

var errStaleGeneration = errors.New("token generation revoked")

func (s *Server) parseAccess(raw string) (*accessClaims, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.opts.SigningKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	if claims.Generation != gen {
		return nil, errStaleGeneration
	}
	return claims, nil
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			s.rejected.Add(1)
			writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		claims, err := s.parseAccess(raw)
		if err != nil {
			s.rejected.Add(1)
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}
		id, _ := strconv.ParseInt(claims.Subject, 10, 64)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.logins.Add(1)

	var creds models.Credentials
	if err := decodeBody(w, r, &creds); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	missing := map[string][]string{}
	if creds.Email == "" {
		missing["email"] = []string{"This field is required."}
	}
	if creds.Password == "" {
		missing["password"] = []string{"This field is required."}
	}
	if len(missing) > 0 {
		writeFieldErrors(w, missing)
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[creds.Email]
	s.mu.Unlock()
	if !ok || acct.password != creds.Password {
		logging.Debug().Str("email", logging.SanitizeEmail(creds.Email)).Msg("Mock login rejected")
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}

	access, err := s.issueAccess(acct.user)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	user := acct.user
	writeJSON(w, http.StatusOK, models.LoginResponse{
		Access:  access,
		Refresh: s.issueRefresh(user.ID),
		User:    &user,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.logouts.Add(1)

	var req models.LogoutRequest
	if err := decodeBody(w, r, &req); err == nil && req.Refresh != "" {
		s.mu.Lock()
		delete(s.refreshTokens, req.Refresh)
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Detail: "Successfully logged out."})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshes.Add(1)

	var req models.RefreshRequest
	if err := decodeBody(w, r, &req); err != nil || req.Refresh == "" {
		writeFieldErrors(w, map[string][]string{"refresh": {"This field is required."}})
		return
	}

	s.mu.Lock()
	userID, ok := s.refreshTokens[req.Refresh]
	var user models.UserRecord
	if ok {
		for _, acct := range s.accounts {
			if acct.user.ID == userID {
				user = acct.user
				break
			}
		}
		if s.opts.RotateRefresh {
			delete(s.refreshTokens, req.Refresh)
		}
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}

	access, err := s.issueAccess(user)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := models.RefreshResponse{Access: access}
	if s.opts.RotateRefresh {
		resp.Refresh = s.issueRefresh(userID)
	}
	writeJSON(w, http.StatusOK, resp)
}

// checkCode validates an email/code pair against a known account.
func (s *Server) checkCode(w http.ResponseWriter, email, code string) (*account, bool) {
	s.mu.Lock()
	acct, ok := s.accounts[email]
	s.mu.Unlock()
	if !ok {
		writeFieldErrors(w, map[string][]string{"email": {"No account with this email address."}})
		return nil, false
	}
	if code != s.opts.ResetCode {
		writeFieldErrors(w, map[string][]string{"code": {"Invalid or expired code."}})
		return nil, false
	}
	return acct, true
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyEmailRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	acct, ok := s.checkCode(w, req.Email, req.Code)
	if !ok {
		return
	}
	s.mu.Lock()
	acct.user.IsVerified = true
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Email verified."})
}

func (s *Server) handleSendResetCode(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetCodeRequest
	if err := decodeBody(w, r, &req); err != nil || req.Email == "" {
		writeFieldErrors(w, map[string][]string{"email": {"This field is required."}})
		return
	}
	// Unknown addresses get the same answer.
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "If the address exists, a code has been sent."})
}

func (s *Server) handleVerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetVerifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if _, ok := s.checkCode(w, req.Email, req.Code); !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Code verified."})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if req.NewPassword == "" || req.NewPassword != req.ConfirmPassword {
		writeFieldErrors(w, map[string][]string{"confirm_password": {"Passwords do not match."}})
		return
	}
	acct, ok := s.checkCode(w, req.Email, req.Code)
	if !ok {
		return
	}

	s.mu.Lock()
	acct.password = req.NewPassword
	for token, id := range s.refreshTokens {
		if id == acct.user.ID {
			delete(s.refreshTokens, token)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Password has been reset."})
}

// accessExpiry is exposed for tests that need the issued lifetime.
func (s *Server) accessExpiry(raw string) (time.Time, error) {
	claims, err := s.parseAccess(raw)
	if err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt.Time, nil
}
