// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"testing"
	"time"
)

func TestFromResponse(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   Kind
		wantMsg    string
		wantFields map[string][]string
	}{
		{
			name:     "detail 401",
			status:   401,
			body:     `{"detail":"No active account found with the given credentials"}`,
			wantKind: KindUnauthorized,
			wantMsg:  "No active account found with the given credentials",
		},
		{
			name:       "field errors",
			status:     400,
			body:       `{"email":["Enter a valid email address."],"first_name":["This field is required."]}`,
			wantKind:   KindValidation,
			wantMsg:    "Enter a valid email address.",
			wantFields: map[string][]string{"email": {"Enter a valid email address."}, "first_name": {"This field is required."}},
		},
		{
			name:       "non field errors with fields",
			status:     400,
			body:       `{"non_field_errors":["Passwords do not match."],"code":["invalid"]}`,
			wantKind:   KindClient,
			wantMsg:    "Passwords do not match.",
			wantFields: nil,
		},
		{
			name:       "nested errors object",
			status:     422,
			body:       `{"message":"Invalid input","errors":{"date":"Date is in the future"}}`,
			wantKind:   KindValidation,
			wantMsg:    "Invalid input",
			wantFields: map[string][]string{"date": {"Date is in the future"}},
		},
		{
			name:     "html 502",
			status:   502,
			body:     `<html>Bad Gateway</html>`,
			wantKind: KindServer,
			wantMsg:  "The server encountered an error. Please try again later.",
		},
		{
			name:     "404 empty",
			status:   404,
			wantKind: KindClient,
			wantMsg:  GenericMessage,
		},
		{
			name:     "error key",
			status:   403,
			body:     `{"error":"Only admins may do that"}`,
			wantKind: KindClient,
			wantMsg:  "Only admins may do that",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := FromResponse("POST", "/api/v1/x/", tt.status, nil, []byte(tt.body))
			if e.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", e.Kind, tt.wantKind)
			}
			if got := e.UserMessage(); got != tt.wantMsg {
				t.Errorf("UserMessage() = %q, want %q", got, tt.wantMsg)
			}
			if !reflect.DeepEqual(e.FieldErrors(), tt.wantFields) {
				t.Errorf("FieldErrors() = %v, want %v", e.FieldErrors(), tt.wantFields)
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "30")
	e := FromResponse("GET", "/api/v1/students/", 429, h, nil)
	if e.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", e.RetryAfter)
	}
	if !e.Temporary() {
		t.Error("429 should be temporary")
	}
}

func TestLockoutMessage(t *testing.T) {
	e := Lockout(14*time.Minute + 30*time.Second + 200*time.Millisecond)
	want := "Too many failed login attempts. Try again in 14:31."
	if got := e.UserMessage(); got != want {
		t.Errorf("UserMessage() = %q, want %q", got, want)
	}
}

func TestFormatCountdown(t *testing.T) {
	tests := map[time.Duration]string{
		0:                               "0:00",
		-time.Second:                    "0:00",
		time.Millisecond:                "0:01",
		59 * time.Second:                "0:59",
		15 * time.Minute:                "15:00",
		90*time.Second + 1:              "1:31",
		2*time.Minute + 5*time.Second:   "2:05",
		14*time.Minute + 59*time.Second: "14:59",
	}
	for d, want := range tests {
		if got := FormatCountdown(d); got != want {
			t.Errorf("FormatCountdown(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestKindHelpers(t *testing.T) {
	base := Transport("GET", "/api/v1/notices/", errors.New("connection refused"))
	wrapped := fmt.Errorf("list notices: %w", base)

	if !Is(wrapped, KindTransport) {
		t.Error("Is should see through wrapping")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain errors are KindUnknown")
	}
	if got := UserMessage(wrapped); got != defaultMessages[KindTransport] {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(errors.New("boom")); got != GenericMessage {
		t.Errorf("UserMessage(plain) = %q", got)
	}
	if !errors.Is(wrapped, base.Err) {
		t.Error("Unwrap should expose the cause")
	}
}

func TestValidationFirstField(t *testing.T) {
	e := Validation(map[string][]string{"title": {"title is required"}, "audience": {"audience must be one of: all"}})
	if got := e.UserMessage(); got != "audience must be one of: all" {
		t.Errorf("UserMessage() = %q", got)
	}
	if e.Field("title") != "title is required" {
		t.Errorf("Field(title) = %q", e.Field("title"))
	}
}
