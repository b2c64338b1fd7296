// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

// Package apierror defines the single error type every SchoolHub operation
// returns for failures that a user may need to see.
//
// Backend payloads arrive in several shapes ({"detail": ...},
// {"message": ...}, {"field": ["msg"]}, {"non_field_errors": [...]}) and are
// normalized into an *Error as soon as the response is read. Callers switch
// on Kind and never inspect raw bodies:
//
//	var apiErr *apierror.Error
//	if errors.As(err, &apiErr) && apiErr.Kind == apierror.KindValidation {
//	    showFieldErrors(apiErr.FieldErrors())
//	}
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Kind classifies a failure.
type Kind int

// Failure kinds.
const (
	KindUnknown Kind = iota
	// KindTransport is a network failure or timeout; no response was read.
	KindTransport
	// KindUnauthorized is a 401 that reauthentication could not recover.
	KindUnauthorized
	// KindValidation is a 400/422 with field errors, or a payload rejected
	// before sending.
	KindValidation
	// KindServer is any 5xx.
	KindServer
	// KindLockout is the client-side login lockout; no request was made.
	KindLockout
	// KindClient is any other 4xx (403, 404, 409, 429...).
	KindClient
	// KindDecode is a 2xx whose body could not be decoded.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindLockout:
		return "lockout"
	case KindClient:
		return "client"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// GenericMessage is shown when the backend gave nothing more specific.
const GenericMessage = "Something went wrong. Please try again."

var defaultMessages = map[Kind]string{
	KindTransport:    "Unable to reach the server. Check your connection and try again.",
	KindUnauthorized: "You are not signed in or your session has expired.",
	KindServer:       "The server encountered an error. Please try again later.",
	KindValidation:   "Please correct the highlighted fields.",
}

// Error is a normalized API failure.
type Error struct {
	Kind    Kind
	Status  int
	Method  string
	Path    string
	Message string
	Fields  map[string][]string

	// RetryAfter is the remaining lockout for KindLockout, or the server's
	// Retry-After hint on a 429.
	RetryAfter time.Duration

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Method != "" || e.Path != "" {
		fmt.Fprintf(&b, " %s %s", e.Method, e.Path)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage returns text suitable for display.
func (e *Error) UserMessage() string {
	if e.Kind == KindLockout {
		return fmt.Sprintf("Too many failed login attempts. Try again in %s.", FormatCountdown(e.RetryAfter))
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Kind == KindValidation && len(e.Fields) > 0 {
		return firstFieldMessage(e.Fields)
	}
	if msg, ok := defaultMessages[e.Kind]; ok {
		return msg
	}
	return GenericMessage
}

// FieldErrors returns per-field messages; nil unless KindValidation.
func (e *Error) FieldErrors() map[string][]string {
	if e.Kind != KindValidation {
		return nil
	}
	return e.Fields
}

// Field returns the first message for field, or "".
func (e *Error) Field(field string) string {
	if msgs := e.Fields[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Temporary reports whether retrying the same request may succeed.
func (e *Error) Temporary() bool {
	return e.Kind == KindTransport || e.Kind == KindServer || e.Status == http.StatusTooManyRequests
}

func firstFieldMessage(fields map[string][]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if msgs := fields[name]; len(msgs) > 0 {
			return msgs[0]
		}
	}
	return defaultMessages[KindValidation]
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}

// UserMessage extracts display text from any error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.UserMessage()
	}
	return GenericMessage
}

// FormatCountdown renders d as m:ss, rounding up so a countdown never shows
// 0:00 while still locked.
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// Transport wraps a failure that produced no response.
func Transport(method, path string, err error) *Error {
	return &Error{Kind: KindTransport, Method: method, Path: path, Err: err}
}

// Lockout reports a client-side login lockout with remaining time.
func Lockout(remaining time.Duration) *Error {
	return &Error{Kind: KindLockout, RetryAfter: remaining}
}

// Validation builds a client-side validation failure.
func Validation(fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Fields: fields}
}

// Decode wraps a body that could not be decoded.
func Decode(method, path string, status int, err error) *Error {
	return &Error{Kind: KindDecode, Method: method, Path: path, Status: status, Err: err}
}

// Unauthorized builds a 401 failure with an optional message.
func Unauthorized(method, path, message string) *Error {
	return &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Method: method, Path: path, Message: message}
}

// FromResponse normalizes a non-2xx response.
func FromResponse(method, path string, status int, header http.Header, body []byte) *Error {
	e := &Error{Status: status, Method: method, Path: path}
	e.Message, e.Fields = parseBody(body)

	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case status >= 500:
		e.Kind = KindServer
	case (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity) && len(e.Fields) > 0:
		e.Kind = KindValidation
	default:
		e.Kind = KindClient
	}

	if status == http.StatusTooManyRequests && header != nil {
		e.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
	}
	if e.Kind != KindValidation {
		e.Fields = nil
	}
	return e
}

// messageKeys are checked in order for a top-level message.
var messageKeys = []string{"detail", "message", "error", "non_field_errors"}

// parseBody extracts a message and field errors. Unknown shapes yield
// neither, leaving UserMessage to fall back.
func parseBody(body []byte) (string, map[string][]string) {
	if len(body) == 0 {
		return "", nil
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil
	}

	// Some backends nest everything under "errors".
	if nested, ok := payload["errors"].(map[string]any); ok {
		for k, v := range nested {
			if _, exists := payload[k]; !exists {
				payload[k] = v
			}
		}
		delete(payload, "errors")
	}

	var message string
	for _, key := range messageKeys {
		if msgs := toStrings(payload[key]); len(msgs) > 0 {
			message = msgs[0]
			break
		}
	}

	fields := make(map[string][]string)
	for key, val := range payload {
		if isMessageKey(key) || key == "code" || key == "status" || key == "status_code" {
			continue
		}
		if msgs := toStrings(val); len(msgs) > 0 {
			fields[key] = msgs
		}
	}
	if len(fields) == 0 {
		fields = nil
	}
	return message, fields
}

func isMessageKey(key string) bool {
	for _, k := range messageKeys {
		if k == key {
			return true
		}
	}
	return false
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	var secs int
	if _, err := fmt.Sscanf(v, "%d", &secs); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
