// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

/*
Package client is the HTTP transport to the SchoolHub backend.

Every request carries a JSON content type (unless the caller set one), the
current bearer token when there is a session, the shared cookie jar and an
X-Request-ID header. Outbound calls pass through an optional rate limiter
and circuit breaker.

Reauthentication:

A 401 on any endpoint other than login or token refresh triggers exactly
one refresh through the Authenticator and, when it succeeds, exactly one
replay of the original request with the new token. The replay's response
is returned as-is, even if it is another 401. When the refresh fails the
session is already cleared by the Authenticator; the client invokes the
OnAuthFailure callback (typically navigation to a login screen) and
reports the original request as unauthorized.

Every other status is returned unmodified and never retried.
*/
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/tomtom215/schoolhub/internal/apierror"
	"github.com/tomtom215/schoolhub/internal/logging"
	"github.com/tomtom215/schoolhub/internal/metrics"
)

// APIPrefix is prepended to every resource path.
const APIPrefix = "/api/v1"

// Auth endpoints, relative to the base URL.
const (
	LoginPath                = APIPrefix + "/auth/login/"
	LogoutPath               = APIPrefix + "/auth/logout/"
	RefreshPath              = APIPrefix + "/auth/token/refresh/"
	VerifyEmailPath          = APIPrefix + "/auth/verify-email/"
	PasswordResetSendPath    = APIPrefix + "/auth/password-reset/send-code/"
	PasswordResetVerifyPath  = APIPrefix + "/auth/password-reset/verify-code/"
	PasswordResetConfirmPath = APIPrefix + "/auth/password-reset/reset/"
)

const maxBodySize = 10 << 20

// Authenticator supplies tokens and performs the refresh. *auth.Manager
// implements it.
type Authenticator interface {
	AccessToken() string
	RefreshIfStale(ctx context.Context, usedToken string) (string, error)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration

	// RequestsPerSecond throttles outbound requests. 0 disables.
	RequestsPerSecond float64
	Burst             int

	// CircuitBreaker enables the breaker around the transport.
	CircuitBreaker bool

	UserAgent string

	// OnAuthFailure is called when reauthentication fails.
	OnAuthFailure func()

	// Transport overrides the HTTP transport, mostly for tests.
	Transport http.RoundTripper
}

// Request describes one API call.
type Request struct {
	Method string
	// Path is relative to the base URL and normally starts with APIPrefix.
	Path   string
	Query  url.Values
	// Header is added to the defaults. A caller-supplied Authorization
	// header replaces the session token and disables reauthentication.
	Header http.Header

	// Body is JSON-encoded. nil sends no body.
	Body any

	// SkipReauth disables the 401 refresh-and-replay for this call.
	SkipReauth bool
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client talks to the backend.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *circuitBreaker
	userAgent string

	mu            sync.RWMutex
	auth          Authenticator
	onAuthFailure func()
}

// New creates a Client. The Authenticator is attached later with
// SetAuthenticator because the auth manager itself sends requests through
// this client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout:   timeout,
			Jar:       jar,
			Transport: opts.Transport,
		},
		userAgent:     opts.UserAgent,
		onAuthFailure: opts.OnAuthFailure,
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	if opts.CircuitBreaker {
		c.breaker = newCircuitBreaker("schoolhub-api")
	}
	return c, nil
}

// SetAuthenticator attaches the session used for bearer tokens and refresh.
func (c *Client) SetAuthenticator(a Authenticator) {
	c.mu.Lock()
	c.auth = a
	c.mu.Unlock()
}

// SetOnAuthFailure replaces the reauthentication failure callback.
func (c *Client) SetOnAuthFailure(fn func()) {
	c.mu.Lock()
	c.onAuthFailure = fn
	c.mu.Unlock()
}

// BaseURL returns the configured backend location.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) authenticator() (Authenticator, func()) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth, c.onAuthFailure
}

// Do sends req and returns the response whatever its status. The error is
// non-nil for transport failures and for a 401 whose reauthentication
// failed.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	ctx = logging.EnsureCorrelationID(ctx)

	var body []byte
	if req.Body != nil {
		var err error
		if body, err = json.Marshal(req.Body); err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", req.Method, req.Path, err)
		}
	}

	auth, onFailure := c.authenticator()
	token := ""
	if auth != nil {
		token = auth.AccessToken()
	}

	resp, err := c.send(ctx, req, body, token)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusUnauthorized || req.SkipReauth || isAuthEndpoint(req.Path) || auth == nil ||
		req.Header.Get("Authorization") != "" {
		return resp, nil
	}

	logging.Ctx(ctx).Debug().Str("method", req.Method).Str("path", req.Path).Msg("Unauthorized, refreshing session")
	newToken, refreshErr := auth.RefreshIfStale(ctx, token)
	if refreshErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apierror.Transport(req.Method, req.Path, ctxErr)
		}
		metrics.APIReplays.WithLabelValues("refresh_failed").Inc()
		logging.Ctx(ctx).Info().Err(refreshErr).Msg("Reauthentication failed")
		if onFailure != nil {
			onFailure()
		}
		unauthorized := apierror.FromResponse(req.Method, req.Path, resp.Status, resp.Header, resp.Body)
		unauthorized.Err = refreshErr
		return resp, unauthorized
	}

	metrics.APIReplays.WithLabelValues("replayed").Inc()
	return c.send(ctx, req, body, newToken)
}

// DoJSON sends req, normalizes non-2xx responses into *apierror.Error and
// decodes a 2xx body into out when out is non-nil.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return apierror.FromResponse(req.Method, req.Path, resp.Status, resp.Header, resp.Body)
	}
	if out == nil || resp.Status == http.StatusNoContent || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return apierror.Decode(req.Method, req.Path, resp.Status, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, req Request, body []byte, token string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apierror.Transport(req.Method, req.Path, err)
		}
	}

	httpReq, err := c.newRequest(ctx, req, body, token)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.roundTrip(httpReq)
	if err != nil {
		metrics.RecordAPIRequest(req.Method, 0, time.Since(start))
		logging.Ctx(ctx).Warn().Err(err).Str("method", req.Method).Str("path", req.Path).Msg("API request failed")
		return nil, apierror.Transport(req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	metrics.RecordAPIRequest(req.Method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, apierror.Transport(req.Method, req.Path, fmt.Errorf("read body: %w", err))
	}

	logging.Ctx(ctx).Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("API request")

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) newRequest(ctx context.Context, req Request, body []byte, token string) (*http.Request, error) {
	u := c.baseURL.JoinPath(req.Path)
	// JoinPath cleans away the trailing slash the backend routes require.
	if strings.HasSuffix(req.Path, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if token != "" && httpReq.Header.Get("Authorization") == "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = logging.GenerateRequestID()
	}
	httpReq.Header.Set("X-Request-ID", requestID)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		httpReq.Header.Set("X-Correlation-ID", id)
	}
	return httpReq, nil
}

func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.http.Do(req)
	}
	return c.breaker.execute(func() (*http.Response, error) {
		return c.http.Do(req)
	})
}

func isAuthEndpoint(path string) bool {
	return path == LoginPath || path == RefreshPath
}

// ErrCircuitOpen is returned while the breaker rejects requests.
var ErrCircuitOpen = errors.New("backend unavailable: circuit open")
