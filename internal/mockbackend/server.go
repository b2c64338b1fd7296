// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

// Package mockbackend is an in-memory SchoolHub backend for development and
// tests. It speaks the same /api/v1 protocol as the production service:
// JWT access tokens with a short lifetime, opaque refresh tokens with
// optional rotation, and plain JSON CRUD for every collection.
//
// Tests drive it directly:
//
//	srv := mockbackend.New(mockbackend.Options{})
//	srv.AddAccount(models.UserRecord{ID: 1, Email: "admin@school.test"}, "secret-pass")
//	ts := httptest.NewServer(srv.Handler())
//	srv.ExpireAccessTokens() // every outstanding access token now gets 401
package mockbackend

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"

	"github.com/tomtom215/schoolhub/internal/logging"
	"github.com/tomtom215/schoolhub/internal/models"
)

// Collections served under /api/v1.
var Collections = []string{
	"teachers",
	"students",
	"classes",
	"sessions",
	"exam-marks",
	"notices",
	"complaints",
	"applications",
	"payment-gateways",
	"attendance",
}

// DefaultResetCode is the verification and password reset code every
// account receives.
const DefaultResetCode = "123456"

// Options configures a Server.
type Options struct {
	// SigningKey signs access tokens (HS256).
	SigningKey []byte
	// AccessTTL is the access token lifetime. Default 5m.
	AccessTTL time.Duration
	// RotateRefresh issues a new refresh token on every refresh and revokes
	// the old one.
	RotateRefresh bool
	// Paginate wraps list responses in {"count", "next", "previous", "results"}.
	Paginate bool
	// CORSOrigins enables CORS for browser clients.
	CORSOrigins []string
	// LoginRateLimit is login requests per minute per IP. 0 disables.
	LoginRateLimit int
	// ResetCode overrides DefaultResetCode.
	ResetCode string

	Clock func() time.Time
}

type account struct {
	user     models.UserRecord
	password string
}

// Server is the mock backend.
type Server struct {
	opts Options
	now  func() time.Time

	mu            sync.Mutex
	accounts      map[string]*account // by email
	refreshTokens map[string]int64    // token -> user id
	generation    int64
	collections   map[string]*collection
	failNext      map[string]int // path -> remaining 500s

	logins    atomic.Int64
	refreshes atomic.Int64
	logouts   atomic.Int64
	rejected  atomic.Int64
	requests  atomic.Int64

	handler http.Handler
}

// New creates a Server with empty collections.
func New(opts Options) *Server {
	if len(opts.SigningKey) == 0 {
		opts.SigningKey = []byte("schoolhub-mock-signing-key")
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 5 * time.Minute
	}
	if opts.ResetCode == "" {
		opts.ResetCode = DefaultResetCode
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	s := &Server{
		opts:          opts,
		now:           opts.Clock,
		accounts:      make(map[string]*account),
		refreshTokens: make(map[string]int64),
		collections:   make(map[string]*collection, len(Collections)),
		failNext:      make(map[string]int),
	}
	for _, name := range Collections {
		s.collections[name] = newCollection()
	}
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.countRequests)
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Correlation-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			login := http.HandlerFunc(s.handleLogin)
			if s.opts.LoginRateLimit > 0 {
				r.With(httprate.LimitByIP(s.opts.LoginRateLimit, time.Minute)).Post("/login/", login)
			} else {
				r.Post("/login/", login)
			}
			r.Post("/logout/", s.handleLogout)
			r.Post("/token/refresh/", s.handleRefresh)
			r.Post("/verify-email/", s.handleVerifyEmail)
			r.Post("/password-reset/send-code/", s.handleSendResetCode)
			r.Post("/password-reset/verify-code/", s.handleVerifyResetCode)
			r.Post("/password-reset/reset/", s.handleResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Use(s.injectFailures)
			for _, name := range Collections {
				r.Route("/"+name, func(r chi.Router) {
					r.Get("/", s.handleList(name))
					r.Post("/", s.handleCreate(name))
					r.Get("/{id}/", s.handleGet(name))
					r.Put("/{id}/", s.handleUpdate(name))
					r.Patch("/{id}/", s.handleUpdate(name))
					r.Delete("/{id}/", s.handleDelete(name))

					switch name {
					case "complaints":
						r.Post("/{id}/resolve/", s.handleAction(name))
					case "applications":
						r.Post("/{id}/review/", s.handleAction(name))
					case "payment-gateways":
						r.Post("/{id}/activate/", s.handleActivate)
					case "attendance":
						r.Post("/bulk/", s.handleAttendanceBulk)
					}
				})
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not found.")
	})
	return r
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("Mock backend request")
		next.ServeHTTP(w, r)
	})
}

// injectFailures answers 500 for paths armed with FailNext.
func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		n := s.failNext[r.URL.Path]
		if n > 0 {
			s.failNext[r.URL.Path] = n - 1
		}
		s.mu.Unlock()
		if n > 0 {
			writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AddAccount registers a user that can log in with password.
func (s *Server) AddAccount(user models.UserRecord, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[user.Email] = &account{user: user, password: password}
}

// Seed stores items in collection. Items without an "id" get one.
func (s *Server) Seed(name string, items ...any) error {
	c, ok := s.collection(name)
	if !ok {
		return errUnknownCollection(name)
	}
	for _, item := range items {
		obj, err := toObject(item)
		if err != nil {
			return err
		}
		c.insert(obj)
	}
	return nil
}

// Items returns a copy of every object in collection, ordered by id.
func (s *Server) Items(name string) []map[string]any {
	c, ok := s.collection(name)
	if !ok {
		return nil
	}
	return c.list(nil)
}

// ExpireAccessTokens makes every access token issued so far invalid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

// RevokeRefreshTokens makes every refresh token invalid, so the next refresh
// fails with 401.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	s.refreshTokens = make(map[string]int64)
	s.mu.Unlock()
}

// FailNext makes the next n authenticated requests to path answer 500.
func (s *Server) FailNext(path string, n int) {
	s.mu.Lock()
	s.failNext[path] = n
	s.mu.Unlock()
}

// Logins returns how many login attempts were received.
func (s *Server) Logins() int64 { return s.logins.Load() }

// Refreshes returns how many refresh requests were received.
func (s *Server) Refreshes() int64 { return s.refreshes.Load() }

// Logouts returns how many logout requests were received.
func (s *Server) Logouts() int64 { return s.logouts.Load() }

// Rejected returns how many requests were answered 401 for a bad access
// token.
func (s *Server) Rejected() int64 { return s.rejected.Load() }

// Requests returns the total number of requests served.
func (s *Server) Requests() int64 { return s.requests.Load() }

func (s *Server) collection(name string) (*collection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	return c, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode mock response")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeFieldErrors(w http.ResponseWriter, fields map[string][]string) {
	writeJSON(w, http.StatusBadRequest, fields)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}
