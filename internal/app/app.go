// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

// Package app assembles a SchoolHub client from configuration.
//
// Components are built leaf first:
//
//  1. Token store: persistent scope in BadgerDB (optionally encrypted),
//     session scope in memory
//  2. HTTP client with reauthentication
//  3. Auth manager, attached back to the client as its Authenticator
//  4. Entity cache and the feature modules on top of it
//  5. Supervisor tree running the cache janitor and the keep-alive
//
// Logging out, or losing the session to a failed refresh, clears the cache
// so no entity fetched under one account is shown to the next.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/tomtom215/schoolhub/internal/auth"
	"github.com/tomtom215/schoolhub/internal/cache"
	"github.com/tomtom215/schoolhub/internal/client"
	"github.com/tomtom215/schoolhub/internal/config"
	"github.com/tomtom215/schoolhub/internal/logging"
	"github.com/tomtom215/schoolhub/internal/school"
	"github.com/tomtom215/schoolhub/internal/supervisor"
	"github.com/tomtom215/schoolhub/internal/tokenstore"
)

// Options are process-level hooks that do not belong in configuration.
type Options struct {
	// OnAuthFailure runs after reauthentication failed and the session was
	// cleared. A UI navigates to its login screen here.
	OnAuthFailure func()

	// Transport overrides the HTTP transport.
	Transport http.RoundTripper
}

// App is a fully wired client.
type App struct {
	Config *config.Config
	Client *client.Client
	Auth   *auth.Manager
	Cache  *cache.Cache
	School *school.Services

	tree        *supervisor.Tree
	persistent  *tokenstore.BadgerKV
	unsubscribe func()

	closeOnce sync.Once
}

// New builds an App and restores any stored session. It does not start
// background services; call Start for that.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	enc, err := tokenstore.NewEncryptor(cfg.Storage.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("storage encryption: %w", err)
	}
	persistent, err := tokenstore.OpenBadgerKV(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	store := tokenstore.New(
		tokenstore.WithEncryption(persistent, enc),
		tokenstore.NewMemoryKV(),
	)

	api, err := client.New(client.Options{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		CircuitBreaker:    cfg.API.CircuitBreaker,
		UserAgent:         cfg.API.UserAgent,
		Transport:         opts.Transport,
	})
	if err != nil {
		_ = persistent.Close()
		return nil, err
	}

	manager := auth.NewManager(client.NewAuthAPI(api), store, auth.Options{
		Lockout: auth.LockoutPolicy{
			MaxAttempts: cfg.Auth.MaxLoginAttempts,
			Duration:    cfg.Auth.LockoutDuration,
		},
		RefreshTimeout: cfg.Auth.RefreshTimeout,
	})
	api.SetAuthenticator(manager)
	api.SetOnAuthFailure(func() {
		logging.Warn().Msg("Reauthentication failed, login required")
		if opts.OnAuthFailure != nil {
			opts.OnAuthFailure()
		}
	})

	entities := cache.New(cache.Options{
		KeepUnusedFor:   cfg.Cache.KeepUnusedFor,
		CleanupInterval: cfg.Cache.CleanupInterval,
		MaxAge:          cfg.Cache.MaxAge,
	})

	a := &App{
		Config:     cfg,
		Client:     api,
		Auth:       manager,
		Cache:      entities,
		School:     school.NewServices(api, entities),
		persistent: persistent,
	}
	a.unsubscribe = manager.OnChange(a.sessionChanged)

	if err := manager.Initialize(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}

	a.tree = supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	a.tree.AddCacheService(entities)
	if cfg.Auth.KeepAlive {
		a.tree.AddSessionService(auth.NewKeepAlive(manager, cfg.Auth.KeepAliveInterval, cfg.Auth.RefreshLeadTime))
	}

	logging.Info().
		Str("base_url", api.BaseURL()).
		Str("session", string(manager.Session().Status())).
		Bool("persistent_storage", cfg.Storage.Path != "").
		Bool("encrypted_storage", enc != nil).
		Msg("SchoolHub client ready")
	return a, nil
}

// sessionChanged drops cached entities whenever the session ends.
func (a *App) sessionChanged(s auth.Session) {
	if s.State != auth.StateAnonymous {
		return
	}
	if a.Cache.Stats().Entries == 0 {
		return
	}
	a.Cache.Clear()
	logging.Debug().Str("status", string(s.Status())).Msg("Session ended, entity cache cleared")
}

// Start runs the background services until ctx ends. The channel receives
// the supervisor's result and is then closed.
func (a *App) Start(ctx context.Context) <-chan error {
	return a.tree.ServeBackground(ctx)
}

// Tree returns the supervisor tree.
func (a *App) Tree() *supervisor.Tree {
	return a.tree
}

// Close releases storage. Stop the context passed to Start first.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.unsubscribe != nil {
			a.unsubscribe()
		}
		if closeErr := a.persistent.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close credential store: %w", closeErr))
		}
	})
	return err
}
