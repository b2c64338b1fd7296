// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

// Package main runs the in-memory SchoolHub backend for local development.
//
//	mockapi -seed
//	API_BASE_URL=http://127.0.0.1:8000 schoolhub login -email admin@schoolhub.test
//
// Settings come from the mock section of the configuration (MOCK_ADDR,
// MOCK_ACCESS_TTL, MOCK_ROTATE_REFRESH, MOCK_CORS_ORIGINS,
// MOCK_LOGIN_RATE_LIMIT). A short MOCK_ACCESS_TTL is the easiest way to
// watch the client refresh its session.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/schoolhub/internal/config"
	"github.com/tomtom215/schoolhub/internal/logging"
	"github.com/tomtom215/schoolhub/internal/mockbackend"
)

func main() {
	seed := flag.Bool("seed", true, "install the demo account and sample data")
	paginate := flag.Bool("paginate", false, "wrap list responses in a paginated envelope")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	backend := mockbackend.New(mockbackend.Options{
		SigningKey:     []byte(cfg.Mock.SigningKey),
		AccessTTL:      cfg.Mock.AccessTTL,
		RotateRefresh:  cfg.Mock.RotateRefresh,
		Paginate:       *paginate,
		CORSOrigins:    cfg.Mock.CORSOrigins,
		LoginRateLimit: cfg.Mock.LoginRateLimit,
	})
	if *seed {
		if err := backend.SeedDemo(); err != nil {
			logging.Fatal().Err(err).Msg("Failed to seed demo data")
		}
		logging.Info().Str("email", mockbackend.DemoEmail).Msg("Demo account installed")
	}

	server := &http.Server{
		Addr:              cfg.Mock.Addr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("addr", server.Addr).
			Dur("access_ttl", cfg.Mock.AccessTTL).
			Bool("rotate_refresh", cfg.Mock.RotateRefresh).
			Msg("Mock backend listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("Mock backend failed")
		}
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Error shutting down mock backend")
	}
	logging.Info().
		Int64("requests", backend.Requests()).
		Int64("refreshes", backend.Refreshes()).
		Msg("Mock backend stopped")
}
