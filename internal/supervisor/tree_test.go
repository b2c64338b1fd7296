// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockService implements suture.Service with controllable failures.
type mockService struct {
	name       string
	startCount atomic.Int32
	stopCount  atomic.Int32
	failCount  atomic.Int32

	mu       sync.Mutex
	maxFails int32
}

func newMockService(name string) *mockService {
	return &mockService{name: name}
}

func (m *mockService) Serve(ctx context.Context) error {
	m.startCount.Add(1)
	defer m.stopCount.Add(1)

	m.mu.Lock()
	maxFails := m.maxFails
	m.mu.Unlock()

	if maxFails > 0 && m.failCount.Add(1) <= maxFails {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockService) setFailCount(n int32) {
	m.mu.Lock()
	m.maxFails = n
	m.mu.Unlock()
}

func (m *mockService) String() string { return m.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewTree(t *testing.T) {
	t.Run("applies defaults for zero config", func(t *testing.T) {
		tree := NewTree(testLogger(), TreeConfig{})
		if tree.Root() == nil {
			t.Fatal("root supervisor should not be nil")
		}
		if tree.config != DefaultTreeConfig() {
			t.Errorf("config = %+v, want defaults", tree.config)
		}
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		cfg := TreeConfig{FailureThreshold: 2, FailureDecay: 5, FailureBackoff: time.Second, ShutdownTimeout: 3 * time.Second}
		if tree := NewTree(testLogger(), cfg); tree.config != cfg {
			t.Errorf("config = %+v, want %+v", tree.config, cfg)
		}
	})
}

func TestTreeRunsBothLayers(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{FailureBackoff: 50 * time.Millisecond, ShutdownTimeout: time.Second})
	keepAlive := newMockService("auth-keepalive")
	janitor := newMockService("cache-janitor")
	tree.AddSessionService(keepAlive)
	tree.AddCacheService(janitor)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitFor(t, "both services to start", func() bool {
		return keepAlive.startCount.Load() == 1 && janitor.startCount.Load() == 1
	})
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not shut down in time")
	}
	if keepAlive.stopCount.Load() != 1 || janitor.stopCount.Load() != 1 {
		t.Errorf("stop counts = %d, %d", keepAlive.stopCount.Load(), janitor.stopCount.Load())
	}
}

func TestTreeRestartsFailedService(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{FailureThreshold: 10, FailureBackoff: 10 * time.Millisecond, ShutdownTimeout: time.Second})
	flaky := newMockService("flaky")
	flaky.setFailCount(2)
	steady := newMockService("steady")
	tree.AddSessionService(flaky)
	tree.AddCacheService(steady)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	waitFor(t, "flaky service to recover", func() bool { return flaky.startCount.Load() >= 3 })
	if got := steady.startCount.Load(); got != 1 {
		t.Errorf("steady service started %d times, want 1", got)
	}

	cancel()
	<-errCh
}

func TestRemoveSessionService(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})
	svc := newMockService("auth-keepalive")
	token := tree.AddSessionService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	waitFor(t, "service start", func() bool { return svc.startCount.Load() == 1 })
	if err := tree.RemoveSessionService(token); err != nil {
		t.Fatalf("RemoveSessionService() error = %v", err)
	}
	waitFor(t, "service stop", func() bool { return svc.stopCount.Load() == 1 })

	cancel()
	<-errCh
}
