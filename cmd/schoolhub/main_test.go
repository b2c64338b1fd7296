// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tomtom215/schoolhub/internal/mockbackend"
	"github.com/tomtom215/schoolhub/internal/models"
)

func setupBackend(t *testing.T) *mockbackend.Server {
	t.Helper()
	backend := mockbackend.New(mockbackend.Options{})
	backend.AddAccount(models.UserRecord{ID: 3, Email: "office@school.test", FirstName: "Grace", LastName: "Hopper"}, "correct-horse")
	_ = backend.Seed("students",
		models.Student{AdmissionNo: "S1", FirstName: "Ada", LastName: "L", Gender: "female"},
		models.Student{AdmissionNo: "S2", FirstName: "Alan", LastName: "T", Gender: "male"},
	)
	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)

	t.Setenv("API_BASE_URL", ts.URL)
	t.Setenv("STORAGE_PATH", t.TempDir())
	return backend
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestSessionAcrossRuns(t *testing.T) {
	setupBackend(t)

	code, out, errOut := runCLI(t, "correct-horse\n", "login", "-email", "office@school.test", "-remember")
	if code != 0 {
		t.Fatalf("login exit = %d, stderr %s", code, errOut)
	}
	if !strings.Contains(out, "Grace Hopper") {
		t.Errorf("login output = %q", out)
	}

	code, out, _ = runCLI(t, "", "whoami")
	if code != 0 || !strings.Contains(out, "office@school.test") {
		t.Errorf("whoami exit = %d, output %q", code, out)
	}

	code, out, _ = runCLI(t, "", "list", "students", "gender=female")
	if code != 0 || !strings.Contains(out, "Ada") || strings.Contains(out, "Alan") {
		t.Errorf("list exit = %d, output %q", code, out)
	}

	code, out, _ = runCLI(t, "", "get", "students", "2")
	if code != 0 || !strings.Contains(out, "Alan") {
		t.Errorf("get exit = %d, output %q", code, out)
	}

	if code, _, _ = runCLI(t, "", "logout"); code != 0 {
		t.Errorf("logout exit = %d", code)
	}
	code, _, errOut = runCLI(t, "", "whoami")
	if code != 1 || !strings.Contains(errOut, "Not logged in") {
		t.Errorf("whoami after logout exit = %d, stderr %q", code, errOut)
	}
}

func TestLoginFailure(t *testing.T) {
	setupBackend(t)

	code, _, errOut := runCLI(t, "", "login", "-email", "office@school.test", "-password", "wrong")
	if code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(errOut, "No active account") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestStatus(t *testing.T) {
	setupBackend(t)

	code, out, _ := runCLI(t, "", "status")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(out, `"session": "anonymous"`) {
		t.Errorf("status output = %s", out)
	}
}

func TestUsageErrors(t *testing.T) {
	setupBackend(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"teleport"}},
		{"unknown resource", []string{"list", "dragons"}},
		{"get without id", []string{"get", "teachers"}},
		{"login without email", []string{"login"}},
		{"bad filter", []string{"list", "students", "gender"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, _ := runCLI(t, "", tt.args...); code != 2 {
				t.Errorf("exit = %d, want 2", code)
			}
		})
	}
}

func TestLookupResource(t *testing.T) {
	for _, name := range []string{"teachers", "exam-marks", "exam_marks", "Payment-Gateways"} {
		if _, ok := lookupResource(name); !ok {
			t.Errorf("lookupResource(%q) not found", name)
		}
	}
	if _, ok := lookupResource("dragons"); ok {
		t.Error("lookupResource(dragons) found")
	}
}
