// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

// Package main is the schoolhub command line client.
//
// It drives the same session, cache and feature modules a UI would, which
// makes it handy for checking a deployment or scripting administration:
//
//	schoolhub login -email admin@school.test -remember
//	schoolhub list students class_id=4
//	schoolhub get teachers 12
//	schoolhub status
//	schoolhub logout
//
// # Configuration
//
// Settings come from built-in defaults, an optional YAML file
// (SCHOOLHUB_CONFIG, ./config.yaml or /etc/schoolhub/config.yaml) and the
// environment. The backend is chosen with API_BASE_URL.
//
// Credentials saved with -remember live in a BadgerDB directory, by default
// under the user config directory; set STORAGE_PATH to move it and
// TOKEN_ENCRYPTION_KEY to encrypt it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tomtom215/schoolhub/internal/apierror"
	"github.com/tomtom215/schoolhub/internal/app"
	"github.com/tomtom215/schoolhub/internal/config"
	"github.com/tomtom215/schoolhub/internal/logging"
)

const usage = `Usage: schoolhub [-v] <command> [arguments]

Commands:
  login     -email <address> [-password <pw>] [-remember]
  logout
  whoami
  list      <resource> [field=value ...]
  get       <resource> <id>
  status

Resources:
  %s
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("schoolhub", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "log debug output to stderr")
	fs.Usage = func() { fmt.Fprintf(stderr, usage, resourceNames()) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "schoolhub: %v\n", err)
		return 1
	}
	level := "warn"
	if *verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: "console", Caller: cfg.Logging.Caller})

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaultStoragePath()
	}
	// One-shot commands have no use for background refresh.
	cfg.Auth.KeepAlive = false

	a, err := app.New(ctx, cfg, app.Options{
		OnAuthFailure: func() { fmt.Fprintln(stderr, "Session expired. Run `schoolhub login` again.") },
	})
	if err != nil {
		fmt.Fprintf(stderr, "schoolhub: %v\n", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing client")
		}
	}()

	cmd := &commands{app: a, stdin: stdin, stdout: stdout, stderr: stderr}
	if err := cmd.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		var usageErr usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "schoolhub: %v\n\n", err)
			fs.Usage()
			return 2
		}
		fmt.Fprintf(stderr, "schoolhub: %s\n", apierror.UserMessage(err))
		for field, msgs := range fieldErrors(err) {
			for _, msg := range msgs {
				fmt.Fprintf(stderr, "  %s: %s\n", field, msg)
			}
		}
		logging.Debug().Err(err).Str("command", fs.Arg(0)).Msg("Command failed")
		return 1
	}
	return 0
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "schoolhub", "credentials")
	}
	return filepath.Join(dir, "schoolhub", "credentials")
}

func fieldErrors(err error) map[string][]string {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr.FieldErrors()
	}
	return nil
}
