// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/schoolhub/internal/apierror"
	"github.com/tomtom215/schoolhub/internal/app"
	"github.com/tomtom215/schoolhub/internal/models"
)

type usageError string

func (e usageError) Error() string { return string(e) }

type commands struct {
	app    *app.App
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (c *commands) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "login":
		return c.login(ctx, args)
	case "logout":
		c.app.Auth.Logout(ctx)
		fmt.Fprintln(c.stdout, "Logged out.")
		return nil
	case "whoami":
		return c.whoami()
	case "list":
		return c.list(ctx, args)
	case "get":
		return c.get(ctx, args)
	case "status":
		return c.status()
	default:
		return usageError(fmt.Sprintf("unknown command %q", name))
	}
}

func (c *commands) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password; read from stdin when empty")
	remember := fs.Bool("remember", false, "keep the session across runs")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if *email == "" {
		return usageError("login requires -email")
	}
	if *password == "" {
		fmt.Fprint(c.stderr, "Password: ")
		line, err := bufio.NewReader(c.stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		*password = strings.TrimRight(line, "\r\n")
	}

	user, err := c.app.Auth.Login(ctx, models.Credentials{Email: *email, Password: *password}, *remember)
	if err != nil {
		if left := c.app.Auth.Session(); left.LoginAttempts > 0 && !apierror.Is(err, apierror.KindLockout) {
			fmt.Fprintf(c.stderr, "%d failed attempt(s).\n", left.LoginAttempts)
		}
		return err
	}
	fmt.Fprintf(c.stdout, "Logged in as %s.\n", user.DisplayName())
	return nil
}

func (c *commands) whoami() error {
	user := c.app.Auth.User()
	if user == nil {
		return apierror.Unauthorized("", "", "Not logged in.")
	}
	return c.print(user)
}

func (c *commands) list(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("list requires a resource")
	}
	res, ok := lookupResource(args[0])
	if !ok {
		return usageError(fmt.Sprintf("unknown resource %q", args[0]))
	}
	q, err := parseFilters(args[1:])
	if err != nil {
		return err
	}
	items, err := res.list(ctx, c.app, q)
	if err != nil {
		return err
	}
	return c.print(items)
}

func (c *commands) get(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("get requires a resource and an id")
	}
	res, ok := lookupResource(args[0])
	if !ok {
		return usageError(fmt.Sprintf("unknown resource %q", args[0]))
	}
	item, err := res.get(ctx, c.app, args[1])
	if err != nil {
		return err
	}
	return c.print(item)
}

type statusReport struct {
	BaseURL          string  `json:"base_url"`
	Session          string  `json:"session"`
	User             string  `json:"user,omitempty"`
	LoginAttempts    int     `json:"login_attempts,omitempty"`
	LockoutRemaining string  `json:"lockout_remaining,omitempty"`
	LastError        string  `json:"last_error,omitempty"`
	CacheEntries     int64   `json:"cache_entries"`
	CacheHitRate     float64 `json:"cache_hit_rate"`
}

func (c *commands) status() error {
	s := c.app.Auth.Session()
	report := statusReport{
		BaseURL:       c.app.Client.BaseURL(),
		Session:       string(s.Status()),
		LoginAttempts: s.LoginAttempts,
		LastError:     s.LastError,
		CacheEntries:  c.app.Cache.Stats().Entries,
		CacheHitRate:  c.app.Cache.HitRate(),
	}
	if s.User != nil {
		report.User = s.User.Email
	}
	if d := c.app.Auth.LockoutRemaining(); d > 0 {
		report.LockoutRemaining = apierror.FormatCountdown(d)
	}
	return c.print(report)
}

func (c *commands) print(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseFilters turns field=value arguments into list query parameters.
func parseFilters(args []string) (url.Values, error) {
	if len(args) == 0 {
		return nil, nil
	}
	q := url.Values{}
	for _, arg := range args {
		field, value, ok := strings.Cut(arg, "=")
		if !ok || field == "" {
			return nil, usageError(fmt.Sprintf("filter %q is not field=value", arg))
		}
		q.Add(field, value)
	}
	return q, nil
}
