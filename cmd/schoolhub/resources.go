// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package main

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/tomtom215/schoolhub/internal/app"
	"github.com/tomtom215/schoolhub/internal/models"
	"github.com/tomtom215/schoolhub/internal/school"
)

// resource adapts a typed school.Resource to untyped CLI output.
type resource struct {
	list func(ctx context.Context, a *app.App, q url.Values) (any, error)
	get  func(ctx context.Context, a *app.App, id string) (any, error)
}

func adapt[T models.Entity, In any](pick func(*school.Services) *school.Resource[T, In]) resource {
	return resource{
		list: func(ctx context.Context, a *app.App, q url.Values) (any, error) {
			return pick(a.School).List(ctx, q)
		},
		get: func(ctx context.Context, a *app.App, id string) (any, error) {
			return pick(a.School).Get(ctx, id)
		},
	}
}

var resources = map[string]resource{
	"teachers": adapt(func(s *school.Services) *school.Resource[models.Teacher, models.TeacherInput] { return s.Teachers }),
	"students": adapt(func(s *school.Services) *school.Resource[models.Student, models.StudentInput] { return s.Students }),
	"classes":  adapt(func(s *school.Services) *school.Resource[models.Class, models.ClassInput] { return s.Classes }),
	"sessions": adapt(func(s *school.Services) *school.Resource[models.AcademicSession, models.AcademicSessionInput] {
		return s.Sessions
	}),
	"exam-marks": adapt(func(s *school.Services) *school.Resource[models.ExamMark, models.ExamMarkInput] { return s.ExamMarks }),
	"notices":    adapt(func(s *school.Services) *school.Resource[models.Notice, models.NoticeInput] { return s.Notices }),
	"complaints": adapt(func(s *school.Services) *school.Resource[models.Complaint, models.ComplaintInput] {
		return s.Complaints.Resource
	}),
	"applications": adapt(func(s *school.Services) *school.Resource[models.Application, models.ApplicationInput] {
		return s.Applications.Resource
	}),
	"payment-gateways": adapt(func(s *school.Services) *school.Resource[models.PaymentGateway, models.PaymentGatewayInput] {
		return s.PaymentGateways.Resource
	}),
	"attendance": adapt(func(s *school.Services) *school.Resource[models.Attendance, models.AttendanceInput] {
		return s.Attendance.Resource
	}),
}

// lookupResource accepts the path name or its underscore spelling.
func lookupResource(name string) (resource, bool) {
	r, ok := resources[strings.ReplaceAll(strings.ToLower(name), "_", "-")]
	return r, ok
}

func resourceNames() string {
	names := make([]string, 0, len(resources))
	for name := range resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
