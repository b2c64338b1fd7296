// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

// Package school exposes the SchoolHub backend's entities as typed,
// cached resources: teachers, students, classes, academic sessions, exam
// marks, notices, complaints, applications, payment gateways and
// attendance.
//
// All reads share one cache.Cache; writes invalidate by tag so every list
// and detail view showing a changed entity refetches on its next read.
package school

import (
	"context"
	"net/http"

	"github.com/tomtom215/schoolhub/internal/cache"
	"github.com/tomtom215/schoolhub/internal/client"
	"github.com/tomtom215/schoolhub/internal/models"
)

// Cache tag types.
const (
	TagTeacher        = "teacher"
	TagStudent        = "student"
	TagClass          = "class"
	TagSession        = "session"
	TagExamMark       = "exam_mark"
	TagNotice         = "notice"
	TagComplaint      = "complaint"
	TagApplication    = "application"
	TagPaymentGateway = "payment_gateway"
	TagAttendance     = "attendance"
)

// Services groups every feature module.
type Services struct {
	Teachers        *Resource[models.Teacher, models.TeacherInput]
	Students        *Resource[models.Student, models.StudentInput]
	Classes         *Resource[models.Class, models.ClassInput]
	Sessions        *Resource[models.AcademicSession, models.AcademicSessionInput]
	ExamMarks       *Resource[models.ExamMark, models.ExamMarkInput]
	Notices         *Resource[models.Notice, models.NoticeInput]
	Complaints      *Complaints
	Applications    *Applications
	PaymentGateways *PaymentGateways
	Attendance      *Attendance
}

// NewServices builds all resources on api and c.
func NewServices(api Doer, c *cache.Cache) *Services {
	p := func(name string) string { return client.APIPrefix + "/" + name + "/" }
	return &Services{
		Teachers:        NewResource[models.Teacher, models.TeacherInput](api, c, TagTeacher, p("teachers")),
		Students:        NewResource[models.Student, models.StudentInput](api, c, TagStudent, p("students")),
		Classes:         NewResource[models.Class, models.ClassInput](api, c, TagClass, p("classes")),
		Sessions:        NewResource[models.AcademicSession, models.AcademicSessionInput](api, c, TagSession, p("sessions")),
		ExamMarks:       NewResource[models.ExamMark, models.ExamMarkInput](api, c, TagExamMark, p("exam-marks")),
		Notices:         NewResource[models.Notice, models.NoticeInput](api, c, TagNotice, p("notices")),
		Complaints:      &Complaints{NewResource[models.Complaint, models.ComplaintInput](api, c, TagComplaint, p("complaints"))},
		Applications:    &Applications{NewResource[models.Application, models.ApplicationInput](api, c, TagApplication, p("applications"))},
		PaymentGateways: &PaymentGateways{NewResource[models.PaymentGateway, models.PaymentGatewayInput](api, c, TagPaymentGateway, p("payment-gateways"))},
		Attendance:      &Attendance{NewResource[models.Attendance, models.AttendanceInput](api, c, TagAttendance, p("attendance"))},
	}
}

// Complaints adds resolution to the complaint resource.
type Complaints struct {
	*Resource[models.Complaint, models.ComplaintInput]
}

// Resolve closes complaint id with a resolution note.
func (r *Complaints) Resolve(ctx context.Context, id string, res models.ComplaintResolution) (models.Complaint, error) {
	return r.action(ctx, id, "resolve", res)
}

// Applications adds review to the application resource.
type Applications struct {
	*Resource[models.Application, models.ApplicationInput]
}

// Review approves or rejects application id.
func (r *Applications) Review(ctx context.Context, id string, review models.ApplicationReview) (models.Application, error) {
	return r.action(ctx, id, "review", review)
}

// PaymentGateways adds activation to the gateway resource.
type PaymentGateways struct {
	*Resource[models.PaymentGateway, models.PaymentGatewayInput]
}

type activation struct {
	IsActive bool `json:"is_active"`
}

// SetActive makes gateway id the active one, or deactivates it. Activating
// one gateway deactivates the others server-side, so every cached gateway
// is invalidated, including ones only read through Get or a filtered list.
func (r *PaymentGateways) SetActive(ctx context.Context, id string, active bool) (models.PaymentGateway, error) {
	gw, err := r.action(ctx, id, "activate", activation{IsActive: active})
	if err != nil {
		return gw, err
	}
	if active {
		r.cache.InvalidateType(r.tag)
	}
	return gw, nil
}

// Attendance adds bulk marking to the attendance resource.
type Attendance struct {
	*Resource[models.Attendance, models.AttendanceInput]
}

// MarkBulk records a whole class for one day and invalidates the
// collection.
func (r *Attendance) MarkBulk(ctx context.Context, batch models.AttendanceBatch) ([]models.Attendance, error) {
	if err := validate(batch); err != nil {
		return nil, err
	}
	var out []models.Attendance
	req := client.Request{Method: http.MethodPost, Path: r.path + "bulk/", Body: batch}
	if err := r.api.DoJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	tags := []cache.Tag{cache.ListTag(r.tag)}
	for _, a := range out {
		tags = append(tags, cache.ItemTag(r.tag, a.EntityID()))
	}
	r.cache.Invalidate(tags...)
	return out, nil
}
