// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package mockbackend

import (
	"fmt"

	"github.com/tomtom215/schoolhub/internal/models"
)

// Demo account credentials installed by SeedDemo.
const (
	DemoEmail    = "admin@schoolhub.test"
	DemoPassword = "schoolhub-demo"
)

func ptr[T any](v T) *T { return &v }

// SeedDemo installs a demo administrator and a small school: one session,
// two classes with teachers and students, and a few records in every other
// collection.
func (s *Server) SeedDemo() error {
	s.AddAccount(models.UserRecord{
		ID:         1,
		Username:   "admin",
		Email:      DemoEmail,
		Role:       "admin",
		FirstName:  "Demo",
		LastName:   "Administrator",
		IsVerified: true,
	}, DemoPassword)

	seeds := []struct {
		collection string
		items      []any
	}{
		{"sessions", []any{
			models.AcademicSession{ID: 1, Name: "2026-2027", StartDate: "2026-09-01", EndDate: "2027-06-30", IsCurrent: true},
		}},
		{"teachers", []any{
			models.Teacher{ID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@schoolhub.test", Subject: "Mathematics", IsActive: true},
			models.Teacher{ID: 2, FirstName: "Rosalind", LastName: "Franklin", Email: "rosalind@schoolhub.test", Subject: "Chemistry", IsActive: true},
		}},
		{"classes", []any{
			models.Class{ID: 1, Name: "Grade 7", Section: "A", SessionID: 1, ClassTeacherID: ptr(int64(1)), Capacity: 30},
			models.Class{ID: 2, Name: "Grade 8", Section: "A", SessionID: 1, ClassTeacherID: ptr(int64(2)), Capacity: 30},
		}},
		{"notices", []any{
			models.Notice{ID: 1, Title: "Welcome back", Body: "Term starts on 1 September.", Audience: "all", Pinned: true, PublishedAt: "2026-08-25T09:00:00Z"},
		}},
		{"complaints", []any{
			models.Complaint{ID: 1, Subject: "Library hours", Description: "Please open on Saturdays.", Status: "open", RaisedBy: 1},
		}},
		{"applications", []any{
			models.Application{ID: 1, Kind: "admission", ApplicantName: "Charles Babbage", Status: "pending"},
		}},
		{"payment-gateways", []any{
			models.PaymentGateway{ID: 1, Provider: "stripe", PublicKey: "pk_test_demo", Currency: "USD", Mode: "test", IsActive: true},
			models.PaymentGateway{ID: 2, Provider: "paystack", PublicKey: "pk_test_demo2", Currency: "NGN", Mode: "test"},
		}},
	}

	var students []any
	for i := int64(1); i <= 6; i++ {
		students = append(students, models.Student{
			ID:          i,
			AdmissionNo: fmt.Sprintf("ADM-%04d", i),
			FirstName:   fmt.Sprintf("Student%d", i),
			LastName:    "Demo",
			ClassID:     ptr(1 + (i-1)%2),
		})
	}
	seeds = append(seeds, struct {
		collection string
		items      []any
	}{"students", students})

	for _, seed := range seeds {
		if err := s.Seed(seed.collection, seed.items...); err != nil {
			return fmt.Errorf("seed %s: %w", seed.collection, err)
		}
	}
	return nil
}
