// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package school

import (
	"context"
	"errors"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/schoolhub/internal/apierror"
	"github.com/tomtom215/schoolhub/internal/cache"
	"github.com/tomtom215/schoolhub/internal/client"
	"github.com/tomtom215/schoolhub/internal/mockbackend"
	"github.com/tomtom215/schoolhub/internal/models"
)

const (
	testEmail    = "office@school.test"
	testPassword = "correct-horse"
)

// staticAuth serves one access token and never refreshes.
type staticAuth struct{ token string }

func (a staticAuth) AccessToken() string { return a.token }

func (a staticAuth) RefreshIfStale(context.Context, string) (string, error) {
	return "", errors.New("refresh not available")
}

type fixture struct {
	backend *mockbackend.Server
	cache   *cache.Cache
	svc     *Services
}

func newFixture(t *testing.T, opts mockbackend.Options) *fixture {
	t.Helper()
	backend := mockbackend.New(opts)
	backend.AddAccount(models.UserRecord{ID: 1, Email: testEmail, Role: "admin"}, testPassword)
	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)

	api, err := client.New(client.Options{BaseURL: ts.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	resp, err := client.NewAuthAPI(api).Login(context.Background(), models.Credentials{Email: testEmail, Password: testPassword})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	api.SetAuthenticator(staticAuth{token: resp.Access})

	c := cache.New(cache.Options{})
	return &fixture{backend: backend, cache: c, svc: NewServices(api, c)}
}

// requestsDuring returns how many requests fn sent to the backend.
func (f *fixture) requestsDuring(fn func()) int64 {
	before := f.backend.Requests()
	fn()
	return f.backend.Requests() - before
}

func TestList(t *testing.T) {
	for _, paginate := range []bool{false, true} {
		f := newFixture(t, mockbackend.Options{Paginate: paginate})
		_ = f.backend.Seed("teachers",
			models.Teacher{FirstName: "Ada", LastName: "Lovelace", Email: "ada@school.test"},
			models.Teacher{FirstName: "Alan", LastName: "Turing", Email: "alan@school.test"},
		)
		ctx := context.Background()

		var teachers []models.Teacher
		n := f.requestsDuring(func() {
			var err error
			teachers, err = f.svc.Teachers.List(ctx, nil)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
		})
		if n != 1 {
			t.Errorf("paginate=%v: first List sent %d requests, want 1", paginate, n)
		}
		if len(teachers) != 2 || teachers[1].LastName != "Turing" {
			t.Errorf("paginate=%v: teachers = %+v", paginate, teachers)
		}

		if n := f.requestsDuring(func() { _, _ = f.svc.Teachers.List(ctx, nil) }); n != 0 {
			t.Errorf("paginate=%v: cached List sent %d requests", paginate, n)
		}
	}
}

func TestList_FiltersAreSeparateEntries(t *testing.T) {
	f := newFixture(t, mockbackend.Options{})
	_ = f.backend.Seed("students",
		models.Student{AdmissionNo: "S1", FirstName: "Ada", LastName: "L", Gender: "female"},
		models.Student{AdmissionNo: "S2", FirstName: "Alan", LastName: "T", Gender: "male"},
	)
	ctx := context.Background()

	all, err := f.svc.Students.List(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	girls, err := f.svc.Students.List(ctx, url.Values{"gender": {"female"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || len(girls) != 1 || girls[0].FirstName != "Ada" {
		t.Errorf("all = %d, filtered = %+v", len(all), girls)
	}
}

func TestCreate_InvalidatesList(t *testing.T) {
	f := newFixture(t, mockbackend.Options{})
	ctx := context.Background()

	if _, err := f.svc.Notices.List(ctx, nil); err != nil {
		t.Fatal(err)
	}
	created, err := f.svc.Notices.Create(ctx, models.NoticeInput{Title: "Sports day", Body: "Friday 10am", Audience: "all"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == 0 {
		t.Errorf("created id not assigned: %+v", created)
	}

	notices, err := f.svc.Notices.List(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(notices) != 1 || notices[0].Title != "Sports day" {
		t.Errorf("notices after create = %+v", notices)
	}
}

func TestUpdate_InvalidatesItemAndList(t *testing.T) {
	f := newFixture(t, mockbackend.Options{})
	_ = f.backend.Seed("classes", models.Class{ID: 4, Name: "Grade 4", SessionID: 1})
	ctx := context.Background()

	if _, err := f.svc.Classes.Get(ctx, "4"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Classes.List(ctx, nil); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Classes.Update(ctx, "4", models.ClassInput{Name: "Grade 4B", SessionID: 1, Capacity: 30}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	var got models.Class
	var list []models.Class
	n := f.requestsDuring(func() {
		got, _ = f.svc.Classes.Get(ctx, "4")
		list, _ = f.svc.Classes.List(ctx, nil)
	})
	if n != 2 {
		t.Errorf("reads after update sent %d requests, want 2", n)
	}
	if got.Name != "Grade 4B" || len(list) != 1 || list[0].Capacity != 30 {
		t.Errorf("get = %+v, list = %+v", got, list)
	}
}

func TestUpdate_LeavesOtherResourcesCached(t *testing.T) {
	f := newFixture(t, mockbackend.Options{})
	_ = f.backend.Seed("classes", models.Class{ID: 1, Name: "Grade 1", SessionID: 1})
	_ = f.backend.Seed("teachers", models.Teacher{ID: 1, FirstName: "Ada", LastName: "L", Email: "ada@school.test"})
	ctx := context.Background()

	_, _ = f.svc.Teachers.List(ctx, nil)
	if _, err := f.svc.Classes.Update(ctx, "1", models.ClassInput{Name: "Grade 1A", SessionID: 1}); err != nil {
		t.Fatal(err)
	}
	if n := f.requestsDuring(func() { _, _ = f.svc.Teachers.List(ctx, nil) }); n != 0 {
		t.Errorf("teacher list refetched after class update (%d requests)", n)
	}
}

func TestDelete_InvalidatesItemAndList(t *testing.T) {
	f := newFixture(t, mockbackend.Options{})
	_ = f.backend.Seed("sessions",
		models.AcademicSession{ID: 1, Name: "2025-2026", StartDate: "2025-09-01", EndDate: "2026-06-30"},
		models.AcademicSession{ID: 2, Name: "2026-2027", StartDate: "2026-09-01", EndDate: "2027-06-30"},
	)
	ctx := context.Background()

	if _, err := f.svc.Sessions.List(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Sessions.Delete(ctx, "1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	sessions, err := f.svc.Sessions.List(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].ID != 2 {
		t.Errorf("sessions = %+v", sessions)
	}

	_, err = f.svc.Sessions.Get(ctx, "1")
	if apierror.KindOf(err) != apierror.KindClient {
		t.Errorf("Get(deleted) kind = %v, want client (err %v)", apierror.KindOf(err), err)
	}
}

func TestValidation_NeverReachesNetwork(t *testing.T) {
	f := newFixture(t, mockbackend.Options{})
	ctx := context.Background()

	tests := []struct {
		name  string
		call  func() error
		field string
	}{
		{"teacher without email", func() error {
			_, err := f.svc.Teachers.Create(ctx, models.TeacherInput{FirstName: "Ada", LastName: "L"})
			return err
		}, "email"},
		{"mark above maximum", func() error {
			_, err := f.svc.ExamMarks.Create(ctx, models.ExamMarkInput{
				StudentID: 1, ClassID: 1, SessionID: 1, Subject: "Maths", ExamType: "final",
				MarksObtained: 120, MaxMarks: 100,
			})
			return err
		}, "marks_obtained"},
		{"bad gateway currency", func() error {
			_, err := f.svc.PaymentGateways.Update(ctx, "1", models.PaymentGatewayInput{
				Provider: "stripe", PublicKey: "pk", Currency: "us", Mode: "test",
			})
			return err
		}, "currency"},
		{"empty attendance batch", func() error {
			_, err := f.svc.Attendance.MarkBulk(ctx, models.AttendanceBatch{ClassID: 1, Date: "2026-09-01"})
			return err
		}, "marks"},
		{"review with unknown status", func() error {
			_, err := f.svc.Applications.Review(ctx, "1", models.ApplicationReview{Status: "maybe"})
			return err
		}, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if n := f.requestsDuring(func() { err = tt.call() }); n != 0 {
				t.Errorf("sent %d requests", n)
			}
			var apiErr *apierror.Error
			if !errors.As(err, &apiErr) || apiErr.Kind != apierror.KindValidation {
				t.Fatalf("err = %v, want validation error", err)
			}
			if apiErr.Field(tt.field) == "" {
				t.Errorf("no message for %q in %v", tt.field, apiErr.Fields)
			}
		})
	}
}

func TestFailedRefetch_KeepsData(t *testing.T) {
	f := newFixture(t, mockbackend.Options{})
	_ = f.backend.Seed("teachers", models.Teacher{ID: 1, FirstName: "Ada", LastName: "L", Email: "ada@school.test"})
	ctx := context.Background()

	if _, err := f.svc.Teachers.List(ctx, nil); err != nil {
		t.Fatal(err)
	}
	f.cache.Invalidate(cache.ListTag(TagTeacher))
	f.backend.FailNext("/api/v1/teachers/", 1)

	teachers, err := f.svc.Teachers.List(ctx, nil)
	if apierror.KindOf(err) != apierror.KindServer {
		t.Errorf("err = %v, want server error", err)
	}
	if len(teachers) != 1 || teachers[0].FirstName != "Ada" {
		t.Errorf("teachers = %+v, want last good list", teachers)
	}

	teachers, err = f.svc.Teachers.List(ctx, nil)
	if err != nil || len(teachers) != 1 {
		t.Errorf("retry: %v, %+v", err, teachers)
	}
}

func TestWatchList_NotifiesOnWrite(t *testing.T) {
	f := newFixture(t, mockbackend.Options{})
	ctx := context.Background()

	view := f.svc.Complaints.WatchList(nil)
	defer view.Close()

	snap := view.Read(ctx)
	if !snap.HasData || len(snap.Data) != 0 {
		t.Fatalf("initial snapshot = %+v", snap)
	}
	drainChanges(view.Changes())

	if _, err := f.svc.Complaints.Create(ctx, models.ComplaintInput{Subject: "Broken tap", Description: "Block B"}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-view.Changes():
	case <-time.After(time.Second):
		t.Fatal("no change notification after create")
	}

	snap = view.Read(ctx)
	if len(snap.Data) != 1 || snap.Data[0].Status != "open" || snap.Stale {
		t.Errorf("snapshot after create = %+v", snap)
	}
}

func TestWatch_Item(t *testing.T) {
	f := newFixture(t, mockbackend.Options{})
	_ = f.backend.Seed("notices", models.Notice{ID: 3, Title: "Exams", Body: "Week 12", Audience: "student"})
	ctx := context.Background()

	view := f.svc.Notices.Watch("3")
	defer view.Close()
	if snap := view.Read(ctx); snap.Data.Title != "Exams" {
		t.Fatalf("Read() = %+v", snap)
	}

	if _, err := f.svc.Notices.Update(ctx, "3", models.NoticeInput{Title: "Exams moved", Body: "Week 13", Audience: "student"}); err != nil {
		t.Fatal(err)
	}
	if snap := view.Refetch(ctx); snap.Data.Title != "Exams moved" {
		t.Errorf("Refetch() = %+v", snap)
	}
}

func TestComplaintsResolve(t *testing.T) {
	f := newFixture(t, mockbackend.Options{})
	_ = f.backend.Seed("complaints", models.Complaint{ID: 5, Subject: "Bus late", Description: "Route 3", Status: "open"})
	ctx := context.Background()

	if _, err := f.svc.Complaints.Get(ctx, "5"); err != nil {
		t.Fatal(err)
	}
	resolved, err := f.svc.Complaints.Resolve(ctx, "5", models.ComplaintResolution{Status: "resolved", Resolution: "Driver briefed"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.Status != "resolved" {
		t.Errorf("Resolve() = %+v", resolved)
	}
	got, _ := f.svc.Complaints.Get(ctx, "5")
	if got.Resolution != "Driver briefed" {
		t.Errorf("Get() after resolve = %+v", got)
	}
}

func TestApplicationsReview(t *testing.T) {
	f := newFixture(t, mockbackend.Options{})
	ctx := context.Background()

	app, err := f.svc.Applications.Create(ctx, models.ApplicationInput{Kind: "leave", ApplicantName: "Ada L"})
	if err != nil {
		t.Fatal(err)
	}
	if app.Status != "pending" {
		t.Errorf("new application status = %q", app.Status)
	}
	pending, _ := f.svc.Applications.List(ctx, url.Values{"status": {"pending"}})
	if len(pending) != 1 {
		t.Fatalf("pending = %+v", pending)
	}

	if _, err := f.svc.Applications.Review(ctx, app.EntityID(), models.ApplicationReview{Status: "approved"}); err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	pending, _ = f.svc.Applications.List(ctx, url.Values{"status": {"pending"}})
	if len(pending) != 0 {
		t.Errorf("pending after review = %+v", pending)
	}
}

func TestPaymentGatewaysSetActive(t *testing.T) {
	tests := []struct {
		name string
		warm func(ctx context.Context, f *fixture) error
	}{
		{"list and item cached", func(ctx context.Context, f *fixture) error {
			if _, err := f.svc.PaymentGateways.List(ctx, nil); err != nil {
				return err
			}
			_, err := f.svc.PaymentGateways.Get(ctx, "1")
			return err
		}},
		{"item only", func(ctx context.Context, f *fixture) error {
			_, err := f.svc.PaymentGateways.Get(ctx, "1")
			return err
		}},
		{"filtered list only", func(ctx context.Context, f *fixture) error {
			_, err := f.svc.PaymentGateways.List(ctx, url.Values{"currency": {"USD"}})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, mockbackend.Options{})
			_ = f.backend.Seed("payment-gateways",
				models.PaymentGateway{ID: 1, Provider: "stripe", Currency: "USD", Mode: "live", IsActive: true},
				models.PaymentGateway{ID: 2, Provider: "paystack", Currency: "NGN", Mode: "live"},
			)
			ctx := context.Background()

			if err := tt.warm(ctx, f); err != nil {
				t.Fatal(err)
			}
			if _, err := f.svc.PaymentGateways.SetActive(ctx, "2", true); err != nil {
				t.Fatalf("SetActive() error = %v", err)
			}

			first, err := f.svc.PaymentGateways.Get(ctx, "1")
			if err != nil {
				t.Fatal(err)
			}
			if first.IsActive {
				t.Error("gateway 1 still active in cache after activating gateway 2")
			}
			usd, _ := f.svc.PaymentGateways.List(ctx, url.Values{"currency": {"USD"}})
			if len(usd) != 1 || usd[0].IsActive {
				t.Errorf("filtered list = %+v, want gateway 1 inactive", usd)
			}
			list, _ := f.svc.PaymentGateways.List(ctx, nil)
			active := 0
			for _, g := range list {
				if g.IsActive {
					active++
				}
			}
			if active != 1 {
				t.Errorf("active gateways = %d, want 1", active)
			}
		})
	}
}

func TestAttendanceMarkBulk(t *testing.T) {
	f := newFixture(t, mockbackend.Options{})
	ctx := context.Background()

	if _, err := f.svc.Attendance.List(ctx, url.Values{"class_id": {"3"}}); err != nil {
		t.Fatal(err)
	}
	out, err := f.svc.Attendance.MarkBulk(ctx, models.AttendanceBatch{
		ClassID: 3,
		Date:    "2026-09-01",
		Marks: []models.AttendanceEntry{
			{StudentID: 10, Status: "present"},
			{StudentID: 11, Status: "late", Remark: "bus"},
		},
	})
	if err != nil {
		t.Fatalf("MarkBulk() error = %v", err)
	}
	if len(out) != 2 || out[0].ID == 0 {
		t.Fatalf("MarkBulk() = %+v", out)
	}

	list, _ := f.svc.Attendance.List(ctx, url.Values{"class_id": {"3"}})
	if len(list) != 2 {
		t.Errorf("class attendance = %+v", list)
	}
}

func TestDecodeList(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"array", `[{"id":1},{"id":2}]`, 2, false},
		{"page", `{"count":1,"next":null,"previous":null,"results":[{"id":1}]}`, 1, false},
		{"page without results", `{"count":0}`, 0, false},
		{"null", `null`, 0, false},
		{"empty", ``, 0, false},
		{"garbage", `"nope"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := decodeList[models.Teacher](json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (items == nil || len(items) != tt.want) {
				t.Errorf("items = %#v, want %d", items, tt.want)
			}
		})
	}
}

func drainChanges(ch <-chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
