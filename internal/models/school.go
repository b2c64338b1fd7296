// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package models

import "strconv"

// Entity is any record the backend identifies by a numeric id.
type Entity interface {
	EntityID() string
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

// Teacher is a member of teaching staff.
type Teacher struct {
	ID            int64  `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	Subject       string `json:"subject,omitempty"`
	Qualification string `json:"qualification,omitempty"`
	JoinedOn      string `json:"joined_on,omitempty"`
	IsActive      bool   `json:"is_active"`
}

// EntityID implements Entity.
func (t Teacher) EntityID() string { return formatID(t.ID) }

// TeacherInput creates or replaces a Teacher.
type TeacherInput struct {
	FirstName     string `json:"first_name" validate:"required,max=100"`
	LastName      string `json:"last_name" validate:"required,max=100"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone,omitempty" validate:"omitempty,e164"`
	Subject       string `json:"subject,omitempty" validate:"max=100"`
	Qualification string `json:"qualification,omitempty" validate:"max=200"`
	JoinedOn      string `json:"joined_on,omitempty" validate:"omitempty,datetime=2006-01-02"`
	IsActive      bool   `json:"is_active"`
}

// Student is an enrolled pupil.
type Student struct {
	ID            int64  `json:"id"`
	AdmissionNo   string `json:"admission_no"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email,omitempty"`
	Gender        string `json:"gender,omitempty"`
	DateOfBirth   string `json:"date_of_birth,omitempty"`
	ClassID       *int64 `json:"class_id,omitempty"`
	GuardianName  string `json:"guardian_name,omitempty"`
	GuardianPhone string `json:"guardian_phone,omitempty"`
}

// EntityID implements Entity.
func (s Student) EntityID() string { return formatID(s.ID) }

// StudentInput creates or replaces a Student.
type StudentInput struct {
	AdmissionNo   string `json:"admission_no" validate:"required,max=32"`
	FirstName     string `json:"first_name" validate:"required,max=100"`
	LastName      string `json:"last_name" validate:"required,max=100"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	Gender        string `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	DateOfBirth   string `json:"date_of_birth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ClassID       *int64 `json:"class_id,omitempty" validate:"omitempty,gt=0"`
	GuardianName  string `json:"guardian_name,omitempty" validate:"max=200"`
	GuardianPhone string `json:"guardian_phone,omitempty" validate:"omitempty,e164"`
}

// Class is a teaching group within an academic session.
type Class struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Section        string `json:"section,omitempty"`
	SessionID      int64  `json:"session_id"`
	ClassTeacherID *int64 `json:"class_teacher_id,omitempty"`
	Capacity       int    `json:"capacity,omitempty"`
}

// EntityID implements Entity.
func (c Class) EntityID() string { return formatID(c.ID) }

// ClassInput creates or replaces a Class.
type ClassInput struct {
	Name           string `json:"name" validate:"required,max=50"`
	Section        string `json:"section,omitempty" validate:"max=10"`
	SessionID      int64  `json:"session_id" validate:"required,gt=0"`
	ClassTeacherID *int64 `json:"class_teacher_id,omitempty" validate:"omitempty,gt=0"`
	Capacity       int    `json:"capacity,omitempty" validate:"gte=0,lte=500"`
}

// AcademicSession is a school year such as 2025-2026.
type AcademicSession struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	IsCurrent bool   `json:"is_current"`
}

// EntityID implements Entity.
func (s AcademicSession) EntityID() string { return formatID(s.ID) }

// AcademicSessionInput creates or replaces an AcademicSession.
type AcademicSessionInput struct {
	Name      string `json:"name" validate:"required,academic_year"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	IsCurrent bool   `json:"is_current"`
}

// ExamMark is one student's result in one subject of one exam.
type ExamMark struct {
	ID            int64   `json:"id"`
	StudentID     int64   `json:"student_id"`
	ClassID       int64   `json:"class_id"`
	SessionID     int64   `json:"session_id"`
	Subject       string  `json:"subject"`
	ExamType      string  `json:"exam_type"`
	MarksObtained float64 `json:"marks_obtained"`
	MaxMarks      float64 `json:"max_marks"`
}

// EntityID implements Entity.
func (m ExamMark) EntityID() string { return formatID(m.ID) }

// Percentage returns the score as 0-100, or 0 when MaxMarks is unset.
func (m ExamMark) Percentage() float64 {
	if m.MaxMarks <= 0 {
		return 0
	}
	return m.MarksObtained / m.MaxMarks * 100
}

// ExamMarkInput creates or replaces an ExamMark.
type ExamMarkInput struct {
	StudentID     int64   `json:"student_id" validate:"required,gt=0"`
	ClassID       int64   `json:"class_id" validate:"required,gt=0"`
	SessionID     int64   `json:"session_id" validate:"required,gt=0"`
	Subject       string  `json:"subject" validate:"required,max=100"`
	ExamType      string  `json:"exam_type" validate:"required,oneof=quiz midterm final assignment"`
	MarksObtained float64 `json:"marks_obtained" validate:"gte=0,ltefield=MaxMarks"`
	MaxMarks      float64 `json:"max_marks" validate:"required,gt=0"`
}

// Notice is a bulletin posted to an audience.
type Notice struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Audience    string `json:"audience"`
	Pinned      bool   `json:"pinned"`
	PublishedAt string `json:"published_at,omitempty"`
	ExpiresOn   string `json:"expires_on,omitempty"`
}

// EntityID implements Entity.
func (n Notice) EntityID() string { return formatID(n.ID) }

// NoticeInput creates or replaces a Notice.
type NoticeInput struct {
	Title     string `json:"title" validate:"required,max=200"`
	Body      string `json:"body" validate:"required"`
	Audience  string `json:"audience" validate:"required,oneof=all teacher student parent staff"`
	Pinned    bool   `json:"pinned"`
	ExpiresOn string `json:"expires_on,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Complaint statuses.
const (
	ComplaintOpen       = "open"
	ComplaintInProgress = "in_progress"
	ComplaintResolved   = "resolved"
	ComplaintClosed     = "closed"
)

// Complaint is a grievance raised by a user.
type Complaint struct {
	ID          int64  `json:"id"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Status      string `json:"status"`
	RaisedBy    int64  `json:"raised_by,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// EntityID implements Entity.
func (c Complaint) EntityID() string { return formatID(c.ID) }

// ComplaintInput creates or replaces a Complaint.
type ComplaintInput struct {
	Subject     string `json:"subject" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
	Status      string `json:"status,omitempty" validate:"omitempty,oneof=open in_progress resolved closed"`
}

// ComplaintResolution closes out a complaint.
type ComplaintResolution struct {
	Status     string `json:"status" validate:"required,oneof=resolved closed"`
	Resolution string `json:"resolution" validate:"required"`
}

// Application statuses.
const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// Application is an admission, leave or transfer request awaiting review.
type Application struct {
	ID            int64  `json:"id"`
	Kind          string `json:"kind"`
	ApplicantName string `json:"applicant_name"`
	Details       string `json:"details,omitempty"`
	Status        string `json:"status"`
	ReviewerNote  string `json:"reviewer_note,omitempty"`
	SubmittedAt   string `json:"submitted_at,omitempty"`
}

// EntityID implements Entity.
func (a Application) EntityID() string { return formatID(a.ID) }

// ApplicationInput creates or replaces an Application.
type ApplicationInput struct {
	Kind          string `json:"kind" validate:"required,oneof=admission leave transfer"`
	ApplicantName string `json:"applicant_name" validate:"required,max=200"`
	Details       string `json:"details,omitempty"`
}

// ApplicationReview records a decision on an Application.
type ApplicationReview struct {
	Status       string `json:"status" validate:"required,oneof=approved rejected"`
	ReviewerNote string `json:"reviewer_note,omitempty" validate:"max=500"`
}

// PaymentGateway is the school's configuration for an online payment
// provider. SecretKey is write-only; the backend never returns it.
type PaymentGateway struct {
	ID        int64  `json:"id"`
	Provider  string `json:"provider"`
	PublicKey string `json:"public_key"`
	Currency  string `json:"currency"`
	Mode      string `json:"mode"`
	IsActive  bool   `json:"is_active"`
}

// EntityID implements Entity.
func (g PaymentGateway) EntityID() string { return formatID(g.ID) }

// PaymentGatewayInput creates or replaces a PaymentGateway.
type PaymentGatewayInput struct {
	Provider  string `json:"provider" validate:"required,oneof=stripe paypal razorpay paystack flutterwave"`
	PublicKey string `json:"public_key" validate:"required"`
	SecretKey string `json:"secret_key,omitempty"`
	Currency  string `json:"currency" validate:"required,len=3,uppercase"`
	Mode      string `json:"mode" validate:"required,oneof=test live"`
	IsActive  bool   `json:"is_active"`
}

// Attendance statuses.
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceLate    = "late"
	AttendanceExcused = "excused"
)

// Attendance is one student's mark for one day.
type Attendance struct {
	ID        int64  `json:"id"`
	StudentID int64  `json:"student_id"`
	ClassID   int64  `json:"class_id"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	Remark    string `json:"remark,omitempty"`
}

// EntityID implements Entity.
func (a Attendance) EntityID() string { return formatID(a.ID) }

// AttendanceInput creates or replaces an Attendance mark.
type AttendanceInput struct {
	StudentID int64  `json:"student_id" validate:"required,gt=0"`
	ClassID   int64  `json:"class_id" validate:"required,gt=0"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Status    string `json:"status" validate:"required,oneof=present absent late excused"`
	Remark    string `json:"remark,omitempty" validate:"max=200"`
}

// AttendanceBatch marks a whole class for one day.
type AttendanceBatch struct {
	ClassID int64             `json:"class_id" validate:"required,gt=0"`
	Date    string            `json:"date" validate:"required,datetime=2006-01-02"`
	Marks   []AttendanceEntry `json:"marks" validate:"required,min=1,dive"`
}

// AttendanceEntry is one row of an AttendanceBatch.
type AttendanceEntry struct {
	StudentID int64  `json:"student_id" validate:"required,gt=0"`
	Status    string `json:"status" validate:"required,oneof=present absent late excused"`
	Remark    string `json:"remark,omitempty" validate:"max=200"`
}
