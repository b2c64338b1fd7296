// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

// Package validation checks request payloads and configuration with
// go-playground/validator before anything reaches the network.
//
// Field names in messages use the json tag of the field, so a failure on
//
//	type NewStudent struct {
//	    FirstName string `json:"first_name" validate:"required,max=100"`
//	}
//
// is reported against "first_name", the same key the backend uses in its own
// field errors. Forms can therefore render client-side and server-side
// failures identically.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single failed rule.
type FieldError struct {
	field   string
	tag     string
	param   string
	message string
}

// Field returns the json name of the failing field.
func (e *FieldError) Field() string { return e.field }

// Tag returns the rule that failed.
func (e *FieldError) Tag() string { return e.tag }

// Param returns the rule parameter ("100" for max=100).
func (e *FieldError) Param() string { return e.param }

// Error returns the human readable message.
func (e *FieldError) Error() string { return e.message }

// StructError collects the failures of one ValidateStruct call.
type StructError struct {
	errors []FieldError
}

// Errors returns the individual failures.
func (se *StructError) Errors() []FieldError {
	return se.errors
}

// Error joins every message.
func (se *StructError) Error() string {
	if len(se.errors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(se.errors))
	for i := range se.errors {
		msgs = append(msgs, se.errors[i].message)
	}
	return strings.Join(msgs, "; ")
}

// Fields groups messages by field, the shape the backend uses for its own
// validation responses.
func (se *StructError) Fields() map[string][]string {
	out := make(map[string][]string, len(se.errors))
	for i := range se.errors {
		fe := &se.errors[i]
		out[fe.field] = append(out[fe.field], fe.message)
	}
	return out
}

// FieldNames returns the failing fields in sorted order.
func (se *StructError) FieldNames() []string {
	fields := se.Fields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var academicYearPattern = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

// SchoolRoles are the account roles the backend issues.
var SchoolRoles = []string{"admin", "teacher", "student", "parent", "staff"}

// GetValidator returns the shared validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			switch name {
			case "-":
				return ""
			case "":
				if k := f.Tag.Get("koanf"); k != "" && k != "-" {
					return k
				}
				return f.Name
			}
			return name
		})

		// Registration only fails on an empty tag or nil func.
		_ = v.RegisterValidation("school_role", validateSchoolRole)
		_ = v.RegisterValidation("academic_year", validateAcademicYear)

		validate = v
	})
	return validate
}

func validateSchoolRole(fl validator.FieldLevel) bool {
	role := strings.ToLower(fl.Field().String())
	for _, r := range SchoolRoles {
		if r == role {
			return true
		}
	}
	return false
}

// validateAcademicYear accepts "2025-2026": two consecutive years.
func validateAcademicYear(fl validator.FieldLevel) bool {
	m := academicYearPattern.FindStringSubmatch(fl.Field().String())
	if m == nil {
		return false
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	return end == start+1
}

// ValidateStruct validates s. It returns nil or a *StructError.
func ValidateStruct(s any) *StructError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &StructError{errors: []FieldError{{field: "non_field_errors", tag: "invalid", message: err.Error()}}}
	}

	out := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		out[i] = FieldError{
			field:   fe.Field(),
			tag:     fe.Tag(),
			param:   fe.Param(),
			message: translate(fe),
		}
	}
	return &StructError{errors: out}
}

// Validate is ValidateStruct returning a plain error, for callers that only
// need to fail.
func Validate(s any) error {
	if se := ValidateStruct(s); se != nil {
		return se
	}
	return nil
}

var messages = map[string]string{
	"required":      "%s is required",
	"email":         "%s must be a valid email address",
	"url":           "%s must be a valid URL",
	"http_url":      "%s must be a valid http(s) URL",
	"datetime":      "%s must be a valid date",
	"school_role":   "%s must be a valid role",
	"academic_year": "%s must look like 2025-2026",
	"numeric":       "%s must be a number",
	"e164":          "%s must be a phone number in international format",
}

var messagesWithParam = map[string]string{
	"oneof":   "%s must be one of: %s",
	"gte":     "%s must be greater than or equal to %s",
	"lte":     "%s must be less than or equal to %s",
	"gt":      "%s must be greater than %s",
	"lt":      "%s must be less than %s",
	"eqfield": "%s must match %s",
}

func translate(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()

	if tmpl, ok := messages[tag]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := messagesWithParam[tag]; ok {
		if tag == "oneof" {
			param = strings.ReplaceAll(param, " ", ", ")
		}
		return fmt.Sprintf(tmpl, field, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
