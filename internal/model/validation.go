package model

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var studentNumberPattern = regexp.MustCompile(`^STU[0-9]{3,6}$`)

// FieldError describes one failed constraint.
type FieldError struct {
	Field         string `json:"field"`
	Message       string `json:"message"`
	RejectedValue string `json:"rejectedValue,omitempty"`
}

// ValidationError carries every failing field of one request.
type ValidationError struct {
	Errors []FieldError
}

// Add records a failure for field. rejected may be nil.
func (v *ValidationError) Add(field, message string, rejected any) {
	fe := FieldError{Field: field, Message: message}
	if rejected != nil {
		fe.RejectedValue = fmt.Sprint(rejected)
	}
	v.Errors = append(v.Errors, fe)
}

// OrNil returns v as an error, or nil when nothing failed.
func (v *ValidationError) OrNil() error {
	if v == nil || len(v.Errors) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Errors))
	for _, fe := range v.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// CreateRequest is the payload for a new student. Pointers distinguish a
// missing field from a zero value.
type CreateRequest struct {
	StudentNumber string   `json:"studentNumber"`
	Name          string   `json:"name"`
	Address       *Address `json:"address"`
	CGPA          *float64 `json:"cgpa"`
	Backlogs      *int     `json:"backlogs"`
}

// Validate checks every field and reports all failures together.
func (r CreateRequest) Validate() error {
	v := &ValidationError{}

	switch {
	case isBlank(r.StudentNumber):
		v.Add("studentNumber", "Student number is required", r.StudentNumber)
	case !studentNumberPattern.MatchString(r.StudentNumber):
		v.Add("studentNumber", "Student number must match pattern STU followed by 3-6 digits", r.StudentNumber)
	}

	if isBlank(r.Name) {
		v.Add("name", "Name is required", r.Name)
	} else {
		checkName(v, r.Name)
	}

	if r.Address == nil {
		v.Add("address", "Address is required", nil)
	} else {
		checkAddress(v, *r.Address)
	}

	if r.CGPA == nil {
		v.Add("cgpa", "CGPA is required", nil)
	} else {
		checkCGPA(v, *r.CGPA)
	}

	if r.Backlogs == nil {
		v.Add("backlogs", "Backlogs field is required", nil)
	} else {
		checkBacklogs(v, *r.Backlogs)
	}

	return v.OrNil()
}

// Student builds the record described by a validated request. Timestamps are
// left for the caller to stamp.
func (r CreateRequest) Student() Student {
	s := Student{
		StudentNumber: r.StudentNumber,
		Name:          r.Name,
	}
	if r.Address != nil {
		s.Address = *r.Address
	}
	if r.CGPA != nil {
		s.CGPA = *r.CGPA
	}
	if r.Backlogs != nil {
		s.Backlogs = *r.Backlogs
	}
	return s
}

// UpdateRequest changes only the fields that are present.
type UpdateRequest struct {
	Name     Optional[string]  `json:"name"`
	Address  Optional[Address] `json:"address"`
	CGPA     Optional[float64] `json:"cgpa"`
	Backlogs Optional[int]     `json:"backlogs"`
}

// Validate applies the create-time bounds to present fields. A field sent as
// null is rejected because no student field can be cleared.
func (r UpdateRequest) Validate() error {
	v := &ValidationError{}

	if r.Name.Null {
		v.Add("name", "Name cannot be null", nil)
	} else if r.Name.Set {
		checkName(v, r.Name.Value)
	}

	if r.Address.Null {
		v.Add("address", "Address cannot be null", nil)
	} else if r.Address.Set {
		checkAddress(v, r.Address.Value)
	}

	if r.CGPA.Null {
		v.Add("cgpa", "CGPA cannot be null", nil)
	} else if r.CGPA.Set {
		checkCGPA(v, r.CGPA.Value)
	}

	if r.Backlogs.Null {
		v.Add("backlogs", "Backlogs cannot be null", nil)
	} else if r.Backlogs.Set {
		checkBacklogs(v, r.Backlogs.Value)
	}

	return v.OrNil()
}

// Apply overwrites the present fields of s. The student number and
// timestamps are never touched.
func (r UpdateRequest) Apply(s *Student) {
	if r.Name.Present() {
		s.Name = r.Name.Value
	}
	if r.Address.Present() {
		s.Address = r.Address.Value
	}
	if r.CGPA.Present() {
		s.CGPA = r.CGPA.Value
	}
	if r.Backlogs.Present() {
		s.Backlogs = r.Backlogs.Value
	}
}

func checkName(v *ValidationError, name string) {
	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		v.Add("name", "Name must be between 2 and 100 characters", name)
	}
}

func checkAddress(v *ValidationError, a Address) {
	checkLength(v, "address.street", "Street", a.Street, 3, 200)
	checkLength(v, "address.city", "City", a.City, 2, 100)
	checkLength(v, "address.state", "State", a.State, 2, 100)
	checkLength(v, "address.country", "Country", a.Country, 2, 100)
}

func checkLength(v *ValidationError, field, label, value string, min, max int) {
	if isBlank(value) {
		v.Add(field, label+" is required", value)
		return
	}
	if n := utf8.RuneCountInString(value); n < min || n > max {
		v.Add(field, fmt.Sprintf("%s must be between %d and %d characters", label, min, max), value)
	}
}

func checkCGPA(v *ValidationError, cgpa float64) {
	switch {
	case cgpa < 0:
		v.Add("cgpa", "CGPA must be at least 0.0", cgpa)
	case cgpa > 10:
		v.Add("cgpa", "CGPA must not exceed 10.0", cgpa)
	}
}

func checkBacklogs(v *ValidationError, backlogs int) {
	if backlogs < 0 {
		v.Add("backlogs", "Backlogs cannot be negative", backlogs)
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
