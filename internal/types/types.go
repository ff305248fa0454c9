// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles:
// handlers, storage, the view and the client all import types without
// depending on each other.
package types

import (
	"strings"
	"time"
)

// StudentInfo holds the fields of a student record without its marks.
// It is what a mark carries as its owning student.
type StudentInfo struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	DateOfBirth string    `json:"dateOfBirth"`
	Email       string    `json:"email"`
	Age         int       `json:"age"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Student represents a student record together with the marks it owns.
//
// Marks is always encoded as a JSON array; storage implementations return
// an empty slice rather than nil when a student has no marks.
type Student struct {
	StudentInfo
	Marks []Mark `json:"marks"`
}

// Mark is a single subject score owned by exactly one student.
// Student is populated when the mark is read on its own (GetByID, List).
type Mark struct {
	ID        string       `json:"id"`
	Subject   string       `json:"subject"`
	Marks     int          `json:"marks"`
	StudentID string       `json:"studentId"`
	Student   *StudentInfo `json:"student,omitempty"`
}

// StudentInput is the request body for creating or replacing a student.
//
// validate:"..." tags are checked by go-playground/validator. PUT uses the
// same rules as POST: an update replaces the whole record.
type StudentInput struct {
	FirstName   string `json:"firstName"   validate:"required,max=100"`
	LastName    string `json:"lastName"    validate:"max=100"`
	DateOfBirth string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Email       string `json:"email"       validate:"required,email,max=255"`
	Age         int    `json:"age"         validate:"required,gte=1,lte=150"`
}

// Normalize trims surrounding whitespace from the text fields.
func (in StudentInput) Normalize() StudentInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	in.Email = strings.TrimSpace(in.Email)
	return in
}

// MarkInput is the request body for creating or replacing a mark.
// Marks is a pointer so that a score of 0 passes the required check.
type MarkInput struct {
	Subject   string `json:"subject"   validate:"required,max=100"`
	Marks     *int   `json:"marks"     validate:"required,gte=0"`
	StudentID string `json:"studentId" validate:"required"`
}

// Normalize trims surrounding whitespace from the text fields.
func (in MarkInput) Normalize() MarkInput {
	in.Subject = strings.TrimSpace(in.Subject)
	in.StudentID = strings.TrimSpace(in.StudentID)
	return in
}

// Score returns the submitted score, or 0 when none was given.
func (in MarkInput) Score() int {
	if in.Marks == nil {
		return 0
	}
	return *in.Marks
}

// Page is one bounded slice of a filtered collection plus the total number
// of records matching the same filter.
type Page[T any] struct {
	Items []T
	Total int64
}
