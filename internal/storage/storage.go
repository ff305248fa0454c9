// Package storage defines the Storage interface, the contract any database
// backend must satisfy to serve the students and marks collections.
//
// Handlers depend only on this interface. The sqlite package implements it
// with hand-written SQL over database/sql; the gormdb package implements it
// through gorm for postgres, mysql and sqlite. Both run the same
// conformance suite in storagetest.
package storage

import (
	"context"
	"errors"

	"github.com/aanand-mishra/students-api/internal/query"
	"github.com/aanand-mishra/students-api/internal/types"
)

var (
	// ErrNotFound means the addressed record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict means a unique constraint (student email) was violated.
	ErrConflict = errors.New("email already taken")

	// ErrStudentNotFound means a mark referenced a student that does not exist.
	ErrStudentNotFound = errors.New("student not found")
)

// Storage is the database contract.
//
// List methods run their count and page queries inside one read
// transaction so the total always describes the returned page.
// Deleting a student also deletes every mark it owns.
type Storage interface {
	CreateStudent(ctx context.Context, in types.StudentInput) (types.Student, error)
	ListStudents(ctx context.Context, p query.Params) (types.Page[types.Student], error)
	GetStudentByID(ctx context.Context, id string) (types.Student, error)
	UpdateStudentByID(ctx context.Context, id string, in types.StudentInput) (types.Student, error)
	DeleteStudentByID(ctx context.Context, id string) error

	CreateMark(ctx context.Context, in types.MarkInput) (types.Mark, error)
	ListMarks(ctx context.Context, p query.Params) (types.Page[types.Mark], error)
	GetMarkByID(ctx context.Context, id string) (types.Mark, error)
	UpdateMarkByID(ctx context.Context, id string, in types.MarkInput) (types.Mark, error)
	DeleteMarkByID(ctx context.Context, id string) error

	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error
	Close() error
}
