// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package and
// hand-written SQL.
//
// Importing go-sqlite3 registers the "sqlite3" driver with database/sql;
// its Error type is also used to recognise constraint violations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/aanand-mishra/students-api/internal/config"
	"github.com/aanand-mishra/students-api/internal/query"
	"github.com/aanand-mishra/students-api/internal/storage"
	"github.com/aanand-mishra/students-api/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS students (
	id            TEXT    PRIMARY KEY,
	first_name    TEXT    NOT NULL,
	last_name     TEXT    NOT NULL DEFAULT '',
	date_of_birth TEXT    NOT NULL DEFAULT '',
	email         TEXT    NOT NULL UNIQUE,
	age           INTEGER NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_students_created_at ON students (created_at);

CREATE TABLE IF NOT EXISTS marks (
	id         TEXT    PRIMARY KEY,
	subject    TEXT    NOT NULL,
	marks      INTEGER NOT NULL,
	student_id TEXT    NOT NULL REFERENCES students (id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_marks_student_id ON marks (student_id);
`

const (
	studentColumns = "id, first_name, last_name, date_of_birth, email, age, created_at"
	studentFilter  = `(LOWER(first_name) LIKE ? ESCAPE '!' OR LOWER(last_name) LIKE ? ESCAPE '!' OR LOWER(email) LIKE ? ESCAPE '!')`
	markFilter     = `LOWER(m.subject) LIKE ? ESCAPE '!'`
)

// DriverName is the go-sqlite3 driver registered by this package. Its
// connections replace SQLite's ASCII-only LOWER with strings.ToLower, so
// LOWER(column) folds case the same way query.Params.Pattern does.
const DriverName = "sqlite3_unicode"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", strings.ToLower, true)
		},
	})
}

// SQLite is the concrete implementation of storage.Storage.
// Its *sql.DB is a connection pool and is safe for concurrent use.
type SQLite struct {
	Db *sql.DB
}

// New opens the database at cfg.Storage.Path.
func New(cfg *config.Config) (*SQLite, error) {
	return Open(cfg.Storage.Path)
}

// Open opens (creating if needed) the SQLite file at path, enables foreign
// keys on every pooled connection and creates the schema.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open(DriverName, path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.Open: create schema: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// Ping checks that the database file can still be reached.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.Db.PingContext(ctx)
}

// Close closes every pooled connection.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

// translate maps constraint failures onto the storage sentinels.
func translate(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintUnique:
		return storage.ErrConflict
	case sqlite3.ErrConstraintForeignKey:
		return storage.ErrStudentNotFound
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (types.Student, error) {
	var (
		st      types.Student
		created int64
	)
	err := row.Scan(&st.ID, &st.FirstName, &st.LastName, &st.DateOfBirth, &st.Email, &st.Age, &created)
	if err != nil {
		return types.Student{}, err
	}
	st.CreatedAt = time.Unix(0, created).UTC()
	st.Marks = []types.Mark{}
	return st, nil
}

// ── Students ────────────────────────────────────────────────────────────────

// CreateStudent inserts a row and relies on the UNIQUE index on email to
// reject duplicates, so two concurrent creates cannot both succeed.
func (s *SQLite) CreateStudent(ctx context.Context, in types.StudentInput) (types.Student, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: new id: %w", err)
	}
	now := time.Now().UTC()

	_, err = s.Db.ExecContext(ctx,
		"INSERT INTO students ("+studentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		id.String(), in.FirstName, in.LastName, in.DateOfBirth, in.Email, in.Age, now.UnixNano(),
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: exec: %w", translate(err))
	}

	st := types.Student{Marks: []types.Mark{}}
	st.ID = id.String()
	st.FirstName = in.FirstName
	st.LastName = in.LastName
	st.DateOfBirth = in.DateOfBirth
	st.Email = in.Email
	st.Age = in.Age
	st.CreatedAt = time.Unix(0, now.UnixNano()).UTC()
	return st, nil
}

// ListStudents returns one page of students, newest first, each with its
// marks. The count, the page and the marks are read in one transaction.
func (s *SQLite) ListStudents(ctx context.Context, p query.Params) (types.Page[types.Student], error) {
	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return types.Page[types.Student]{}, fmt.Errorf("ListStudents: begin: %w", err)
	}
	defer tx.Rollback()

	where, args := "", []any{}
	if p.HasSearch() {
		pat := p.Pattern()
		where, args = " WHERE "+studentFilter, []any{pat, pat, pat}
	}

	var total int64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM students"+where, args...).Scan(&total); err != nil {
		return types.Page[types.Student]{}, fmt.Errorf("ListStudents: count: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT "+studentColumns+" FROM students"+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...,
	)
	if err != nil {
		return types.Page[types.Student]{}, fmt.Errorf("ListStudents: query: %w", err)
	}
	defer rows.Close()

	students := make([]types.Student, 0, p.Limit)
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return types.Page[types.Student]{}, fmt.Errorf("ListStudents: scan row: %w", err)
		}
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return types.Page[types.Student]{}, fmt.Errorf("ListStudents: rows iteration: %w", err)
	}
	rows.Close()

	if err := attachMarks(ctx, tx, students); err != nil {
		return types.Page[types.Student]{}, fmt.Errorf("ListStudents: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return types.Page[types.Student]{}, fmt.Errorf("ListStudents: commit: %w", err)
	}

	return types.Page[types.Student]{Items: students, Total: total}, nil
}

// attachMarks loads the marks of every student in the slice with one query.
func attachMarks(ctx context.Context, tx *sql.Tx, students []types.Student) error {
	if len(students) == 0 {
		return nil
	}

	index := make(map[string]int, len(students))
	args := make([]any, 0, len(students))
	for i, st := range students {
		index[st.ID] = i
		args = append(args, st.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")

	rows, err := tx.QueryContext(ctx,
		"SELECT id, subject, marks, student_id FROM marks WHERE student_id IN ("+placeholders+") ORDER BY id",
		args...,
	)
	if err != nil {
		return fmt.Errorf("attach marks: query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m types.Mark
		if err := rows.Scan(&m.ID, &m.Subject, &m.Marks, &m.StudentID); err != nil {
			return fmt.Errorf("attach marks: scan row: %w", err)
		}
		i := index[m.StudentID]
		students[i].Marks = append(students[i].Marks, m)
	}
	return rows.Err()
}

// GetStudentByID fetches one student and its marks.
func (s *SQLite) GetStudentByID(ctx context.Context, id string) (types.Student, error) {
	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return types.Student{}, fmt.Errorf("GetStudentByID: begin: %w", err)
	}
	defer tx.Rollback()

	st, err := scanStudent(tx.QueryRowContext(ctx,
		"SELECT "+studentColumns+" FROM students WHERE id = ? LIMIT 1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Student{}, fmt.Errorf("no student found with id %s: %w", id, storage.ErrNotFound)
		}
		return types.Student{}, fmt.Errorf("GetStudentByID: scan: %w", err)
	}

	students := []types.Student{st}
	if err := attachMarks(ctx, tx, students); err != nil {
		return types.Student{}, fmt.Errorf("GetStudentByID: %w", err)
	}
	return students[0], tx.Commit()
}

// UpdateStudentByID replaces every field except id and created_at.
func (s *SQLite) UpdateStudentByID(ctx context.Context, id string, in types.StudentInput) (types.Student, error) {
	res, err := s.Db.ExecContext(ctx,
		"UPDATE students SET first_name = ?, last_name = ?, date_of_birth = ?, email = ?, age = ? WHERE id = ?",
		in.FirstName, in.LastName, in.DateOfBirth, in.Email, in.Age, id,
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: exec: %w", translate(err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: rows affected: %w", err)
	} else if n == 0 {
		return types.Student{}, fmt.Errorf("no student found with id %s: %w", id, storage.ErrNotFound)
	}

	// Re-fetch so we return exactly what is stored.
	return s.GetStudentByID(ctx, id)
}

// DeleteStudentByID removes a student and the marks it owns.
func (s *SQLite) DeleteStudentByID(ctx context.Context, id string) error {
	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM marks WHERE student_id = ?", id); err != nil {
		return fmt.Errorf("DeleteStudentByID: delete marks: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM students WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: exec: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("DeleteStudentByID: rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("no student found with id %s: %w", id, storage.ErrNotFound)
	}

	return tx.Commit()
}

// ── Marks ───────────────────────────────────────────────────────────────────

const markSelect = `SELECT m.id, m.subject, m.marks, m.student_id,
	s.id, s.first_name, s.last_name, s.date_of_birth, s.email, s.age, s.created_at
FROM marks m JOIN students s ON s.id = m.student_id`

func scanMark(row scanner) (types.Mark, error) {
	var (
		m       types.Mark
		info    types.StudentInfo
		created int64
	)
	err := row.Scan(&m.ID, &m.Subject, &m.Marks, &m.StudentID,
		&info.ID, &info.FirstName, &info.LastName, &info.DateOfBirth, &info.Email, &info.Age, &created)
	if err != nil {
		return types.Mark{}, err
	}
	info.CreatedAt = time.Unix(0, created).UTC()
	m.Student = &info
	return m, nil
}

// CreateMark inserts a mark. The foreign key rejects unknown students.
func (s *SQLite) CreateMark(ctx context.Context, in types.MarkInput) (types.Mark, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return types.Mark{}, fmt.Errorf("CreateMark: new id: %w", err)
	}

	_, err = s.Db.ExecContext(ctx,
		"INSERT INTO marks (id, subject, marks, student_id) VALUES (?, ?, ?, ?)",
		id.String(), in.Subject, in.Score(), in.StudentID,
	)
	if err != nil {
		return types.Mark{}, fmt.Errorf("CreateMark: exec: %w", translate(err))
	}

	return types.Mark{ID: id.String(), Subject: in.Subject, Marks: in.Score(), StudentID: in.StudentID}, nil
}

// ListMarks returns one page of marks in insertion order, each with its
// student, counted and fetched in one transaction.
func (s *SQLite) ListMarks(ctx context.Context, p query.Params) (types.Page[types.Mark], error) {
	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return types.Page[types.Mark]{}, fmt.Errorf("ListMarks: begin: %w", err)
	}
	defer tx.Rollback()

	where, args := "", []any{}
	if p.HasSearch() {
		where, args = " WHERE "+markFilter, []any{p.Pattern()}
	}

	var total int64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM marks m"+where, args...).Scan(&total); err != nil {
		return types.Page[types.Mark]{}, fmt.Errorf("ListMarks: count: %w", err)
	}

	rows, err := tx.QueryContext(ctx, markSelect+where+" ORDER BY m.id LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...)
	if err != nil {
		return types.Page[types.Mark]{}, fmt.Errorf("ListMarks: query: %w", err)
	}
	defer rows.Close()

	marks := make([]types.Mark, 0, p.Limit)
	for rows.Next() {
		m, err := scanMark(rows)
		if err != nil {
			return types.Page[types.Mark]{}, fmt.Errorf("ListMarks: scan row: %w", err)
		}
		marks = append(marks, m)
	}
	if err := rows.Err(); err != nil {
		return types.Page[types.Mark]{}, fmt.Errorf("ListMarks: rows iteration: %w", err)
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return types.Page[types.Mark]{}, fmt.Errorf("ListMarks: commit: %w", err)
	}
	return types.Page[types.Mark]{Items: marks, Total: total}, nil
}

// GetMarkByID fetches one mark with its student.
func (s *SQLite) GetMarkByID(ctx context.Context, id string) (types.Mark, error) {
	m, err := scanMark(s.Db.QueryRowContext(ctx, markSelect+" WHERE m.id = ? LIMIT 1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Mark{}, fmt.Errorf("no mark found with id %s: %w", id, storage.ErrNotFound)
		}
		return types.Mark{}, fmt.Errorf("GetMarkByID: scan: %w", err)
	}
	return m, nil
}

// UpdateMarkByID replaces subject, score and owning student.
func (s *SQLite) UpdateMarkByID(ctx context.Context, id string, in types.MarkInput) (types.Mark, error) {
	res, err := s.Db.ExecContext(ctx,
		"UPDATE marks SET subject = ?, marks = ?, student_id = ? WHERE id = ?",
		in.Subject, in.Score(), in.StudentID, id,
	)
	if err != nil {
		return types.Mark{}, fmt.Errorf("UpdateMarkByID: exec: %w", translate(err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return types.Mark{}, fmt.Errorf("UpdateMarkByID: rows affected: %w", err)
	} else if n == 0 {
		return types.Mark{}, fmt.Errorf("no mark found with id %s: %w", id, storage.ErrNotFound)
	}

	return s.GetMarkByID(ctx, id)
}

// DeleteMarkByID removes a single mark.
func (s *SQLite) DeleteMarkByID(ctx context.Context, id string) error {
	res, err := s.Db.ExecContext(ctx, "DELETE FROM marks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("DeleteMarkByID: exec: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("DeleteMarkByID: rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("no mark found with id %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
