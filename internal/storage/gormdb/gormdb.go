// Package gormdb implements storage.Storage on top of gorm, so the same
// service can run against postgres, mysql or sqlite.
package gormdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aanand-mishra/students-api/internal/config"
	"github.com/aanand-mishra/students-api/internal/query"
	"github.com/aanand-mishra/students-api/internal/storage"
	"github.com/aanand-mishra/students-api/internal/storage/sqlite"
	"github.com/aanand-mishra/students-api/internal/types"
)

// Store is a gorm-backed storage.Storage.
type Store struct {
	db *gorm.DB
	// readTx is used for list queries; nil keeps the driver default.
	readTx *sql.TxOptions
}

// New opens the database selected by cfg.Storage.Driver and migrates the
// schema.
func New(cfg *config.Config) (*Store, error) {
	snapshot := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		return Open(postgres.Open(cfg.Storage.DSN), snapshot)
	case config.DriverMySQL:
		return Open(mysql.Open(cfg.Storage.DSN), snapshot)
	case config.DriverGormSQLite:
		// A sqlite transaction already reads from one snapshot.
		return Open(SQLiteDialector(cfg.Storage.Path), nil)
	}
	return nil, fmt.Errorf("gormdb.New: unsupported driver %q", cfg.Storage.Driver)
}

// SQLiteDSN enables foreign keys and a busy timeout for a sqlite file.
func SQLiteDSN(path string) string {
	return path + "?_foreign_keys=on&_busy_timeout=5000"
}

// SQLiteDialector opens path through the Unicode-aware sqlite driver, so
// LOWER in the search scopes folds non-ASCII letters too.
func SQLiteDialector(path string) gorm.Dialector {
	return gormsqlite.New(gormsqlite.Config{DriverName: sqlite.DriverName, DSN: SQLiteDSN(path)})
}

// Open connects through dialector and migrates the schema.
func Open(dialector gorm.Dialector, readTx *sql.TxOptions) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: logger.New(slogWriter{}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("gormdb.Open: open db: %w", err)
	}

	if err := db.AutoMigrate(&studentRow{}, &markRow{}); err != nil {
		return nil, fmt.Errorf("gormdb.Open: migrate: %w", err)
	}

	return &Store{db: db, readTx: readTx}, nil
}

// slogWriter routes gorm's logger through the default slog logger.
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...), slog.String("component", "gorm"))
}

// Ping checks the underlying connection pool.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the connection pool behind the gorm handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return storage.ErrConflict
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return storage.ErrStudentNotFound
	}
	return err
}

// paginate applies offset and limit for p, in the manner of a gorm scope.
func paginate(p query.Params) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(p.Offset()).Limit(p.Limit)
	}
}

func searchStudents(p query.Params) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !p.HasSearch() {
			return db
		}
		pat := p.Pattern()
		return db.Where(
			"(LOWER(first_name) LIKE ? ESCAPE '!' OR LOWER(last_name) LIKE ? ESCAPE '!' OR LOWER(email) LIKE ? ESCAPE '!')",
			pat, pat, pat,
		)
	}
}

func searchMarks(p query.Params) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !p.HasSearch() {
			return db
		}
		return db.Where("LOWER(subject) LIKE ? ESCAPE '!'", p.Pattern())
	}
}

func marksByID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

// ── Students ────────────────────────────────────────────────────────────────

// CreateStudent inserts a row. A taken email comes back from the unique
// index as storage.ErrConflict.
func (s *Store) CreateStudent(ctx context.Context, in types.StudentInput) (types.Student, error) {
	row := studentFromInput(in)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: %w", translate(err))
	}
	return row.student(), nil
}

// ListStudents returns one page of students, newest first, with their
// marks. Count, page and marks are read inside one readTx transaction.
func (s *Store) ListStudents(ctx context.Context, p query.Params) (types.Page[types.Student], error) {
	var (
		rows  []studentRow
		total int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&studentRow{}).Scopes(searchStudents(p)).Count(&total).Error; err != nil {
			return fmt.Errorf("count: %w", err)
		}
		return tx.Scopes(searchStudents(p), paginate(p)).
			Preload("Marks", marksByID).
			Order("created_at DESC, id DESC").
			Find(&rows).Error
	}, s.readTx)
	if err != nil {
		return types.Page[types.Student]{}, fmt.Errorf("ListStudents: %w", err)
	}

	students := make([]types.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return types.Page[types.Student]{Items: students, Total: total}, nil
}

// GetStudentByID fetches one student and its marks.
func (s *Store) GetStudentByID(ctx context.Context, id string) (types.Student, error) {
	var row studentRow
	err := s.db.WithContext(ctx).Preload("Marks", marksByID).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Student{}, fmt.Errorf("no student found with id %s: %w", id, storage.ErrNotFound)
		}
		return types.Student{}, fmt.Errorf("GetStudentByID: %w", err)
	}
	return row.student(), nil
}

// UpdateStudentByID replaces the editable columns. The existence check runs
// in the same transaction because mysql reports zero affected rows for an
// update that changes nothing.
func (s *Store) UpdateStudentByID(ctx context.Context, id string, in types.StudentInput) (types.Student, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing studentRow
		if err := tx.Select("id").Where("id = ?", id).First(&existing).Error; err != nil {
			return err
		}
		return tx.Model(&studentRow{}).Where("id = ?", id).Updates(map[string]any{
			"first_name":    in.FirstName,
			"last_name":     in.LastName,
			"date_of_birth": in.DateOfBirth,
			"email":         in.Email,
			"age":           in.Age,
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Student{}, fmt.Errorf("no student found with id %s: %w", id, storage.ErrNotFound)
		}
		return types.Student{}, fmt.Errorf("UpdateStudentByID: %w", translate(err))
	}
	return s.GetStudentByID(ctx, id)
}

// DeleteStudentByID deletes the student's marks and then the student.
func (s *Store) DeleteStudentByID(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", id).Delete(&markRow{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&studentRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("no student found with id %s: %w", id, storage.ErrNotFound)
		}
		return fmt.Errorf("DeleteStudentByID: %w", err)
	}
	return nil
}

// ── Marks ───────────────────────────────────────────────────────────────────

// requireStudent fails with storage.ErrStudentNotFound when id names no
// student. The foreign key still guards writes that race with a delete.
func requireStudent(tx *gorm.DB, id string) error {
	var n int64
	if err := tx.Model(&studentRow{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrStudentNotFound
	}
	return nil
}

// CreateMark inserts a mark for an existing student.
func (s *Store) CreateMark(ctx context.Context, in types.MarkInput) (types.Mark, error) {
	row := markRow{Subject: in.Subject, Marks: in.Score(), StudentID: in.StudentID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireStudent(tx, in.StudentID); err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return types.Mark{}, fmt.Errorf("CreateMark: %w", translate(err))
	}
	return row.mark(), nil
}

// withStudents loads the owning student of every mark.
func withStudents(tx *gorm.DB, rows []markRow) ([]types.Mark, error) {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.StudentID)
	}

	owners := map[string]types.StudentInfo{}
	if len(ids) > 0 {
		var students []studentRow
		if err := tx.Where("id IN ?", ids).Find(&students).Error; err != nil {
			return nil, fmt.Errorf("load students: %w", err)
		}
		for _, st := range students {
			owners[st.ID] = st.info()
		}
	}

	marks := make([]types.Mark, 0, len(rows))
	for _, r := range rows {
		m := r.mark()
		if info, ok := owners[r.StudentID]; ok {
			m.Student = &info
		}
		marks = append(marks, m)
	}
	return marks, nil
}

// ListMarks returns one page of marks in id order, each with its student.
func (s *Store) ListMarks(ctx context.Context, p query.Params) (types.Page[types.Mark], error) {
	var (
		marks []types.Mark
		total int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&markRow{}).Scopes(searchMarks(p)).Count(&total).Error; err != nil {
			return fmt.Errorf("count: %w", err)
		}
		var rows []markRow
		if err := tx.Scopes(searchMarks(p), paginate(p)).Order("id").Find(&rows).Error; err != nil {
			return err
		}
		var err error
		marks, err = withStudents(tx, rows)
		return err
	}, s.readTx)
	if err != nil {
		return types.Page[types.Mark]{}, fmt.Errorf("ListMarks: %w", err)
	}
	return types.Page[types.Mark]{Items: marks, Total: total}, nil
}

// GetMarkByID fetches one mark with its student.
func (s *Store) GetMarkByID(ctx context.Context, id string) (types.Mark, error) {
	db := s.db.WithContext(ctx)

	var row markRow
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Mark{}, fmt.Errorf("no mark found with id %s: %w", id, storage.ErrNotFound)
		}
		return types.Mark{}, fmt.Errorf("GetMarkByID: %w", err)
	}

	marks, err := withStudents(db, []markRow{row})
	if err != nil {
		return types.Mark{}, fmt.Errorf("GetMarkByID: %w", err)
	}
	return marks[0], nil
}

// UpdateMarkByID replaces subject, score and owning student.
func (s *Store) UpdateMarkByID(ctx context.Context, id string, in types.MarkInput) (types.Mark, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing markRow
		if err := tx.Select("id").Where("id = ?", id).First(&existing).Error; err != nil {
			return err
		}
		if err := requireStudent(tx, in.StudentID); err != nil {
			return err
		}
		return tx.Model(&markRow{}).Where("id = ?", id).Updates(map[string]any{
			"subject":    in.Subject,
			"marks":      in.Score(),
			"student_id": in.StudentID,
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Mark{}, fmt.Errorf("no mark found with id %s: %w", id, storage.ErrNotFound)
		}
		return types.Mark{}, fmt.Errorf("UpdateMarkByID: %w", translate(err))
	}
	return s.GetMarkByID(ctx, id)
}

// DeleteMarkByID removes a single mark.
func (s *Store) DeleteMarkByID(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&markRow{})
	if res.Error != nil {
		return fmt.Errorf("DeleteMarkByID: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no mark found with id %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
