package gormdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/students-api/internal/config"
	"github.com/aanand-mishra/students-api/internal/storage"
	"github.com/aanand-mishra/students-api/internal/storage/storagetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(SQLiteDialector(filepath.Join(t.TempDir(), "students.db")), nil)
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return openTemp(t)
	})
}

func TestNewSelectsGormSQLite(t *testing.T) {
	cfg := &config.Config{Storage: config.Storage{
		Driver: config.DriverGormSQLite,
		Path:   filepath.Join(t.TempDir(), "students.db"),
	}}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	assert.Nil(t, s.readTx)
}

func TestNewRejectsRawSQLiteDriver(t *testing.T) {
	_, err := New(&config.Config{Storage: config.Storage{Driver: config.DriverSQLite, Path: "x.db"}})
	assert.ErrorContains(t, err, "unsupported driver")
}
