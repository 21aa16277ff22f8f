package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INTEGER);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (id INTEGER);\n", ExtractUpMigration(content))
	assert.Equal(t, "SELECT 1;", ExtractUpMigration("SELECT 1;"))
	assert.Equal(t, "\nSELECT 2;", ExtractUpMigration("-- +migrate Up\nSELECT 2;"))
}

func TestIsAlreadyExistsError(t *testing.T) {
	assert.True(t, IsAlreadyExistsError(errors.New("table runs already exists")))
	assert.True(t, IsAlreadyExistsError(errors.New("duplicate column name: icon")))
	assert.False(t, IsAlreadyExistsError(errors.New("syntax error")))
}

func TestApplyMigrations_RunsOnce(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	migrations := fstest.MapFS{
		"001_init.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE runs (id INTEGER PRIMARY KEY);\n-- +migrate Down\nDROP TABLE runs;")},
		"002_seed.sql": {Data: []byte("INSERT INTO runs (id) VALUES (1);")},
		"README.md":    {Data: []byte("ignored")},
	}

	require.NoError(t, ApplyMigrations(ctx, db, migrations, ""))
	require.NoError(t, ApplyMigrations(ctx, db, migrations, "."))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+migrationTable).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestApplyMigrations_FailureRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	migrations := fstest.MapFS{
		"001_bad.sql": {Data: []byte("CREATE TABLE broken (")},
	}

	err := ApplyMigrations(ctx, db, migrations, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exec migration 001_bad.sql")

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+migrationTable).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestApplyMigrations_RequiresDB(t *testing.T) {
	assert.Error(t, ApplyMigrations(context.Background(), nil, fstest.MapFS{}, ""))
}
