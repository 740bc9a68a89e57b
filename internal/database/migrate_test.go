package database

import (
	"context"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	all := GetMigrations()
	require.NotEmpty(t, all)

	for i, m := range all {
		assert.NotEmpty(t, m.UpScript, m.String())
		assert.NotEmpty(t, m.DownScript, m.String())
		if i > 0 {
			assert.Greater(t, m.Version, all[i-1].Version)
		}
	}

	first := GetMigrationByVersion(1)
	require.NotNil(t, first)
	assert.Equal(t, "000001_init_schema", first.String())
	assert.Contains(t, first.UpScript, "CREATE TABLE IF NOT EXISTS book_requests")
	assert.Nil(t, GetMigrationByVersion(999))
}

func TestLoadMigrations_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files fstest.MapFS
	}{
		{"missing down", fstest.MapFS{
			"m/000001_a.up.sql": {Data: []byte("SELECT 1;")},
		}},
		{"bad version", fstest.MapFS{
			"m/abc_a.up.sql":   {Data: []byte("SELECT 1;")},
			"m/abc_a.down.sql": {Data: []byte("SELECT 1;")},
		}},
		{"no name", fstest.MapFS{
			"m/000001.up.sql":   {Data: []byte("SELECT 1;")},
			"m/000001.down.sql": {Data: []byte("SELECT 1;")},
		}},
		{"duplicate version", fstest.MapFS{
			"m/000001_a.up.sql":   {Data: []byte("SELECT 1;")},
			"m/000001_a.down.sql": {Data: []byte("SELECT 1;")},
			"m/000001_b.up.sql":   {Data: []byte("SELECT 1;")},
			"m/000001_b.down.sql": {Data: []byte("SELECT 1;")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadMigrations(tt.files, "m")
			assert.Error(t, err)
		})
	}
}

func TestLoadMigrations_Sorts(t *testing.T) {
	files := fstest.MapFS{
		"m/000010_later.up.sql":    {Data: []byte("SELECT 10;")},
		"m/000010_later.down.sql":  {Data: []byte("SELECT -10;")},
		"m/000002_early.up.sql":    {Data: []byte("SELECT 2;")},
		"m/000002_early.down.sql":  {Data: []byte("SELECT -2;")},
		"m/README.md":              {Data: []byte("ignored")},
		"m/000003_orphan.down.sql": {Data: []byte("ignored")},
	}

	got, err := loadMigrations(files, "m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Version)
	assert.Equal(t, "later", got[1].Name)
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}}

	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, registered))

	err := validateAppliedVersions([]int{1, 7, 5}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000005, 000007")
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	return db, mock
}

func TestMigrationStore_GetAppliedMigrations(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "version" FROM "migration_logs" ORDER BY version ASC`)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1).AddRow(2))

	versions, err := NewMigrationStore(db).GetAppliedMigrations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, versions)
	assert.NoError(t, mock.ExpectationsWereMet())
}
