package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"unscored/internal/config"
	"unscored/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Env:          "test",
		DBDriver:     "sqlite",
		SQLitePath:   ":memory:",
		DBSchemaMode: SchemaModeHybrid,
	}
}

func TestConnectSQLiteAppliesSchema(t *testing.T) {
	db, err := Connect(memoryConfig())
	require.NoError(t, err)

	for _, model := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(model), "missing table for %T", model)
	}
}

func TestUniqueViolationDetectedOnSQLite(t *testing.T) {
	db, err := Connect(memoryConfig())
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Board{Name: "Test", NameKey: "test"}).Error)
	err = db.Create(&models.Board{Name: "TEST", NameKey: "test"}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: posts.id")))
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		mode    string
		env     string
		wantSQL bool
		wantAut bool
		wantErr bool
	}{
		{"sqlite always auto", "sqlite", SchemaModeSQL, "production", false, true, false},
		{"sqlite hybrid", "sqlite", "", "development", false, true, false},
		{"postgres hybrid dev", "postgres", SchemaModeHybrid, "development", true, true, false},
		{"postgres hybrid prod", "postgres", SchemaModeHybrid, "production", true, false, false},
		{"postgres sql", "postgres", SchemaModeSQL, "development", true, false, false},
		{"postgres auto", "postgres", SchemaModeAuto, "development", false, true, false},
		{"unknown mode", "postgres", "magic", "development", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{DBDriver: tt.driver, DBSchemaMode: tt.mode, Env: tt.env}
			runSQL, runAuto, err := schemaPolicy(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAut, runAuto)
		})
	}
}

func TestRegisteredMigrations(t *testing.T) {
	all := GetMigrations()
	require.NotEmpty(t, all)
	assert.Equal(t, 1, all[0].Version)
	assert.Equal(t, "000001_archive_schema", all[0].String())
	assert.Contains(t, all[0].UpScript, "CREATE TABLE IF NOT EXISTS posts")
	assert.Contains(t, all[0].DownScript, "DROP TABLE IF EXISTS posts")
	assert.Nil(t, GetMigrationByVersion(999))
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_bans.up.sql":     {Data: []byte("CREATE TABLE bans ();")},
		"m/000002_bans.down.sql":   {Data: []byte("DROP TABLE bans;")},
		"m/000001_posts.up.sql":    {Data: []byte("CREATE TABLE posts ();")},
		"m/000001_posts.down.sql":  {Data: []byte("DROP TABLE posts;")},
		"m/000003_orphan.down.sql": {Data: []byte("DROP TABLE orphan;")},
		"m/README.md":              {Data: []byte("notes")},
	}
	loaded, err := loadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "000001_posts", loaded[0].String())
	assert.Equal(t, "DROP TABLE bans;", loaded[1].DownScript)

	_, err = loadMigrations(fstest.MapFS{"m/000004_x.up.sql": {Data: []byte("")}}, "m")
	assert.ErrorContains(t, err, "no rollback")

	_, err = loadMigrations(fstest.MapFS{
		"m/abc_x.up.sql":   {Data: []byte("")},
		"m/abc_x.down.sql": {Data: []byte("")},
	}, "m")
	assert.ErrorContains(t, err, "bad version")
}

func TestPendingMigrations(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	pending := pendingMigrations([]int{2}, registered)
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].Version)
	assert.Equal(t, 3, pending[1].Version)
	assert.Empty(t, pendingMigrations([]int{1, 2, 3}, registered))
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}}
	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, registered))

	err := validateAppliedVersions([]int{1, 7, 3}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000003, 000007")
}

func TestGetSchemaStatusSQLite(t *testing.T) {
	cfg := memoryConfig()
	db, err := ConnectWithOptions(cfg, ConnectOptions{})
	require.NoError(t, err)

	status, err := GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.False(t, status.WillRunSQL)
	assert.True(t, status.WillRunAutoMigrate)
	assert.Empty(t, status.PendingMigrations)
}

func TestGetAppliedMigrationsPostgres(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT "version" FROM "migration_logs" ORDER BY version ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))

	versions, err := NewMigrationStore(db).GetAppliedMigrations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, versions)
	assert.NoError(t, mock.ExpectationsWereMet())
}
