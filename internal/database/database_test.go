package database

import (
	"context"
	"testing"
	"testing/fstest"

	"booking/internal/config"
	"booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePoolSQLiteSingleConnection(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, configurePool(db, &config.Config{DBMaxOpenConns: 10}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantSQL  bool
		wantAuto bool
		wantErr  bool
	}{
		{"hybrid dev", config.Config{Env: "development", DBDriver: DriverPostgres}, true, true, false},
		{"hybrid prod", config.Config{Env: "production", DBDriver: DriverPostgres}, true, false, false},
		{"sql only", config.Config{Env: "development", SchemaMode: SchemaModeSQL}, true, false, false},
		{"auto prod refused", config.Config{Env: "prod", SchemaMode: SchemaModeAuto}, false, false, true},
		{"auto prod allowed", config.Config{Env: "prod", SchemaMode: SchemaModeAuto, DBAutoMigrateAllowDestructive: true}, false, true, false},
		{"sqlite always auto", config.Config{Env: "test", DBDriver: DriverSQLite, SchemaMode: SchemaModeSQL}, false, true, false},
		{"sqlite in production", config.Config{Env: "production", DBDriver: DriverSQLite}, false, false, true},
		{"unknown mode", config.Config{Env: "development", SchemaMode: "yolo"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAuto, runAuto)
		})
	}
}

func TestEmbeddedMigrationsRegistered(t *testing.T) {
	all := GetMigrations()
	require.NotEmpty(t, all)
	assert.Equal(t, 1, all[0].Version)
	assert.Contains(t, all[0].UpScript, "CREATE TABLE IF NOT EXISTS requests")
	assert.Contains(t, all[0].DownScript, "DROP TABLE IF EXISTS requests")
	assert.Equal(t, "000001_create_booking_schema", all[0].String())
	assert.NotNil(t, GetMigrationByVersion(1))
	assert.Nil(t, GetMigrationByVersion(999))
}

func TestLoadMigrationsRejectsDuplicateVersions(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/000001_a.up.sql":   {Data: []byte("SELECT 1")},
		"migrations/000001_a.down.sql": {Data: []byte("SELECT 1")},
		"migrations/000001_b.up.sql":   {Data: []byte("SELECT 1")},
		"migrations/000001_b.down.sql": {Data: []byte("SELECT 1")},
	}
	_, err := LoadMigrations(fsys)
	assert.ErrorContains(t, err, "share version")
}

func TestLoadMigrationsRequiresDownScript(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/000002_only_up.up.sql": {Data: []byte("SELECT 1")},
	}
	_, err := LoadMigrations(fsys)
	assert.Error(t, err)
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}}
	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, registered))
	assert.ErrorContains(t, validateAppliedVersions([]int{1, 7}, registered), "000007")
}

func TestApplySchemaSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	cfg := &config.Config{Env: "test", DBDriver: DriverSQLite}
	require.NoError(t, configurePool(db, cfg))

	require.NoError(t, ApplySchema(context.Background(), db, cfg))

	for _, model := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.True(t, db.Migrator().HasTable("resource_supervisors"))
	assert.True(t, db.Migrator().HasColumn(&models.Request{}, "sla_is_breached"))
	assert.True(t, db.Migrator().HasColumn(&models.Request{}, "inactive_status"))

	status, err := GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.False(t, status.WillRunSQL)
	assert.True(t, status.WillRunAutoMigrate)
}

func TestMigrationStoreMissingTable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	applied, err := NewMigrationStore(db).GetAppliedMigrations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestDialector(t *testing.T) {
	d, err := Dialector(&config.Config{DBDriver: DriverSQLite, SQLitePath: "file.db"})
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, d.Name())

	d, err = Dialector(&config.Config{DBDriver: DriverPostgres})
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, d.Name())

	_, err = Dialector(&config.Config{DBDriver: "mysql"})
	assert.Error(t, err)
}
