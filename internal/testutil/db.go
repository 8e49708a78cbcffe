// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"booking/internal/database"
	"booking/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB returns a migrated in-memory database. The pool is pinned to one
// connection because every sqlite :memory: connection is a separate database.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// Fixture is a small organization: one faculty member, one assigned supervisor,
// an unassigned supervisor, a trustee, and one resource.
type Fixture struct {
	Faculty      models.User
	Supervisor   models.User
	Unassigned   models.User
	Trustee      models.User
	Resource     models.Resource
	Organization models.Organization
}

// SeedFixture inserts a Fixture whose resource has the given SLA in minutes.
func SeedFixture(t *testing.T, db *gorm.DB, slaMinutes int) *Fixture {
	t.Helper()
	ctx := context.Background()
	org := models.OrganizationCSC

	f := &Fixture{
		Organization: org,
		Faculty:      models.User{Name: "Ada Faculty", Email: "ada@csc.test", Role: models.RoleFaculty, Organization: org, Department: "Physics"},
		Supervisor:   models.User{Name: "Sam Supervisor", Email: "sam@csc.test", Role: models.RoleSupervisor, Organization: org},
		Unassigned:   models.User{Name: "Una Supervisor", Email: "una@csc.test", Role: models.RoleSupervisor, Organization: org},
		Trustee:      models.User{Name: "Tia Trustee", Email: "tia@csc.test", Role: models.RoleTrustee, Organization: org},
		Resource:     models.Resource{Name: "Seminar Hall", Organization: org, Section: "Main", Availability: true, SLAMinutes: slaMinutes},
	}

	for _, u := range []*models.User{&f.Faculty, &f.Supervisor, &f.Unassigned, &f.Trustee} {
		require.NoError(t, db.WithContext(ctx).Create(u).Error)
	}
	require.NoError(t, db.WithContext(ctx).Create(&f.Resource).Error)
	require.NoError(t, db.WithContext(ctx).Table("resource_supervisors").Create(map[string]interface{}{
		"user_id":     f.Supervisor.ID,
		"resource_id": f.Resource.ID,
	}).Error)
	return f
}

// InsertRequest stores a pending request created at createdAt for the fixture's faculty member.
func (f *Fixture) InsertRequest(t *testing.T, db *gorm.DB, createdAt, requestedDate time.Time) *models.Request {
	t.Helper()
	req := &models.Request{
		RequesterID:   f.Faculty.ID,
		ResourceID:    f.Resource.ID,
		Organization:  f.Organization,
		EventDetails:  "Department colloquium",
		RequestedDate: requestedDate,
		DurationDays:  1,
		Priority:      models.PriorityNormal,
		Status:        models.StatusPending,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	require.NoError(t, db.Omit("Requester", "Resource", "SuspiciousActivities").Create(req).Error)
	return req
}
