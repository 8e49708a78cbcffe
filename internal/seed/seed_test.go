package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"booking/internal/models"
	"booking/internal/repository"
	"booking/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestFactory_BuildRequestWindow(t *testing.T) {
	f := NewFactory(42)
	requester := f.BuildUser(models.RoleFaculty, models.OrganizationGHP)
	requester.ID = 7
	resource := f.BuildResource(models.OrganizationGHP)
	resource.ID = 3

	for i := 0; i < 50; i++ {
		r := f.BuildRequest(requester, resource, now)
		assert.Equal(t, models.OrganizationGHP, r.Organization)
		assert.Equal(t, models.StatusPending, r.Status)
		assert.False(t, r.CreatedAt.After(now))
		assert.False(t, r.CreatedAt.Before(now.Add(-72*time.Hour)))
		assert.True(t, r.RequestedDate.After(now))
		assert.True(t, r.Priority.Valid())
		assert.GreaterOrEqual(t, r.DurationDays, 1)
	}
}

func TestFactory_UsersAndResources(t *testing.T) {
	f := NewFactory(7)
	seen := map[string]bool{}
	for i := 0; i < 30; i++ {
		u := f.BuildUser(models.RoleFaculty, models.OrganizationCSC)
		assert.True(t, strings.HasSuffix(u.Email, "@csc.test"), u.Email)
		assert.False(t, seen[u.Email], "duplicate email %s", u.Email)
		seen[u.Email] = true
		assert.NotEmpty(t, u.Department)
	}

	supervisor := f.BuildUser(models.RoleSupervisor, models.OrganizationCSC)
	assert.Empty(t, supervisor.Department)

	r := f.BuildResource(models.OrganizationCSC)
	assert.Contains(t, slaChoices, r.SLAMinutes)
	assert.True(t, r.Availability)
}

func TestSeed(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	res, err := Seed(ctx, db, Options{
		FacultyPerOrg:      2,
		SupervisorsPerOrg:  2,
		ResourcesPerOrg:    3,
		RequestsPerFaculty: 2,
		Seed:               99,
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Resources)
	assert.Equal(t, 8, res.Requests)
	require.Len(t, res.Users, 6)

	var requests int64
	require.NoError(t, db.Model(&models.Request{}).Count(&requests).Error)
	assert.Equal(t, int64(8), requests)

	// Every resource has a supervisor assigned.
	var assignments int64
	require.NoError(t, db.Table("resource_supervisors").Count(&assignments).Error)
	assert.Equal(t, int64(6), assignments)

	users := repository.NewUserRepository(db)
	for _, u := range res.Users {
		stored, err := users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.Role, stored.Role)
	}

	// Seeding again with Clean replaces the data instead of appending.
	_, err = Seed(ctx, db, Options{FacultyPerOrg: 1, SupervisorsPerOrg: 1, ResourcesPerOrg: 1, RequestsPerFaculty: 1, Clean: true}, now)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Request{}).Count(&requests).Error)
	assert.Equal(t, int64(2), requests)
}

func TestSeed_RejectsEmptyOrganizations(t *testing.T) {
	_, err := Seed(context.Background(), nil, Options{FacultyPerOrg: 1}, now)
	assert.Error(t, err)
}
