package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"booking/internal/models"
	"booking/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		expectedName string
		expectedCode string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "name", "email", "role", "organization"}).
					AddRow(1, "Sam", "sam@csc.test", "supervisor", "CSC")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
			expectedName: "Sam",
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedCode: models.CodeNotFound,
		},
		{
			name:   "Store Down",
			userID: 5,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
					WillReturnError(errors.New("connection refused"))
			},
			expectedCode: models.CodeStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.expectedCode != "" {
				assert.True(t, models.IsCode(err, tt.expectedCode), "got %v", err)
			} else if assert.NotNil(t, user) {
				assert.Equal(t, tt.expectedName, user.Name)
				assert.Equal(t, models.RoleSupervisor, user.Role)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_IsAssignedToResource(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "resource_supervisors" WHERE user_id = $1 AND resource_id = $2`)).
		WithArgs(4, 9).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := repo.IsAssignedToResource(context.Background(), 4, 9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_AssignmentSQLite(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	f := testutil.SeedFixture(t, db, 60)
	repo := NewUserRepository(db)
	ctx := context.Background()

	ok, err := repo.IsAssignedToResource(ctx, f.Supervisor.ID, f.Resource.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsAssignedToResource(ctx, f.Unassigned.ID, f.Resource.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.AssignResource(ctx, f.Unassigned.ID, f.Resource.ID))
	ok, err = repo.IsAssignedToResource(ctx, f.Unassigned.ID, f.Resource.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	err = repo.AssignResource(ctx, f.Unassigned.ID, 9999)
	assert.True(t, models.IsCode(err, models.CodeResourceNotFound), "got %v", err)

	supervisors, err := repo.ListByRole(ctx, models.RoleSupervisor)
	require.NoError(t, err)
	assert.Len(t, supervisors, 2)

	byEmail, err := repo.GetByEmail(ctx, "tia@csc.test")
	require.NoError(t, err)
	assert.Equal(t, f.Trustee.ID, byEmail.ID)
}
