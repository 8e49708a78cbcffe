package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"booking/internal/middleware"
	"booking/internal/models"
	"booking/internal/repository"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	FacultyPerOrg      int
	SupervisorsPerOrg  int
	ResourcesPerOrg    int
	RequestsPerFaculty int
	// Seed makes the generated data reproducible; zero is random.
	Seed int64
	// Clean removes existing booking data first.
	Clean bool
}

// DefaultOptions is a small two-organization dataset.
var DefaultOptions = Options{
	FacultyPerOrg:      4,
	SupervisorsPerOrg:  2,
	ResourcesPerOrg:    5,
	RequestsPerFaculty: 3,
}

// Result lists what was created. Users holds one entry per role and
// organization, in creation order, for issuing dev tokens.
type Result struct {
	Users     []models.User
	Resources int
	Requests  int
}

// Seed populates db with users, resources with mixed SLAs, supervisor
// assignments and pending requests for every organization.
func Seed(ctx context.Context, db *gorm.DB, opts Options, now time.Time) (*Result, error) {
	if opts.SupervisorsPerOrg < 1 || opts.ResourcesPerOrg < 1 {
		return nil, fmt.Errorf("seed: need at least one supervisor and one resource per organization")
	}
	f := NewFactory(opts.Seed)
	res := &Result{}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if opts.Clean {
			if err := clearData(tx); err != nil {
				return fmt.Errorf("clear existing data: %w", err)
			}
		}

		users := repository.NewUserRepository(tx)
		resources := repository.NewResourceRepository(tx)
		requests := repository.NewRequestRepository(tx)

		for _, org := range []models.Organization{models.OrganizationCSC, models.OrganizationGHP} {
			trustee := f.BuildUser(models.RoleTrustee, org)
			if err := users.Create(ctx, trustee); err != nil {
				return fmt.Errorf("create trustee: %w", err)
			}

			supervisors := make([]*models.User, 0, opts.SupervisorsPerOrg)
			for i := 0; i < opts.SupervisorsPerOrg; i++ {
				u := f.BuildUser(models.RoleSupervisor, org)
				if err := users.Create(ctx, u); err != nil {
					return fmt.Errorf("create supervisor: %w", err)
				}
				supervisors = append(supervisors, u)
			}

			orgResources := make([]*models.Resource, 0, opts.ResourcesPerOrg)
			for i := 0; i < opts.ResourcesPerOrg; i++ {
				r := f.BuildResource(org)
				if err := resources.Create(ctx, r); err != nil {
					return fmt.Errorf("create resource: %w", err)
				}
				// Round-robin so every supervisor has something to review.
				if err := users.AssignResource(ctx, supervisors[i%len(supervisors)].ID, r.ID); err != nil {
					return fmt.Errorf("assign resource: %w", err)
				}
				orgResources = append(orgResources, r)
			}
			res.Resources += len(orgResources)

			var firstFaculty *models.User
			for i := 0; i < opts.FacultyPerOrg; i++ {
				u := f.BuildUser(models.RoleFaculty, org)
				if err := users.Create(ctx, u); err != nil {
					return fmt.Errorf("create faculty: %w", err)
				}
				if firstFaculty == nil {
					firstFaculty = u
				}
				for j := 0; j < opts.RequestsPerFaculty; j++ {
					resource := orgResources[f.faker.Number(0, len(orgResources)-1)]
					if err := requests.Create(ctx, f.BuildRequest(u, resource, now)); err != nil {
						return fmt.Errorf("create request: %w", err)
					}
					res.Requests++
				}
			}

			res.Users = append(res.Users, *trustee, *supervisors[0])
			if firstFaculty != nil {
				res.Users = append(res.Users, *firstFaculty)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "database seeded",
		slog.Int("resources", res.Resources),
		slog.Int("requests", res.Requests),
	)
	return res, nil
}

// clearData removes booking data children first.
func clearData(tx *gorm.DB) error {
	for _, table := range []string{
		"suspicious_activities",
		"approval_logs",
		"resource_usage_logs",
		"requests",
		"resource_supervisors",
		"resources",
		"users",
	} {
		if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}
