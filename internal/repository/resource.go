package repository

import (
	"context"
	"errors"

	"booking/internal/models"

	"gorm.io/gorm"
)

// ResourceRepository reads bookable resources.
type ResourceRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Resource, error)
	Create(ctx context.Context, resource *models.Resource) error
	List(ctx context.Context, org models.Organization) ([]models.Resource, error)
}

type resourceRepository struct {
	db *gorm.DB
}

// NewResourceRepository returns a new ResourceRepository implementation.
func NewResourceRepository(db *gorm.DB) ResourceRepository {
	return &resourceRepository{db: db}
}

func (r *resourceRepository) GetByID(ctx context.Context, id uint) (*models.Resource, error) {
	var resource models.Resource
	if err := readDB(r.db).WithContext(ctx).First(&resource, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewResourceNotFoundError(id)
		}
		return nil, storeError(err)
	}
	return &resource, nil
}

func (r *resourceRepository) Create(ctx context.Context, resource *models.Resource) error {
	if resource.SLAMinutes == 0 {
		resource.SLAMinutes = models.DefaultSLAMinutes
	}
	if resource.SLAMinutes < models.MinSLAMinutes || resource.SLAMinutes > models.MaxSLAMinutes {
		return models.NewValidationError("SLA minutes must be between 1 and 10080")
	}
	return storeError(r.db.WithContext(ctx).Create(resource).Error)
}

func (r *resourceRepository) List(ctx context.Context, org models.Organization) ([]models.Resource, error) {
	var resources []models.Resource
	q := readDB(r.db).WithContext(ctx).Order("name ASC")
	if org != "" {
		q = q.Where("organization = ?", org)
	}
	return resources, storeError(q.Find(&resources).Error)
}
