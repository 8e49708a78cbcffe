package repository

import (
	"context"
	"errors"

	"booking/internal/models"

	"gorm.io/gorm"
)

// UserRepository reads the user directory. Users are managed outside the engine;
// Create and AssignResource exist for seeding.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	IsAssignedToResource(ctx context.Context, userID, resourceID uint) (bool, error)
	Create(ctx context.Context, user *models.User) error
	AssignResource(ctx context.Context, userID, resourceID uint) error
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := readDB(r.db).WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, storeError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := readDB(r.db).WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", email)
		}
		return nil, storeError(err)
	}
	return &user, nil
}

// IsAssignedToResource reports whether the user supervises the resource.
func (r *userRepository) IsAssignedToResource(ctx context.Context, userID, resourceID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("resource_supervisors").
		Where("user_id = ? AND resource_id = ?", userID, resourceID).
		Count(&count).Error
	if err != nil {
		return false, storeError(err)
	}
	return count > 0, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return storeError(r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepository) AssignResource(ctx context.Context, userID, resourceID uint) error {
	err := r.db.WithContext(ctx).Table("resource_supervisors").Create(map[string]interface{}{
		"user_id":     userID,
		"resource_id": resourceID,
	}).Error
	if err != nil && isForeignKeyViolation(err) {
		return models.NewResourceNotFoundError(resourceID)
	}
	return storeError(err)
}

func (r *userRepository) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var users []models.User
	err := readDB(r.db).WithContext(ctx).Where("role = ?", role).Order("id ASC").Find(&users).Error
	return users, storeError(err)
}
