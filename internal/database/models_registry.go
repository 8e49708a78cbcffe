package database

import "booking/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Order matters for AutoMigrate: referenced tables first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Resource{},
		&models.Request{},
		&models.SuspiciousActivity{},
		&models.ApprovalLog{},
		&models.UsageLog{},
	}
}
