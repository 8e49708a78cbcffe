// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"booking/internal/database"
	"booking/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Postgres SQLSTATE codes used for error classification.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil && primary.Name() == database.DriverPostgres {
		return db
	}
	return primary
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isForeignKeyViolation(err error) bool {
	return pgCode(err) == pgForeignKeyViolation || strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isCheckViolation(err error) bool {
	return pgCode(err) == pgCheckViolation || strings.Contains(err.Error(), "CHECK constraint failed")
}

// storeError passes application errors through and wraps everything else as
// STORE_UNAVAILABLE. Constraint violations surface as validation errors.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if isUniqueViolation(err) || isCheckViolation(err) {
		return &models.AppError{Code: models.CodeValidation, Message: "Constraint violation", Err: err}
	}
	return models.NewStoreUnavailableError(err)
}
