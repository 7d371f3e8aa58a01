package database

import (
	"gorm.io/gorm"

	"go-report-access-service/internal/domain"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.AccessToken{},
		&domain.Purchase{},
		&domain.IdempotencyRecord{},
	)
}
