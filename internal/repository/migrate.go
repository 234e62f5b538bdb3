package repository

import (
	"fmt"

	"gorm.io/gorm"

	"andromeda-healthcare/internal/model"
)

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.AuthEvent{}); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	return nil
}
