package database

import (
	"fmt"

	"gorm.io/gorm"

	"marketplace/internal/model"
	"marketplace/pkg/log"
)

// AutoMigrate auto migrate database table schema
func AutoMigrate(db *gorm.DB) error {
	log.Info("Starting database migration...")

	models := []interface{}{
		&model.User{},
		&model.Tenant{},
		&model.Category{},
		&model.Product{},
		&model.ProductVariant{},
		&model.Discount{},
		&model.CartItem{},
		&model.Wishlist{},
		&model.Order{},
		&model.OrderItem{},
	}

	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", m, err)
		}
	}

	log.Info("Database migration completed")
	return nil
}
