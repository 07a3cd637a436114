package db

import (
	"fmt"

	"github.com/alcms-dev/alcms-server/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the service owns.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.User{},
		&models.UserRole{},
		&models.Admin{},
		&models.Setting{},
		&models.VIPLevel{},
		&models.CardKey{},
		&models.VIPOrder{},
		&models.PointsRecord{},
		&models.Checkin{},
		&models.Referral{},
		&models.Commission{},
		&models.CommissionEvent{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
