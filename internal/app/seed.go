package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/security"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BootstrapAdmin holds the credentials of the first super admin.
type BootstrapAdmin struct {
	Username string
	Password string
}

var defaultLevels = []models.VIPLevel{
	{Level: 1, Name: "VIP1", MonthlyPrice: decimal.RequireFromString("9.99"), Description: "Basic membership", Enabled: true},
	{Level: 2, Name: "VIP2", MonthlyPrice: decimal.RequireFromString("19.99"), Description: "Advanced membership", Enabled: true},
	{Level: 3, Name: "VIP3", MonthlyPrice: decimal.RequireFromString("39.99"), Description: "Premium membership", Enabled: true},
}

func bootstrapAdminFromEnv() BootstrapAdmin {
	return BootstrapAdmin{
		Username: strings.TrimSpace(os.Getenv("ALCMS_ADMIN_USERNAME")),
		Password: os.Getenv("ALCMS_ADMIN_PASSWORD"),
	}
}

// SeedDefaults inserts the default VIP levels into an empty level table and
// creates the bootstrap super admin when no admin exists. Both steps are
// no-ops on a populated database.
func SeedDefaults(ctx context.Context, conn *gorm.DB, bootstrap BootstrapAdmin) error {
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var levelCount int64
		if errCount := tx.Model(&models.VIPLevel{}).Count(&levelCount).Error; errCount != nil {
			return fmt.Errorf("app: count vip levels: %w", errCount)
		}
		if levelCount == 0 {
			levels := make([]models.VIPLevel, len(defaultLevels))
			copy(levels, defaultLevels)
			if errCreate := tx.Create(&levels).Error; errCreate != nil {
				return fmt.Errorf("app: seed vip levels: %w", errCreate)
			}
			log.Infof("seeded %d default vip levels", len(levels))
		}

		var adminCount int64
		if errCount := tx.Model(&models.Admin{}).Count(&adminCount).Error; errCount != nil {
			return fmt.Errorf("app: count admins: %w", errCount)
		}
		if adminCount > 0 {
			return nil
		}
		if bootstrap.Username == "" || bootstrap.Password == "" {
			log.Warn("no admin account exists; set ALCMS_ADMIN_USERNAME and ALCMS_ADMIN_PASSWORD to create one")
			return nil
		}
		hash, errHash := security.HashPassword(bootstrap.Password)
		if errHash != nil {
			return fmt.Errorf("app: bootstrap admin password: %w", errHash)
		}
		admin := models.Admin{
			Username:     bootstrap.Username,
			Password:     hash,
			Active:       true,
			IsSuperAdmin: true,
			Permissions:  datatypes.JSON([]byte("[]")),
		}
		if errCreate := tx.Create(&admin).Error; errCreate != nil {
			return fmt.Errorf("app: create bootstrap admin: %w", errCreate)
		}
		log.Infof("created bootstrap admin %s", admin.Username)
		return nil
	})
}
