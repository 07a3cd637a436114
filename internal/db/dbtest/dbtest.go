// Package dbtest opens migrated throwaway databases for tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alcms-dev/alcms-server/internal/db"
	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var seq atomic.Int64

// Open returns a migrated in-memory SQLite database private to the test.
// The pool holds a single connection, so concurrent transactions serialize.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:alcms_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), seq.Add(1))
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

// CreateUser inserts a plain active user.
func CreateUser(t testing.TB, conn *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Password: "x", Active: true}
	if errCreate := conn.Create(user).Error; errCreate != nil {
		t.Fatalf("create user %s: %v", username, errCreate)
	}
	return user
}

// CreateAdmin inserts a super admin.
func CreateAdmin(t testing.TB, conn *gorm.DB, username string) *models.Admin {
	t.Helper()
	admin := &models.Admin{Username: username, Password: "x", Active: true, IsSuperAdmin: true}
	if errCreate := conn.Create(admin).Error; errCreate != nil {
		t.Fatalf("create admin %s: %v", username, errCreate)
	}
	return admin
}

// SeedVIPLevels inserts levels 1..3 priced 9.99, 19.99 and 39.99 per month.
func SeedVIPLevels(t testing.TB, conn *gorm.DB) {
	t.Helper()
	for i, price := range []string{"9.99", "19.99", "39.99"} {
		level := models.VIPLevel{
			Level:        i + 1,
			Name:         fmt.Sprintf("VIP%d", i+1),
			MonthlyPrice: decimal.RequireFromString(price),
			Enabled:      true,
		}
		if errCreate := conn.Create(&level).Error; errCreate != nil {
			t.Fatalf("create vip level: %v", errCreate)
		}
	}
}
