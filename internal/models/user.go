package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents an end-user account.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Email    string `gorm:"type:text"`                      // Contact email.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Active   bool `gorm:"not null;default:true"`  // Whether the account is activated.
	Disabled bool `gorm:"not null;default:false"` // Whether the account is banned.

	InviteCode *string `gorm:"type:varchar(16);uniqueIndex"` // Code other users register with.

	Points      int64 `gorm:"not null;default:0"` // Spendable points balance.
	TotalPoints int64 `gorm:"not null;default:0"` // Lifetime points earned.

	IsVIP          bool       `gorm:"column:is_vip;not null;default:false"` // VIP flag.
	VIPLevel       int        `gorm:"column:vip_level;not null;default:0"`  // Current VIP level.
	VIPExpireAt    *time.Time `gorm:"column:vip_expire_at"`                 // Nil means permanent when IsVIP.
	VIPActivatedAt *time.Time `gorm:"column:vip_activated_at"`              // First VIP activation.

	CommissionBalance decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"` // Referral earnings.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// VIPActive reports whether the VIP grant is in effect at the given time.
func (u *User) VIPActive(now time.Time) bool {
	if u == nil || !u.IsVIP {
		return false
	}
	return u.VIPExpireAt == nil || u.VIPExpireAt.After(now)
}

// UserRole grants a named role to a user.
type UserRole struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	UserID uint64 `gorm:"not null;uniqueIndex:idx_user_roles_user_role"`
	Role   string `gorm:"type:varchar(32);not null;uniqueIndex:idx_user_roles_user_role"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}
