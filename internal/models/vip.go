package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VIPLevel defines a subscription tier and its monthly price.
type VIPLevel struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Level        int             `gorm:"not null;uniqueIndex"`                  // Tier rank, higher is better.
	Name         string          `gorm:"type:text;not null"`                    // Display name.
	MonthlyPrice decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"` // Price for 30 days.
	Description  string          `gorm:"type:text"`                             // Benefit summary.
	Enabled      bool            `gorm:"not null;default:true"`                 // Whether the tier is offered.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (VIPLevel) TableName() string {
	return "vip_levels"
}

// Order statuses.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
	OrderStatusRefunded  = "refunded"
)

// PaymentMethodCardKey marks orders created by card key redemption.
const PaymentMethodCardKey = "card_key"

// VIPOrder records a VIP or points purchase.
type VIPOrder struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Purchasing user.
	User   *User  `gorm:"foreignKey:UserID"` // Purchasing user record.

	VIPLevel     int             `gorm:"column:vip_level;not null;default:0"`   // 0 for points-only orders.
	Price        decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"` // Order price.
	DurationDays int             `gorm:"not null;default:0"`                    // 0 is permanent or not applicable.
	ExpireAt     *time.Time      // Derived from DurationDays.

	PaymentMethod string  `gorm:"type:varchar(32);not null"`           // card_key, alipay, ...
	OrderNo       string  `gorm:"type:varchar(64);not null;uniqueIndex"` // Public order number.
	CardKeyCode   *string `gorm:"type:varchar(32);index"`                // Redeemed card, if any.

	Status string     `gorm:"type:varchar(16);not null;default:'pending';index"` // Lifecycle status.
	PaidAt *time.Time // Payment time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (VIPOrder) TableName() string {
	return "vip_orders"
}
