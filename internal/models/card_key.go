package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Card key types.
const (
	CardKeyTypeVIP    = "vip"
	CardKeyTypePoints = "points"
)

// Card key statuses. A card only ever leaves CardKeyStatusUnused once.
const (
	CardKeyStatusUnused   = "unused"
	CardKeyStatusUsed     = "used"
	CardKeyStatusDisabled = "disabled"
)

// CardKey is a single-use redeemable code granting VIP time or points.
type CardKey struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Code string `gorm:"type:varchar(32);not null;uniqueIndex"` // Grouped redemption code.
	Type string `gorm:"type:varchar(16);not null;index"`       // vip or points.

	VIPLevel int   `gorm:"column:vip_level;not null;default:0"` // Granted level for vip cards.
	VIPDays  int   `gorm:"column:vip_days;not null;default:0"`  // Granted days, 0 is permanent.
	Points   int64 `gorm:"not null;default:0"`                  // Granted points for points cards.

	ValueAmount decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"` // Monetary equivalent.

	Status   string     `gorm:"type:varchar(16);not null;default:'unused';index"` // unused, used or disabled.
	ExpireAt *time.Time // Redemption deadline, if any.
	BatchID  *string    `gorm:"type:varchar(64);index"` // Generation batch.

	CreatedBy *uint64 `gorm:"index"`                // Creating admin.
	Creator   *Admin  `gorm:"foreignKey:CreatedBy"` // Creating admin record.

	UsedBy     *uint64    `gorm:"index"`             // Redeeming user.
	UsedByUser *User      `gorm:"foreignKey:UsedBy"` // Redeeming user record.
	UsedAt     *time.Time // Redemption time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Expired reports whether the card's redemption deadline has passed.
func (k *CardKey) Expired(now time.Time) bool {
	return k != nil && k.ExpireAt != nil && !k.ExpireAt.After(now)
}
