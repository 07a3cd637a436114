package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Referral links a referred user to the user who invited them.
type Referral struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ReferrerID uint64 `gorm:"not null;index"`       // Inviting user.
	ReferredID uint64 `gorm:"not null;uniqueIndex"` // Invited user, referred at most once.
	InviteCode string `gorm:"type:varchar(16);not null"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// Commission event types.
const CommissionEventCardRedeem = "card_redeem"

// Commission is a referral payout credited to a referrer.
type Commission struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ReferrerID uint64 `gorm:"not null;index"`                                                   // Credited user.
	ReferredID uint64 `gorm:"not null;index"`                                                   // User whose order paid out.
	OrderID    uint64 `gorm:"not null;uniqueIndex:idx_commissions_order_event"`                 // Source order.
	EventType  string `gorm:"type:varchar(32);not null;uniqueIndex:idx_commissions_order_event"` // card_redeem, ...

	BaseAmount  decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"` // Order value.
	RatePercent decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"` // Applied rate.
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"` // Credited amount.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// Commission outbox statuses.
const (
	CommissionEventPending = "pending"
	CommissionEventDone    = "done"
	CommissionEventFailed  = "failed"
)

// CommissionEvent is an outbox row written in the redemption transaction and
// drained after commit.
type CommissionEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	EventID     string `gorm:"type:varchar(64);not null;uniqueIndex"` // UUID.
	UserID      uint64 `gorm:"not null;index"`                        // Redeeming user.
	OrderID     uint64 `gorm:"not null;index"`                        // Created order.
	CardKeyCode string `gorm:"type:varchar(32)"`                      // Redeemed card.
	EventType   string `gorm:"type:varchar(32);not null"`             // card_redeem.

	Payload datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Order and card snapshot.

	Status       string     `gorm:"type:varchar(16);not null;default:'pending';index"`
	Attempts     int        `gorm:"not null;default:0"`
	LastError    string     `gorm:"type:text"`
	CommissionID *uint64    // Resulting commission, if any.
	ProcessedAt  *time.Time // Completion time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
