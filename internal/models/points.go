package models

import "time"

// Points ledger entry types.
const (
	PointsTypeEarn  = "earn"
	PointsTypeSpend = "spend"
)

// Points ledger sources.
const (
	PointsSourceCardKey     = "card_key"
	PointsSourceCheckin     = "checkin"
	PointsSourceTransferIn  = "transfer_in"
	PointsSourceTransferOut = "transfer_out"
	PointsSourceAdmin       = "admin"
)

// PointsRecord is an append-only points ledger row.
type PointsRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"` // Ledger owner.

	Type        string `gorm:"type:varchar(16);not null"`       // earn or spend.
	Amount      int64  `gorm:"not null"`                        // Always positive.
	Source      string `gorm:"type:varchar(32);not null;index"` // What caused the change.
	Description string `gorm:"type:text"`                       // Human readable note.

	RelatedID   *uint64 // Related entity ID.
	RelatedType string  `gorm:"type:varchar(32)"` // Related entity kind.

	BalanceBefore int64 `gorm:"not null"` // Balance prior to the change.
	BalanceAfter  int64 `gorm:"not null"` // Balance after the change.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}

// Checkin records one daily check-in.
type Checkin struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	UserID uint64 `gorm:"not null;uniqueIndex:idx_checkins_user_day"`
	Day    string `gorm:"type:varchar(10);not null;uniqueIndex:idx_checkins_user_day"` // YYYY-MM-DD.
	Streak int    `gorm:"not null;default:1"`
	Points int64  `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}
