// Package points maintains user points balances and the append-only ledger.
package points

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/alcms-dev/alcms-server/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Points errors.
var (
	ErrInvalidAmount       = errors.New("points: amount must be positive")
	ErrInsufficientBalance = errors.New("points: insufficient balance")
	ErrUserNotFound        = errors.New("points: user not found")
	ErrSelfTransfer        = errors.New("points: cannot transfer to yourself")
	ErrAlreadyCheckedIn    = errors.New("points: already checked in today")
)

// Change describes one balance movement.
type Change struct {
	UserID      uint64
	Amount      int64
	Source      string
	Description string
	RelatedID   *uint64
	RelatedType string
}

// Result reports a committed balance movement.
type Result struct {
	RecordID      uint64 `json:"record_id"`
	UserID        uint64 `json:"user_id"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	Source        string `json:"source"`
	BalanceBefore int64  `json:"balance_before"`
	BalanceAfter  int64  `json:"balance_after"`
}

// Add credits c.Amount points and appends an earn record. Lifetime
// total_points grows by the same amount.
func Add(tx *gorm.DB, c Change) (*Result, error) {
	return apply(tx, c, models.PointsTypeEarn)
}

// Deduct debits c.Amount points and appends a spend record. The balance
// never goes negative.
func Deduct(tx *gorm.DB, c Change) (*Result, error) {
	return apply(tx, c, models.PointsTypeSpend)
}

func apply(tx *gorm.DB, c Change, kind string) (*Result, error) {
	if c.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(c.Source) == "" {
		return nil, errors.New("points: source is required")
	}

	var user models.User
	if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "points", "total_points").
		First(&user, c.UserID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("points: load user: %w", errFind)
	}

	before := user.Points
	after := before + c.Amount
	updates := map[string]any{"points": after}
	if kind == models.PointsTypeSpend {
		after = before - c.Amount
		if after < 0 {
			return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, before, c.Amount)
		}
		updates["points"] = after
	} else {
		if c.Amount > math.MaxInt64-before || c.Amount > math.MaxInt64-user.TotalPoints {
			return nil, fmt.Errorf("%w: balance would overflow", ErrInvalidAmount)
		}
		updates["total_points"] = gorm.Expr("total_points + ?", c.Amount)
	}

	if errUpdate := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; errUpdate != nil {
		return nil, fmt.Errorf("points: update balance: %w", errUpdate)
	}

	record := models.PointsRecord{
		UserID:        user.ID,
		Type:          kind,
		Amount:        c.Amount,
		Source:        c.Source,
		Description:   strings.TrimSpace(c.Description),
		RelatedID:     c.RelatedID,
		RelatedType:   c.RelatedType,
		BalanceBefore: before,
		BalanceAfter:  after,
	}
	if errCreate := tx.Create(&record).Error; errCreate != nil {
		return nil, fmt.Errorf("points: append record: %w", errCreate)
	}

	return &Result{
		RecordID:      record.ID,
		UserID:        user.ID,
		Type:          kind,
		Amount:        c.Amount,
		Source:        c.Source,
		BalanceBefore: before,
		BalanceAfter:  after,
	}, nil
}
