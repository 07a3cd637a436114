// Package referral links invited users to their referrers and pays
// commissions on value-bearing redemptions.
package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dbutil "github.com/alcms-dev/alcms-server/internal/db"
	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/pagination"
	"github.com/alcms-dev/alcms-server/internal/security"
	"github.com/alcms-dev/alcms-server/internal/settings"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteCodeLength   = 8
	maxCodeAttempts    = 5
)

// Referral errors.
var (
	ErrInvalidInviteCode = errors.New("referral: invalid invite code")
	ErrSelfReferral      = errors.New("referral: cannot refer yourself")
	ErrAlreadyReferred   = errors.New("referral: user already referred")
)

// Processor pays the commission owed for one order event.
type Processor interface {
	ProcessCommission(ctx context.Context, userID uint64, order *models.VIPOrder, card *models.CardKey, eventType string) (*models.Commission, error)
}

// Service manages invite codes, referrals and commissions.
type Service struct {
	db *gorm.DB
}

// NewService constructs a referral service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// AssignInviteCode gives the user a fresh unique invite code.
func AssignInviteCode(tx *gorm.DB, userID uint64) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, errCode := security.RandomFromAlphabet(inviteCodeAlphabet, inviteCodeLength)
		if errCode != nil {
			return "", errCode
		}
		errUpdate := tx.Model(&models.User{}).Where("id = ?", userID).Update("invite_code", code).Error
		if errUpdate == nil {
			return code, nil
		}
		if !dbutil.IsUniqueViolation(errUpdate) {
			return "", fmt.Errorf("referral: assign invite code: %w", errUpdate)
		}
	}
	return "", errors.New("referral: could not allocate a unique invite code")
}

// Bind records that referredID registered with inviteCode.
func Bind(tx *gorm.DB, referredID uint64, inviteCode string) (*models.Referral, error) {
	code := strings.ToUpper(strings.TrimSpace(inviteCode))
	if code == "" {
		return nil, ErrInvalidInviteCode
	}
	var referrer models.User
	if errFind := tx.Select("id").Where("invite_code = ?", code).First(&referrer).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidInviteCode
		}
		return nil, errFind
	}
	if referrer.ID == referredID {
		return nil, ErrSelfReferral
	}
	row := models.Referral{ReferrerID: referrer.ID, ReferredID: referredID, InviteCode: code}
	if errCreate := tx.Create(&row).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			return nil, ErrAlreadyReferred
		}
		return nil, fmt.Errorf("referral: bind: %w", errCreate)
	}
	return &row, nil
}

// CommissionAmount applies the configured rate to base.
func CommissionAmount(base decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	rate := settings.Decimal(settings.CommissionRatePercentKey, decimal.NewFromInt(settings.DefaultCommissionRatePercent))
	return base.Mul(rate).Div(decimal.NewFromInt(100)).Round(2), rate
}

// ProcessCommission credits the referrer of userID for the order. A user
// without a referrer yields (nil, nil). Replays return the existing row.
func (s *Service) ProcessCommission(ctx context.Context, userID uint64, order *models.VIPOrder, card *models.CardKey, eventType string) (*models.Commission, error) {
	if order == nil {
		return nil, errors.New("referral: order is required")
	}
	base := order.Price
	if card != nil && card.ValueAmount.IsPositive() {
		base = card.ValueAmount
	}
	if !base.IsPositive() {
		return nil, nil
	}

	var out *models.Commission
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ref models.Referral
		if errFind := tx.Where("referred_id = ?", userID).First(&ref).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return nil
			}
			return errFind
		}

		var existing models.Commission
		errExisting := tx.Where("order_id = ? AND event_type = ?", order.ID, eventType).First(&existing).Error
		if errExisting == nil {
			out = &existing
			return nil
		}
		if !errors.Is(errExisting, gorm.ErrRecordNotFound) {
			return errExisting
		}

		amount, rate := CommissionAmount(base)
		row := models.Commission{
			ReferrerID:  ref.ReferrerID,
			ReferredID:  userID,
			OrderID:     order.ID,
			EventType:   eventType,
			BaseAmount:  base.Round(2),
			RatePercent: rate,
			Amount:      amount,
		}
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("referral: create commission: %w", errCreate)
		}
		if amount.IsPositive() {
			if errUpdate := tx.Model(&models.User{}).
				Where("id = ?", ref.ReferrerID).
				Update("commission_balance", gorm.Expr("commission_balance + ?", amount)).Error; errUpdate != nil {
				return fmt.Errorf("referral: credit referrer: %w", errUpdate)
			}
		}
		out = &row
		return nil
	})
	if errTx != nil {
		if dbutil.IsUniqueViolation(errTx) {
			var existing models.Commission
			if errFind := s.db.WithContext(ctx).Where("order_id = ? AND event_type = ?", order.ID, eventType).First(&existing).Error; errFind == nil {
				return &existing, nil
			}
		}
		return nil, errTx
	}
	return out, nil
}

// ReferralView is a referral with the referred username.
type ReferralView struct {
	models.Referral
	ReferredUsername string `json:"referred_username"`
}

// ListReferrals lists users invited by referrerID.
func (s *Service) ListReferrals(ctx context.Context, referrerID uint64, p pagination.Params) ([]ReferralView, pagination.Page, error) {
	q := s.db.WithContext(ctx).Model(&models.Referral{}).Where("referrals.referrer_id = ?", referrerID)
	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, pagination.Page{}, errCount
	}
	p = p.Normalize()
	var rows []ReferralView
	if errFind := q.Select("referrals.*, users.username AS referred_username").
		Joins("LEFT JOIN users ON users.id = referrals.referred_id").
		Order("referrals.id DESC").
		Offset(p.Offset).
		Limit(p.Limit).
		Scan(&rows).Error; errFind != nil {
		return nil, pagination.Page{}, errFind
	}
	return rows, pagination.NewPage(p, total), nil
}

// ListCommissions lists commissions credited to referrerID.
func (s *Service) ListCommissions(ctx context.Context, referrerID uint64, p pagination.Params) ([]models.Commission, pagination.Page, error) {
	q := s.db.WithContext(ctx).Model(&models.Commission{}).Where("referrer_id = ?", referrerID)
	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, pagination.Page{}, errCount
	}
	p = p.Normalize()
	var rows []models.Commission
	if errFind := q.Order("id DESC").Offset(p.Offset).Limit(p.Limit).Find(&rows).Error; errFind != nil {
		return nil, pagination.Page{}, errFind
	}
	return rows, pagination.NewPage(p, total), nil
}
