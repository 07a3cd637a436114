package cardkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/order"
	"github.com/alcms-dev/alcms-server/internal/points"
	"github.com/alcms-dev/alcms-server/internal/referral"
	"github.com/alcms-dev/alcms-server/internal/util"
	"github.com/alcms-dev/alcms-server/internal/vip"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CommissionDispatcher pays out a committed commission event.
type CommissionDispatcher interface {
	Dispatch(ctx context.Context, ev *models.CommissionEvent) (*models.Commission, error)
}

// Redeemer applies card rewards.
type Redeemer struct {
	db          *gorm.DB
	commissions CommissionDispatcher
	now         func() time.Time
}

// NewRedeemer constructs a redeemer. commissions may be nil, in which case
// events are left for the background dispatcher.
func NewRedeemer(db *gorm.DB, commissions CommissionDispatcher) *Redeemer {
	return &Redeemer{db: db, commissions: commissions, now: time.Now}
}

// RedeemResult is the outcome of a successful redemption.
type RedeemResult struct {
	CardKey    *models.CardKey
	VIP        *vip.Result
	Points     *points.Result
	Order      *models.VIPOrder
	Commission *models.Commission
}

// Redeem marks the card used by userID and applies its reward, all in one
// transaction. A failure leaves the card unused and the account untouched.
// The commission is paid after commit and its failure does not affect the
// redemption.
func (r *Redeemer) Redeem(ctx context.Context, code string, userID uint64) (*RedeemResult, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrNotFound
	}
	now := r.now().UTC()

	var (
		out   RedeemResult
		event *models.CommissionEvent
	)
	errTx := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var card models.CardKey
		if errFind := tx.Where("code = ?", code).First(&card).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return errFind
		}
		switch card.Status {
		case models.CardKeyStatusUnused:
		case models.CardKeyStatusDisabled:
			return ErrDisabled
		default:
			return ErrAlreadyRedeemed
		}
		if card.Expired(now) {
			return ErrExpired
		}

		var user models.User
		if errUser := tx.Select("id").First(&user, userID).Error; errUser != nil {
			if errors.Is(errUser, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return errUser
		}

		res := tx.Model(&models.CardKey{}).
			Where("code = ? AND status = ?", code, models.CardKeyStatusUnused).
			Updates(map[string]any{
				"status":  models.CardKeyStatusUsed,
				"used_by": userID,
				"used_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("mark card used: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyRedeemed
		}
		card.Status = models.CardKeyStatusUsed
		card.UsedBy = &userID
		card.UsedAt = &now

		reward, errReward := RewardOf(&card)
		if errReward != nil {
			return errReward
		}
		orderParams := order.CreateParams{
			UserID:        userID,
			Price:         card.ValueAmount,
			PaymentMethod: models.PaymentMethodCardKey,
			CardKeyCode:   &card.Code,
		}
		switch rw := reward.(type) {
		case VIPReward:
			granted, errGrant := vip.Grant(tx, userID, rw.Level, rw.Days, now)
			if errGrant != nil {
				return mapUserErr(errGrant, vip.ErrUserNotFound)
			}
			out.VIP = granted
			orderParams.VIPLevel = rw.Level
			orderParams.DurationDays = rw.Days
		case PointsReward:
			credited, errAdd := points.Add(tx, points.Change{
				UserID:      userID,
				Amount:      rw.Amount,
				Source:      models.PointsSourceCardKey,
				Description: "card key " + card.Code,
				RelatedID:   &card.ID,
				RelatedType: "card_key",
			})
			if errAdd != nil {
				return mapUserErr(errAdd, points.ErrUserNotFound)
			}
			out.Points = credited
		default:
			return fmt.Errorf("%w: unhandled reward %T", ErrInvalidParams, reward)
		}

		created, errOrder := order.Create(tx, orderParams, now)
		if errOrder != nil {
			return errOrder
		}
		paid, errPaid := order.UpdateStatus(tx, created.ID, models.OrderStatusPaid, now)
		if errPaid != nil {
			return errPaid
		}
		out.Order = paid

		if card.ValueAmount.IsPositive() {
			ev, errEnqueue := referral.Enqueue(tx, userID, paid, &card, models.CommissionEventCardRedeem)
			if errEnqueue != nil {
				return errEnqueue
			}
			event = ev
		}
		out.CardKey = &card
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	fields := log.Fields{"code": util.MaskSecret(code), "user_id": userID, "order_no": out.Order.OrderNo, "type": out.CardKey.Type}
	if event != nil && r.commissions != nil {
		commission, errCommission := r.commissions.Dispatch(ctx, event)
		if errCommission != nil {
			log.WithError(errCommission).WithFields(fields).Warn("card key redeem: commission deferred")
		} else {
			out.Commission = commission
		}
	}
	log.WithFields(fields).Info("card key redeemed")
	return &out, nil
}

func mapUserErr(err, notFound error) error {
	if errors.Is(err, notFound) {
		return ErrUserNotFound
	}
	return err
}
