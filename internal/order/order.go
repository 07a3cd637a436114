package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/pagination"
	"github.com/alcms-dev/alcms-server/internal/security"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order errors.
var (
	ErrNotFound          = errors.New("order: not found")
	ErrInvalidTransition = errors.New("order: invalid status transition")
)

// transitions lists the statuses reachable from each status.
var transitions = map[string][]string{
	models.OrderStatusPending: {models.OrderStatusPaid, models.OrderStatusCancelled},
	models.OrderStatusPaid:    {models.OrderStatusRefunded},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValidStatus reports whether status is a known order status.
func IsValidStatus(status string) bool {
	switch status {
	case models.OrderStatusPending, models.OrderStatusPaid, models.OrderStatusCancelled, models.OrderStatusRefunded:
		return true
	}
	return false
}

// CreateParams describes a new order.
type CreateParams struct {
	UserID        uint64
	VIPLevel      int
	Price         decimal.Decimal
	DurationDays  int
	PaymentMethod string
	CardKeyCode   *string
}

// GenerateOrderNo returns VIP<yyyyMMddHHmmss><userID><4 hex>.
func GenerateOrderNo(userID uint64, now time.Time) (string, error) {
	suffix, err := security.RandomHexUpper(2)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("VIP%s%d%s", now.UTC().Format("20060102150405"), userID, suffix), nil
}

// Create inserts a pending order using tx.
func Create(tx *gorm.DB, p CreateParams, now time.Time) (*models.VIPOrder, error) {
	if p.UserID == 0 {
		return nil, errors.New("order: missing user")
	}
	if p.DurationDays < 0 {
		return nil, errors.New("order: negative duration")
	}
	if p.Price.IsNegative() {
		return nil, errors.New("order: negative price")
	}
	orderNo, err := GenerateOrderNo(p.UserID, now)
	if err != nil {
		return nil, err
	}
	var expireAt *time.Time
	if p.DurationDays > 0 {
		exp := now.UTC().AddDate(0, 0, p.DurationDays)
		expireAt = &exp
	}
	o := &models.VIPOrder{
		UserID:        p.UserID,
		VIPLevel:      p.VIPLevel,
		Price:         p.Price.Round(2),
		DurationDays:  p.DurationDays,
		ExpireAt:      expireAt,
		PaymentMethod: strings.TrimSpace(p.PaymentMethod),
		OrderNo:       orderNo,
		CardKeyCode:   p.CardKeyCode,
		Status:        models.OrderStatusPending,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
	if errCreate := tx.Create(o).Error; errCreate != nil {
		return nil, fmt.Errorf("order: create: %w", errCreate)
	}
	return o, nil
}

// UpdateStatus moves an order to next if the transition is allowed.
// The update is conditional on the status that was read, so a concurrent
// change makes this call fail with ErrInvalidTransition.
func UpdateStatus(tx *gorm.DB, id uint64, next string, now time.Time) (*models.VIPOrder, error) {
	var o models.VIPOrder
	if errFind := tx.First(&o, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("order: load: %w", errFind)
	}
	if !CanTransition(o.Status, next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}

	updates := map[string]any{"status": next, "updated_at": now.UTC()}
	if next == models.OrderStatusPaid {
		updates["paid_at"] = now.UTC()
	}
	res := tx.Model(&models.VIPOrder{}).Where("id = ? AND status = ?", o.ID, o.Status).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("order: update status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, o.OrderNo)
	}

	o.Status = next
	o.UpdatedAt = now.UTC()
	if next == models.OrderStatusPaid {
		paidAt := now.UTC()
		o.PaidAt = &paidAt
	}
	return &o, nil
}

// Filter narrows order listings.
type Filter struct {
	UserID        uint64
	Status        string
	PaymentMethod string
	OrderNo       string
	Page          pagination.Params
}

// List returns orders matching f, newest first, and the page descriptor.
func List(ctx context.Context, db *gorm.DB, f Filter) ([]models.VIPOrder, pagination.Page, error) {
	q := db.WithContext(ctx).Model(&models.VIPOrder{})
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PaymentMethod != "" {
		q = q.Where("payment_method = ?", f.PaymentMethod)
	}
	if f.OrderNo != "" {
		q = q.Where("order_no = ?", f.OrderNo)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, pagination.Page{}, errCount
	}
	params := f.Page.Normalize()
	var rows []models.VIPOrder
	if errFind := q.Order("created_at DESC, id DESC").
		Offset(params.Offset).
		Limit(params.Limit).
		Find(&rows).Error; errFind != nil {
		return nil, pagination.Page{}, errFind
	}
	return rows, pagination.NewPage(params, total), nil
}
