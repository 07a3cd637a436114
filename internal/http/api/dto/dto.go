// Package dto shapes domain rows into API response payloads.
package dto

import (
	"time"

	"github.com/alcms-dev/alcms-server/internal/cardkey"
	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/points"
	"github.com/alcms-dev/alcms-server/internal/vip"
)

// CardKey is the card key response payload.
type CardKey struct {
	ID              uint64     `json:"id"`
	Code            string     `json:"code"`
	Type            string     `json:"type"`
	VIPLevel        int        `json:"vip_level"`
	VIPDays         int        `json:"vip_days"`
	Points          int64      `json:"points"`
	ValueAmount     string     `json:"value_amount"`
	Status          string     `json:"status"`
	ExpireAt        *time.Time `json:"expire_at"`
	BatchID         *string    `json:"batch_id"`
	CreatedBy       *uint64    `json:"created_by"`
	CreatorUsername string     `json:"creator_username,omitempty"`
	UsedBy          *uint64    `json:"used_by"`
	UsedByUsername  string     `json:"used_by_username,omitempty"`
	UsedAt          *time.Time `json:"used_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// FromCardKey converts a card row.
func FromCardKey(k *models.CardKey) CardKey {
	return CardKey{
		ID:          k.ID,
		Code:        k.Code,
		Type:        k.Type,
		VIPLevel:    k.VIPLevel,
		VIPDays:     k.VIPDays,
		Points:      k.Points,
		ValueAmount: k.ValueAmount.StringFixed(2),
		Status:      k.Status,
		ExpireAt:    k.ExpireAt,
		BatchID:     k.BatchID,
		CreatedBy:   k.CreatedBy,
		UsedBy:      k.UsedBy,
		UsedAt:      k.UsedAt,
		CreatedAt:   k.CreatedAt,
		UpdatedAt:   k.UpdatedAt,
	}
}

// FromCardView converts a card with its joined usernames.
func FromCardView(v *cardkey.CardView) CardKey {
	out := FromCardKey(&v.CardKey)
	out.CreatorUsername = v.CreatorUsername
	out.UsedByUsername = v.UsedByUsername
	return out
}

// FromCardViews converts a card listing.
func FromCardViews(rows []cardkey.CardView) []CardKey {
	out := make([]CardKey, 0, len(rows))
	for i := range rows {
		out = append(out, FromCardView(&rows[i]))
	}
	return out
}

// Order is the order response payload.
type Order struct {
	ID            uint64     `json:"id"`
	OrderNo       string     `json:"order_no"`
	UserID        uint64     `json:"user_id"`
	VIPLevel      int        `json:"vip_level"`
	Price         string     `json:"price"`
	DurationDays  int        `json:"duration_days"`
	ExpireAt      *time.Time `json:"expire_at"`
	PaymentMethod string     `json:"payment_method"`
	CardKeyCode   *string    `json:"card_key_code"`
	Status        string     `json:"status"`
	PaidAt        *time.Time `json:"paid_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// FromOrder converts an order row.
func FromOrder(o *models.VIPOrder) Order {
	return Order{
		ID:            o.ID,
		OrderNo:       o.OrderNo,
		UserID:        o.UserID,
		VIPLevel:      o.VIPLevel,
		Price:         o.Price.StringFixed(2),
		DurationDays:  o.DurationDays,
		ExpireAt:      o.ExpireAt,
		PaymentMethod: o.PaymentMethod,
		CardKeyCode:   o.CardKeyCode,
		Status:        o.Status,
		PaidAt:        o.PaidAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

// FromOrders converts an order listing.
func FromOrders(rows []models.VIPOrder) []Order {
	out := make([]Order, 0, len(rows))
	for i := range rows {
		out = append(out, FromOrder(&rows[i]))
	}
	return out
}

// Commission is the commission response payload.
type Commission struct {
	ID          uint64    `json:"id"`
	ReferrerID  uint64    `json:"referrer_id"`
	ReferredID  uint64    `json:"referred_id"`
	OrderID     uint64    `json:"order_id"`
	EventType   string    `json:"event_type"`
	BaseAmount  string    `json:"base_amount"`
	RatePercent string    `json:"rate_percent"`
	Amount      string    `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// FromCommission converts a commission row; nil stays nil.
func FromCommission(c *models.Commission) *Commission {
	if c == nil {
		return nil
	}
	return &Commission{
		ID:          c.ID,
		ReferrerID:  c.ReferrerID,
		ReferredID:  c.ReferredID,
		OrderID:     c.OrderID,
		EventType:   c.EventType,
		BaseAmount:  c.BaseAmount.StringFixed(2),
		RatePercent: c.RatePercent.StringFixed(2),
		Amount:      c.Amount.StringFixed(2),
		CreatedAt:   c.CreatedAt,
	}
}

// FromCommissions converts a commission listing.
func FromCommissions(rows []models.Commission) []*Commission {
	out := make([]*Commission, 0, len(rows))
	for i := range rows {
		out = append(out, FromCommission(&rows[i]))
	}
	return out
}

// Redemption is the redemption response payload.
type Redemption struct {
	CardKey    CardKey        `json:"card_key"`
	VIP        *vip.Result    `json:"vip"`
	Points     *points.Result `json:"points"`
	Order      Order          `json:"order"`
	Commission *Commission    `json:"commission"`
}

// FromRedeemResult converts a redemption outcome.
func FromRedeemResult(r *cardkey.RedeemResult) Redemption {
	return Redemption{
		CardKey:    FromCardKey(r.CardKey),
		VIP:        r.VIP,
		Points:     r.Points,
		Order:      FromOrder(r.Order),
		Commission: FromCommission(r.Commission),
	}
}

// PointsRecord is the ledger row response payload.
type PointsRecord struct {
	ID            uint64    `json:"id"`
	Type          string    `json:"type"`
	Amount        int64     `json:"amount"`
	Source        string    `json:"source"`
	Description   string    `json:"description"`
	RelatedID     *uint64   `json:"related_id"`
	RelatedType   string    `json:"related_type"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	CreatedAt     time.Time `json:"created_at"`
}

// FromPointsRecords converts a ledger listing.
func FromPointsRecords(rows []models.PointsRecord) []PointsRecord {
	out := make([]PointsRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, PointsRecord{
			ID:            r.ID,
			Type:          r.Type,
			Amount:        r.Amount,
			Source:        r.Source,
			Description:   r.Description,
			RelatedID:     r.RelatedID,
			RelatedType:   r.RelatedType,
			BalanceBefore: r.BalanceBefore,
			BalanceAfter:  r.BalanceAfter,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out
}

// VIPLevel is the level response payload.
type VIPLevel struct {
	Level        int    `json:"level"`
	Name         string `json:"name"`
	MonthlyPrice string `json:"monthly_price"`
	Description  string `json:"description"`
	Enabled      bool   `json:"enabled"`
}

// FromVIPLevel converts a level row.
func FromVIPLevel(l *models.VIPLevel) VIPLevel {
	return VIPLevel{
		Level:        l.Level,
		Name:         l.Name,
		MonthlyPrice: l.MonthlyPrice.StringFixed(2),
		Description:  l.Description,
		Enabled:      l.Enabled,
	}
}

// FromVIPLevels converts a level listing.
func FromVIPLevels(rows []models.VIPLevel) []VIPLevel {
	out := make([]VIPLevel, 0, len(rows))
	for i := range rows {
		out = append(out, FromVIPLevel(&rows[i]))
	}
	return out
}
