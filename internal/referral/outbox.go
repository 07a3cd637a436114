package referral

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/pagination"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// eventPayload is the order and card snapshot stored on an outbox row.
type eventPayload struct {
	OrderNo     string `json:"order_no"`
	Price       string `json:"price"`
	CardType    string `json:"card_type,omitempty"`
	ValueAmount string `json:"value_amount,omitempty"`
}

// Enqueue writes a pending commission event using tx, so the event commits
// or rolls back with the order that produced it.
func Enqueue(tx *gorm.DB, userID uint64, order *models.VIPOrder, card *models.CardKey, eventType string) (*models.CommissionEvent, error) {
	payload := eventPayload{OrderNo: order.OrderNo, Price: order.Price.StringFixed(2)}
	code := ""
	if card != nil {
		code = card.Code
		payload.CardType = card.Type
		payload.ValueAmount = card.ValueAmount.StringFixed(2)
	}
	raw, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return nil, errMarshal
	}
	ev := models.CommissionEvent{
		EventID:     uuid.NewString(),
		UserID:      userID,
		OrderID:     order.ID,
		CardKeyCode: code,
		EventType:   eventType,
		Payload:     datatypes.JSON(raw),
		Status:      models.CommissionEventPending,
	}
	if errCreate := tx.Create(&ev).Error; errCreate != nil {
		return nil, fmt.Errorf("referral: enqueue event: %w", errCreate)
	}
	return &ev, nil
}

// EventFilter narrows outbox listings.
type EventFilter struct {
	Status string
	UserID uint64
	Page   pagination.Params
}

// ListEvents returns outbox rows, newest first.
func ListEvents(ctx context.Context, db *gorm.DB, f EventFilter) ([]models.CommissionEvent, pagination.Page, error) {
	q := db.WithContext(ctx).Model(&models.CommissionEvent{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, pagination.Page{}, errCount
	}
	p := f.Page.Normalize()
	var rows []models.CommissionEvent
	if errFind := q.Order("id DESC").Offset(p.Offset).Limit(p.Limit).Find(&rows).Error; errFind != nil {
		return nil, pagination.Page{}, errFind
	}
	return rows, pagination.NewPage(p, total), nil
}
