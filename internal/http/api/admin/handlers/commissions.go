package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/referral"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CommissionHandler exposes the commission outbox.
type CommissionHandler struct {
	db         *gorm.DB
	dispatcher *referral.Dispatcher
}

// NewCommissionHandler constructs a CommissionHandler.
func NewCommissionHandler(db *gorm.DB, dispatcher *referral.Dispatcher) *CommissionHandler {
	return &CommissionHandler{db: db, dispatcher: dispatcher}
}

// commissionEventDTO defines the outbox row payload.
type commissionEventDTO struct {
	ID           uint64          `json:"id"`
	EventID      string          `json:"event_id"`
	UserID       uint64          `json:"user_id"`
	OrderID      uint64          `json:"order_id"`
	CardKeyCode  string          `json:"card_key_code"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	Attempts     int             `json:"attempts"`
	LastError    string          `json:"last_error,omitempty"`
	CommissionID *uint64         `json:"commission_id"`
	ProcessedAt  *time.Time      `json:"processed_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func toCommissionEventDTO(ev *models.CommissionEvent) commissionEventDTO {
	return commissionEventDTO{
		ID:           ev.ID,
		EventID:      ev.EventID,
		UserID:       ev.UserID,
		OrderID:      ev.OrderID,
		CardKeyCode:  ev.CardKeyCode,
		EventType:    ev.EventType,
		Payload:      json.RawMessage(ev.Payload),
		Status:       ev.Status,
		Attempts:     ev.Attempts,
		LastError:    ev.LastError,
		CommissionID: ev.CommissionID,
		ProcessedAt:  ev.ProcessedAt,
		CreatedAt:    ev.CreatedAt,
		UpdatedAt:    ev.UpdatedAt,
	}
}

// List returns outbox events, newest first.
func (h *CommissionHandler) List(c *gin.Context) {
	rows, page, errList := referral.ListEvents(c.Request.Context(), h.db, referral.EventFilter{
		Status: strings.TrimSpace(c.Query("status")),
		UserID: queryUint(c, "user_id"),
		Page:   pageParams(c),
	})
	if errList != nil {
		writeDomainError(c, errList, "list commission events failed")
		return
	}
	out := make([]commissionEventDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toCommissionEventDTO(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"events": out, "pagination": page})
}

// Retry puts a failed event back in the queue.
func (h *CommissionHandler) Retry(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if h.dispatcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "commission dispatcher disabled"})
		return
	}
	ev, errRetry := h.dispatcher.Retry(c.Request.Context(), id)
	if errRetry != nil {
		writeDomainError(c, errRetry, "retry commission event failed")
		return
	}
	c.JSON(http.StatusOK, toCommissionEventDTO(ev))
}
