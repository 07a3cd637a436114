package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/alcms-dev/alcms-server/internal/cardkey"
	"github.com/alcms-dev/alcms-server/internal/http/api/dto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// CardKeyHandler manages card keys.
type CardKeyHandler struct {
	store *cardkey.Store
}

// NewCardKeyHandler constructs a CardKeyHandler.
func NewCardKeyHandler(store *cardkey.Store) *CardKeyHandler {
	return &CardKeyHandler{store: store}
}

// createCardKeyRequest defines the request body for card creation.
type createCardKeyRequest struct {
	Type        string     `json:"type"`
	VIPLevel    int        `json:"vip_level"`
	VIPDays     int        `json:"vip_days"`
	Points      int64      `json:"points"`
	ValueAmount *string    `json:"value_amount"`
	ExpireAt    *time.Time `json:"expire_at"`
	Count       int        `json:"count"`
}

func (r createCardKeyRequest) params(c *gin.Context) (cardkey.CreateParams, bool) {
	p := cardkey.CreateParams{
		Type:     strings.TrimSpace(r.Type),
		VIPLevel: r.VIPLevel,
		VIPDays:  r.VIPDays,
		Points:   r.Points,
		ExpireAt: r.ExpireAt,
	}
	if r.ValueAmount != nil && strings.TrimSpace(*r.ValueAmount) != "" {
		v, errParse := decimal.NewFromString(strings.TrimSpace(*r.ValueAmount))
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid value_amount"})
			return p, false
		}
		p.ValueAmount = &v
	}
	return p, true
}

// Create creates a single card key.
func (h *CardKeyHandler) Create(c *gin.Context) {
	var body createCardKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, ok := body.params(c)
	if !ok {
		return
	}
	adminID, _ := readAdminIDFromContext(c)

	card, errCreate := h.store.Create(c.Request.Context(), p, &adminID)
	if errCreate != nil {
		writeDomainError(c, errCreate, "create card key failed")
		return
	}
	c.JSON(http.StatusCreated, dto.FromCardKey(card))
}

// CreateBatch creates count card keys sharing one batch id.
func (h *CardKeyHandler) CreateBatch(c *gin.Context) {
	var body createCardKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, ok := body.params(c)
	if !ok {
		return
	}
	adminID, _ := readAdminIDFromContext(c)

	batchID, cards, errCreate := h.store.CreateBatch(c.Request.Context(), p, body.Count, &adminID)
	if errCreate != nil {
		writeDomainError(c, errCreate, "create card key batch failed")
		return
	}
	log.WithFields(log.Fields{"admin_id": adminID, "batch_id": batchID, "count": len(cards)}).Info("card key batch created")

	out := make([]dto.CardKey, 0, len(cards))
	for i := range cards {
		out = append(out, dto.FromCardKey(&cards[i]))
	}
	c.JSON(http.StatusCreated, gin.H{"batch_id": batchID, "count": len(out), "card_keys": out})
}

// List returns card keys matching the query filters.
func (h *CardKeyHandler) List(c *gin.Context) {
	rows, page, errList := h.store.List(c.Request.Context(), cardkey.Filter{
		Status:    strings.TrimSpace(c.Query("status")),
		Type:      strings.TrimSpace(c.Query("type")),
		BatchID:   strings.TrimSpace(c.Query("batch_id")),
		CreatedBy: queryUint(c, "created_by"),
		UsedBy:    queryUint(c, "used_by"),
		Code:      strings.TrimSpace(c.Query("code")),
		Page:      pageParams(c),
	})
	if errList != nil {
		writeDomainError(c, errList, "list card keys failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"card_keys": dto.FromCardViews(rows), "pagination": page})
}

// Get returns one card key by id.
func (h *CardKeyHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	view, errGet := h.store.GetByID(c.Request.Context(), id)
	if errGet != nil {
		writeDomainError(c, errGet, "query card key failed")
		return
	}
	c.JSON(http.StatusOK, dto.FromCardView(view))
}

// Stats returns counts and values, optionally for one batch.
func (h *CardKeyHandler) Stats(c *gin.Context) {
	stats, errStats := h.store.Stats(c.Request.Context(), strings.TrimSpace(c.Query("batch_id")))
	if errStats != nil {
		writeDomainError(c, errStats, "card key stats failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":          stats.Total,
		"unused":         stats.Unused,
		"used":           stats.Used,
		"disabled":       stats.Disabled,
		"vip":            stats.VIP,
		"points":         stats.Points,
		"total_value":    stats.TotalValue.StringFixed(2),
		"redeemed_value": stats.RedeemedValue.StringFixed(2),
	})
}

// Batches lists batch summaries.
func (h *CardKeyHandler) Batches(c *gin.Context) {
	rows, page, errList := h.store.ListBatches(c.Request.Context(), pageParams(c))
	if errList != nil {
		writeDomainError(c, errList, "list batches failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": rows, "pagination": page})
}

// Disable disables an unused card key.
func (h *CardKeyHandler) Disable(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	n, errDisable := h.store.Disable(c.Request.Context(), id)
	if errDisable != nil {
		writeDomainError(c, errDisable, "disable card key failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"disabled": n})
}

// Delete deletes an unused card key. Used and disabled cards are kept.
func (h *CardKeyHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	n, errDelete := h.store.Delete(c.Request.Context(), id)
	if errDelete != nil {
		writeDomainError(c, errDelete, "delete card key failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// DisableBatch disables the unused cards of a batch.
func (h *CardKeyHandler) DisableBatch(c *gin.Context) {
	batchID := strings.TrimSpace(c.Param("batch_id"))
	if batchID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch_id"})
		return
	}
	n, errDisable := h.store.DisableBatch(c.Request.Context(), batchID)
	if errDisable != nil {
		writeDomainError(c, errDisable, "disable batch failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch_id": batchID, "disabled": n})
}

// DeleteBatch deletes the unused cards of a batch.
func (h *CardKeyHandler) DeleteBatch(c *gin.Context) {
	batchID := strings.TrimSpace(c.Param("batch_id"))
	if batchID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch_id"})
		return
	}
	n, errDelete := h.store.DeleteBatch(c.Request.Context(), batchID)
	if errDelete != nil {
		writeDomainError(c, errDelete, "delete batch failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch_id": batchID, "deleted": n})
}
