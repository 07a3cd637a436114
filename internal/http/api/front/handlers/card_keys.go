package handlers

import (
	"net/http"
	"strings"

	"github.com/alcms-dev/alcms-server/internal/cardkey"
	"github.com/alcms-dev/alcms-server/internal/http/api/dto"
	"github.com/gin-gonic/gin"
)

// CardKeyHandler handles card key endpoints for users.
type CardKeyHandler struct {
	store    *cardkey.Store
	redeemer *cardkey.Redeemer
}

// NewCardKeyHandler constructs a CardKeyHandler.
func NewCardKeyHandler(store *cardkey.Store, redeemer *cardkey.Redeemer) *CardKeyHandler {
	return &CardKeyHandler{store: store, redeemer: redeemer}
}

// redeemRequest defines the request body for card redemption.
type redeemRequest struct {
	Code string `json:"code"`
}

// Redeem redeems a card key for the current user.
func (h *CardKeyHandler) Redeem(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body redeemRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	code := strings.TrimSpace(body.Code)
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}

	result, errRedeem := h.redeemer.Redeem(c.Request.Context(), code, userID)
	if errRedeem != nil {
		writeDomainError(c, errRedeem, "redeem failed")
		return
	}
	c.JSON(http.StatusOK, dto.FromRedeemResult(result))
}

// List returns the cards redeemed by the current user.
func (h *CardKeyHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rows, page, errList := h.store.ListRedeemedBy(c.Request.Context(), userID, pageParams(c))
	if errList != nil {
		writeDomainError(c, errList, "list card keys failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"card_keys": dto.FromCardViews(rows), "pagination": page})
}
