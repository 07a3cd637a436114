package handlers

import (
	"net/http"
	"strings"

	"github.com/alcms-dev/alcms-server/internal/http/api/dto"
	"github.com/alcms-dev/alcms-server/internal/order"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// OrderHandler handles order endpoints for users.
type OrderHandler struct {
	db *gorm.DB
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(db *gorm.DB) *OrderHandler {
	return &OrderHandler{db: db}
}

// List returns the current user's orders, newest first.
func (h *OrderHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rows, page, errList := order.List(c.Request.Context(), h.db, order.Filter{
		UserID: userID,
		Status: strings.TrimSpace(c.Query("status")),
		Page:   pageParams(c),
	})
	if errList != nil {
		writeDomainError(c, errList, "list orders failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": dto.FromOrders(rows), "pagination": page})
}
