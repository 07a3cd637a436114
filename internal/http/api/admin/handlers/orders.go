package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/alcms-dev/alcms-server/internal/http/api/dto"
	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/order"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OrderHandler manages orders.
type OrderHandler struct {
	db *gorm.DB
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(db *gorm.DB) *OrderHandler {
	return &OrderHandler{db: db}
}

// List returns orders matching the query filters.
func (h *OrderHandler) List(c *gin.Context) {
	rows, page, errList := order.List(c.Request.Context(), h.db, order.Filter{
		UserID:        queryUint(c, "user_id"),
		Status:        strings.TrimSpace(c.Query("status")),
		PaymentMethod: strings.TrimSpace(c.Query("payment_method")),
		OrderNo:       strings.TrimSpace(c.Query("order_no")),
		Page:          pageParams(c),
	})
	if errList != nil {
		writeDomainError(c, errList, "list orders failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": dto.FromOrders(rows), "pagination": page})
}

// updateOrderStatusRequest defines the request body for status changes.
type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves an order along its lifecycle.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body updateOrderStatusRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	status := strings.TrimSpace(body.Status)
	if !order.IsValidStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	var updated *models.VIPOrder
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var errUpdate error
		updated, errUpdate = order.UpdateStatus(tx, id, status, time.Now().UTC())
		return errUpdate
	})
	if errTx != nil {
		writeDomainError(c, errTx, "update order failed")
		return
	}
	adminID, _ := readAdminIDFromContext(c)
	log.WithFields(log.Fields{"admin_id": adminID, "order_no": updated.OrderNo, "status": status}).Info("order status changed")
	c.JSON(http.StatusOK, dto.FromOrder(updated))
}
