package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/alcms-dev/alcms-server/internal/http/api/dto"
	"github.com/alcms-dev/alcms-server/internal/points"
	"github.com/gin-gonic/gin"
)

// PointsHandler handles points ledger and check-in endpoints.
type PointsHandler struct {
	svc *points.Service
}

// NewPointsHandler constructs a PointsHandler.
func NewPointsHandler(svc *points.Service) *PointsHandler {
	return &PointsHandler{svc: svc}
}

// Records returns the current user's points ledger.
func (h *PointsHandler) Records(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rows, page, errList := h.svc.Records(c.Request.Context(), userID, points.RecordFilter{
		Type:   strings.TrimSpace(c.Query("type")),
		Source: strings.TrimSpace(c.Query("source")),
		Page:   pageParams(c),
	})
	if errList != nil {
		writeDomainError(c, errList, "list points records failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": dto.FromPointsRecords(rows), "pagination": page})
}

// transferRequest defines the request body for points transfers.
type transferRequest struct {
	ToUserID uint64 `json:"to_user_id"`
	Amount   int64  `json:"amount"`
	Note     string `json:"note"`
}

// Transfer moves points from the current user to another user.
func (h *PointsHandler) Transfer(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body transferRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.ToUserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to_user_id is required"})
		return
	}

	result, errTransfer := h.svc.Transfer(c.Request.Context(), userID, body.ToUserID, body.Amount, strings.TrimSpace(body.Note))
	if errTransfer != nil {
		writeDomainError(c, errTransfer, "transfer failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Checkin records today's check-in for the current user.
func (h *PointsHandler) Checkin(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, errCheckin := h.svc.Checkin(c.Request.Context(), userID, time.Now().UTC())
	if errCheckin != nil {
		writeDomainError(c, errCheckin, "checkin failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

// CheckinStatus reports whether the current user checked in today.
func (h *PointsHandler) CheckinStatus(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	status, errStatus := h.svc.CheckinStatus(c.Request.Context(), userID, time.Now().UTC())
	if errStatus != nil {
		writeDomainError(c, errStatus, "query checkin status failed")
		return
	}
	c.JSON(http.StatusOK, status)
}
