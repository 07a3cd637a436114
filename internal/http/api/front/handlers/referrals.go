package handlers

import (
	"net/http"
	"time"

	"github.com/alcms-dev/alcms-server/internal/http/api/dto"
	"github.com/alcms-dev/alcms-server/internal/referral"
	"github.com/gin-gonic/gin"
)

// ReferralHandler handles referral and commission endpoints.
type ReferralHandler struct {
	svc *referral.Service
}

// NewReferralHandler constructs a ReferralHandler.
func NewReferralHandler(svc *referral.Service) *ReferralHandler {
	return &ReferralHandler{svc: svc}
}

// referralDTO defines a referred user entry.
type referralDTO struct {
	ReferredID       uint64    `json:"referred_id"`
	ReferredUsername string    `json:"referred_username"`
	InviteCode       string    `json:"invite_code"`
	CreatedAt        time.Time `json:"created_at"`
}

// ListReferrals returns the users invited by the current user.
func (h *ReferralHandler) ListReferrals(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rows, page, errList := h.svc.ListReferrals(c.Request.Context(), userID, pageParams(c))
	if errList != nil {
		writeDomainError(c, errList, "list referrals failed")
		return
	}
	out := make([]referralDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, referralDTO{
			ReferredID:       r.ReferredID,
			ReferredUsername: r.ReferredUsername,
			InviteCode:       r.InviteCode,
			CreatedAt:        r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"referrals": out, "pagination": page})
}

// ListCommissions returns the commissions credited to the current user.
func (h *ReferralHandler) ListCommissions(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rows, page, errList := h.svc.ListCommissions(c.Request.Context(), userID, pageParams(c))
	if errList != nil {
		writeDomainError(c, errList, "list commissions failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"commissions": dto.FromCommissions(rows), "pagination": page})
}
