package handlers

import (
	"net/http"

	"github.com/alcms-dev/alcms-server/internal/http/api/dto"
	"github.com/alcms-dev/alcms-server/internal/vip"
	"github.com/gin-gonic/gin"
)

// VIPLevelHandler lists the VIP tiers on offer.
type VIPLevelHandler struct {
	levels *vip.Levels
}

// NewVIPLevelHandler constructs a VIPLevelHandler.
func NewVIPLevelHandler(levels *vip.Levels) *VIPLevelHandler {
	return &VIPLevelHandler{levels: levels}
}

// List returns enabled VIP levels.
func (h *VIPLevelHandler) List(c *gin.Context) {
	rows, errList := h.levels.List(c.Request.Context(), false)
	if errList != nil {
		writeDomainError(c, errList, "list vip levels failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"levels": dto.FromVIPLevels(rows)})
}
