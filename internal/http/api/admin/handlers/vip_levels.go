package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/alcms-dev/alcms-server/internal/http/api/dto"
	"github.com/alcms-dev/alcms-server/internal/vip"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// VIPLevelHandler manages VIP level definitions.
type VIPLevelHandler struct {
	levels *vip.Levels
}

// NewVIPLevelHandler constructs a VIPLevelHandler.
func NewVIPLevelHandler(levels *vip.Levels) *VIPLevelHandler {
	return &VIPLevelHandler{levels: levels}
}

// List returns every level including disabled ones.
func (h *VIPLevelHandler) List(c *gin.Context) {
	rows, errList := h.levels.List(c.Request.Context(), true)
	if errList != nil {
		writeDomainError(c, errList, "list vip levels failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"levels": dto.FromVIPLevels(rows)})
}

// saveLevelRequest defines the request body for level upserts.
type saveLevelRequest struct {
	Name         string `json:"name"`
	MonthlyPrice string `json:"monthly_price"`
	Description  string `json:"description"`
	Enabled      *bool  `json:"enabled"`
}

func parseLevelParam(c *gin.Context) (int, bool) {
	level, errParse := strconv.Atoi(strings.TrimSpace(c.Param("level")))
	if errParse != nil || level <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid level"})
		return 0, false
	}
	return level, true
}

// Save creates or replaces the level in the path.
func (h *VIPLevelHandler) Save(c *gin.Context) {
	level, ok := parseLevelParam(c)
	if !ok {
		return
	}
	var body saveLevelRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	price, errPrice := decimal.NewFromString(strings.TrimSpace(body.MonthlyPrice))
	if errPrice != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid monthly_price"})
		return
	}
	enabled := true
	if body.Enabled != nil {
		enabled = *body.Enabled
	}

	row, errSave := h.levels.Save(c.Request.Context(), vip.LevelInput{
		Level:        level,
		Name:         body.Name,
		MonthlyPrice: price,
		Description:  body.Description,
		Enabled:      enabled,
	})
	if errSave != nil {
		writeDomainError(c, errSave, "save vip level failed")
		return
	}
	c.JSON(http.StatusOK, dto.FromVIPLevel(row))
}

// Delete removes a level definition.
func (h *VIPLevelHandler) Delete(c *gin.Context) {
	level, ok := parseLevelParam(c)
	if !ok {
		return
	}
	if errDelete := h.levels.Delete(c.Request.Context(), level); errDelete != nil {
		writeDomainError(c, errDelete, "delete vip level failed")
		return
	}
	c.Status(http.StatusNoContent)
}
