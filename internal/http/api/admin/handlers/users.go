package handlers

import (
	"net/http"
	"strings"
	"time"

	dbutil "github.com/alcms-dev/alcms-server/internal/db"
	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/pagination"
	"github.com/alcms-dev/alcms-server/internal/points"
	"github.com/alcms-dev/alcms-server/internal/vip"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserHandler manages end-user accounts.
type UserHandler struct {
	db     *gorm.DB
	levels *vip.Levels
	points *points.Service
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB, levels *vip.Levels, pointsSvc *points.Service) *UserHandler {
	return &UserHandler{db: db, levels: levels, points: pointsSvc}
}

func userView(u *models.User, now time.Time) gin.H {
	inviteCode := ""
	if u.InviteCode != nil {
		inviteCode = *u.InviteCode
	}
	return gin.H{
		"id":                 u.ID,
		"username":           u.Username,
		"email":              u.Email,
		"active":             u.Active,
		"disabled":           u.Disabled,
		"invite_code":        inviteCode,
		"points":             u.Points,
		"total_points":       u.TotalPoints,
		"commission_balance": u.CommissionBalance.StringFixed(2),
		"vip":                vip.StatusOf(u, now),
		"created_at":         u.CreatedAt,
	}
}

// List returns users, optionally filtered by username and VIP flag.
func (h *UserHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if usernameQ := strings.TrimSpace(c.Query("username")); usernameQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+usernameQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "username"), pattern)
	}
	switch strings.TrimSpace(c.Query("is_vip")) {
	case "true", "1":
		q = q.Where("is_vip = ?", true)
	case "false", "0":
		q = q.Where("is_vip = ?", false)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count users failed"})
		return
	}
	p := pageParams(c)
	var rows []models.User
	if errFind := q.Order("id DESC").Offset(p.Offset).Limit(p.Limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}
	now := time.Now().UTC()
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, userView(&rows[i], now))
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "pagination": pagination.NewPage(p, total)})
}

// setVIPRequest defines the request body for manual VIP grants.
type setVIPRequest struct {
	Level  int    `json:"level"`
	Days   int    `json:"days"`
	Extend bool   `json:"extend"`
	Reason string `json:"reason"`
}

// SetVIP grants VIP to a user. Extend adds days to the current grant,
// otherwise the grant is overwritten. Days 0 is permanent.
func (h *UserHandler) SetVIP(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body setVIPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Level <= 0 || body.Days < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "level must be positive and days not negative"})
		return
	}

	now := time.Now().UTC()
	var result *vip.Result
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if _, errLevel := h.levels.Get(tx, body.Level); errLevel != nil {
			return errLevel
		}
		var errGrant error
		if body.Extend {
			result, errGrant = vip.Extend(tx, id, body.Level, body.Days, now)
		} else {
			result, errGrant = vip.Set(tx, id, body.Level, body.Days, now)
		}
		return errGrant
	})
	if errTx != nil {
		writeDomainError(c, errTx, "set vip failed")
		return
	}
	adminID, _ := readAdminIDFromContext(c)
	log.WithFields(log.Fields{
		"admin_id": adminID,
		"user_id":  id,
		"level":    body.Level,
		"days":     body.Days,
		"action":   result.Action,
		"reason":   strings.TrimSpace(body.Reason),
	}).Info("vip granted by admin")
	c.JSON(http.StatusOK, result)
}

// CancelVIP revokes a user's VIP status.
func (h *UserHandler) CancelVIP(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		return vip.Cancel(tx, id)
	})
	if errTx != nil {
		writeDomainError(c, errTx, "cancel vip failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// adjustPointsRequest defines the request body for points adjustments.
type adjustPointsRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

// AdjustPoints credits or debits a user's points.
func (h *UserHandler) AdjustPoints(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body adjustPointsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	adminID, _ := readAdminIDFromContext(c)

	result, errAdjust := h.points.AdminAdjust(c.Request.Context(), id, body.Delta, body.Reason, adminID)
	if errAdjust != nil {
		writeDomainError(c, errAdjust, "adjust points failed")
		return
	}
	c.JSON(http.StatusOK, result)
}
