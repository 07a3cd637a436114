package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/alcms-dev/alcms-server/internal/settings"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SettingsHandler reads and writes runtime business settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// Get returns every known setting; unset keys are null.
func (h *SettingsHandler) Get(c *gin.Context) {
	out := make(map[string]json.RawMessage, len(settings.Keys))
	for _, key := range settings.Keys {
		if raw, ok := settings.Raw(key); ok {
			out[key] = raw
		} else {
			out[key] = json.RawMessage("null")
		}
	}
	c.JSON(http.StatusOK, gin.H{"settings": out, "updated_at": settings.UpdatedAt()})
}

// Put upserts the supplied settings. Unknown keys reject the whole request.
func (h *SettingsHandler) Put(c *gin.Context) {
	var body map[string]json.RawMessage
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no settings supplied"})
		return
	}
	values := make(map[string]json.RawMessage, len(body))
	for key, raw := range body {
		key = strings.TrimSpace(key)
		if !settings.IsKnownKey(key) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown setting " + key})
			return
		}
		values[key] = raw
	}
	adminID, _ := readAdminIDFromContext(c)

	if errPut := settings.Put(c.Request.Context(), h.db, values, adminID); errPut != nil {
		log.WithError(errPut).Error("update settings failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update settings failed"})
		return
	}
	h.Get(c)
}
