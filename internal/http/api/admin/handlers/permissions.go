package handlers

import (
	"net/http"

	"github.com/alcms-dev/alcms-server/internal/http/api/admin/permissions"
	"github.com/gin-gonic/gin"
)

// PermissionHandler exposes the permission catalogue.
type PermissionHandler struct{}

// NewPermissionHandler constructs a PermissionHandler.
func NewPermissionHandler() *PermissionHandler {
	return &PermissionHandler{}
}

// List returns every permission grouped by module.
func (h *PermissionHandler) List(c *gin.Context) {
	modules := make(map[string][]gin.H)
	order := make([]string, 0)
	for _, def := range permissions.Definitions() {
		if _, seen := modules[def.Module]; !seen {
			order = append(order, def.Module)
		}
		modules[def.Module] = append(modules[def.Module], gin.H{
			"key":    def.Key,
			"method": def.Method,
			"path":   def.Path,
			"label":  def.Label,
		})
	}
	out := make([]gin.H, 0, len(order))
	for _, module := range order {
		out = append(out, gin.H{"module": module, "permissions": modules[module]})
	}
	c.JSON(http.StatusOK, gin.H{"modules": out})
}
