package admin

import (
	"net/http"

	"github.com/alcms-dev/alcms-server/internal/http/api/admin/permissions"
	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/gin-gonic/gin"
)

// grantContextKey holds the caller's *grant, set by adminAuthMiddleware.
const grantContextKey = "adminGrant"

// grant is the set of admin routes the caller may reach.
type grant struct {
	superAdmin bool
	keys       []string
}

func grantOf(admin models.Admin) *grant {
	return &grant{
		superAdmin: admin.IsSuperAdmin,
		keys:       permissions.ParsePermissions(admin.Permissions),
	}
}

func (g *grant) allows(key string) bool {
	if g.superAdmin {
		return true
	}
	return permissions.HasPermission(g.keys, key)
}

// requirePermission rejects routes missing from the permission catalogue and
// routes the authenticated admin has not been granted.
func requirePermission() gin.HandlerFunc {
	catalogue := permissions.DefinitionMap()

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		route := c.FullPath()
		key := permissions.Key(c.Request.Method, route)
		if _, known := catalogue[key]; route == "" || !known {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}

		value, _ := c.Get(grantContextKey)
		g, ok := value.(*grant)
		if !ok || g == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !g.allows(key) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}
