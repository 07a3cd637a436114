package admin

import (
	"net/http"
	"strings"

	"github.com/alcms-dev/alcms-server/internal/cardkey"
	"github.com/alcms-dev/alcms-server/internal/config"
	"github.com/alcms-dev/alcms-server/internal/http/api/admin/handlers"
	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/points"
	"github.com/alcms-dev/alcms-server/internal/referral"
	"github.com/alcms-dev/alcms-server/internal/security"
	"github.com/alcms-dev/alcms-server/internal/vip"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Services bundles the domain services the admin API calls.
type Services struct {
	DB         *gorm.DB
	JWT        config.JWTConfig
	CardKeys   *cardkey.Store
	Points     *points.Service
	Levels     *vip.Levels
	Dispatcher *referral.Dispatcher
}

// RegisterAdminRoutes registers the health check and the admin API.
func RegisterAdminRoutes(r *gin.Engine, svc Services) {
	if r == nil || svc.DB == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(svc.DB)
	r.GET("/healthz", healthHandler.Healthz)

	admin := r.Group("/api/v1/admin")

	authHandler := handlers.NewAuthHandler(svc.DB, svc.JWT)
	admin.POST("/login", authHandler.Login)
	admin.POST("/login/prepare", authHandler.LoginPrepare)
	admin.POST("/login/totp", authHandler.LoginTOTP)

	authed := admin.Group("")
	authed.Use(adminAuthMiddleware(svc.DB, svc.JWT))

	// Self-service routes need a valid admin but no permission grant.
	mfaHandler := handlers.NewMFAHandler(svc.DB)
	authed.GET("/mfa/status", mfaHandler.Status)
	authed.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	authed.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	authed.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	guarded := authed.Group("")
	guarded.Use(requirePermission())

	permissionHandler := handlers.NewPermissionHandler()
	guarded.GET("/permissions", permissionHandler.List)

	adminHandler := handlers.NewAdminHandler(svc.DB)
	guarded.GET("/admins", adminHandler.List)
	guarded.POST("/admins", adminHandler.Create)
	guarded.GET("/admins/:id", adminHandler.Get)
	guarded.PUT("/admins/:id", adminHandler.Update)
	guarded.DELETE("/admins/:id", adminHandler.Delete)
	guarded.POST("/admins/:id/disable", adminHandler.Disable)
	guarded.POST("/admins/:id/enable", adminHandler.Enable)
	guarded.PUT("/admins/:id/password", adminHandler.ChangePassword)

	cardHandler := handlers.NewCardKeyHandler(svc.CardKeys)
	guarded.POST("/card-keys", cardHandler.Create)
	guarded.POST("/card-keys/batch", cardHandler.CreateBatch)
	guarded.GET("/card-keys", cardHandler.List)
	guarded.GET("/card-keys/stats", cardHandler.Stats)
	guarded.GET("/card-keys/batches", cardHandler.Batches)
	guarded.GET("/card-keys/:id", cardHandler.Get)
	guarded.POST("/card-keys/:id/disable", cardHandler.Disable)
	guarded.DELETE("/card-keys/:id", cardHandler.Delete)
	guarded.POST("/card-keys/batches/:batch_id/disable", cardHandler.DisableBatch)
	guarded.DELETE("/card-keys/batches/:batch_id", cardHandler.DeleteBatch)

	levelHandler := handlers.NewVIPLevelHandler(svc.Levels)
	guarded.GET("/vip-levels", levelHandler.List)
	guarded.PUT("/vip-levels/:level", levelHandler.Save)
	guarded.DELETE("/vip-levels/:level", levelHandler.Delete)

	orderHandler := handlers.NewOrderHandler(svc.DB)
	guarded.GET("/orders", orderHandler.List)
	guarded.PUT("/orders/:id/status", orderHandler.UpdateStatus)

	userHandler := handlers.NewUserHandler(svc.DB, svc.Levels, svc.Points)
	guarded.GET("/users", userHandler.List)
	guarded.POST("/users/:id/vip", userHandler.SetVIP)
	guarded.DELETE("/users/:id/vip", userHandler.CancelVIP)
	guarded.POST("/users/:id/points", userHandler.AdjustPoints)

	settingsHandler := handlers.NewSettingsHandler(svc.DB)
	guarded.GET("/settings", settingsHandler.Get)
	guarded.PUT("/settings", settingsHandler.Put)

	commissionHandler := handlers.NewCommissionHandler(svc.DB, svc.Dispatcher)
	guarded.GET("/commission-events", commissionHandler.List)
	guarded.POST("/commission-events/:id/retry", commissionHandler.Retry)
}

// adminAuthMiddleware validates admin JWTs and stores the admin in context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if authHeader == "" || token == authHeader || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).
			Select("id", "active", "permissions", "is_super_admin").
			First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin account is disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Set(grantContextKey, grantOf(admin))
		c.Next()
	}
}
