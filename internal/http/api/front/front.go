package front

import (
	"net/http"
	"strings"

	"github.com/alcms-dev/alcms-server/internal/cardkey"
	"github.com/alcms-dev/alcms-server/internal/config"
	internalhttp "github.com/alcms-dev/alcms-server/internal/http"
	"github.com/alcms-dev/alcms-server/internal/http/api/front/handlers"
	"github.com/alcms-dev/alcms-server/internal/models"
	"github.com/alcms-dev/alcms-server/internal/points"
	"github.com/alcms-dev/alcms-server/internal/referral"
	"github.com/alcms-dev/alcms-server/internal/security"
	"github.com/alcms-dev/alcms-server/internal/vip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services bundles the domain services the front API calls.
type Services struct {
	DB        *gorm.DB
	JWT       config.JWTConfig
	Redeem    config.RedeemConfig
	Redis     *redis.Client // Optional; the redeem limiter fails open without it.
	CardKeys  *cardkey.Store
	Redeemer  *cardkey.Redeemer
	Points    *points.Service
	Referrals *referral.Service
	Levels    *vip.Levels
}

// RegisterFrontRoutes registers public and authenticated front-end routes.
func RegisterFrontRoutes(r *gin.Engine, svc Services) {
	if r == nil || svc.DB == nil {
		return
	}

	front := r.Group("/api/v1/front")

	authHandler := handlers.NewAuthHandler(svc.DB, svc.JWT)
	front.POST("/register", authHandler.Register)
	front.POST("/login", authHandler.Login)
	front.GET("/config", handlers.GetPublicConfig)

	levelHandler := handlers.NewVIPLevelHandler(svc.Levels)
	front.GET("/vip-levels", levelHandler.List)

	authed := front.Group("")
	authed.Use(userAuthMiddleware(svc.DB, svc.JWT))

	profileHandler := handlers.NewProfileHandler(svc.DB)
	authed.GET("/profile", profileHandler.Get)
	authed.PUT("/profile/password", profileHandler.ChangePassword)

	cardHandler := handlers.NewCardKeyHandler(svc.CardKeys, svc.Redeemer)
	authed.POST("/card-keys/redeem",
		internalhttp.RedisRateLimit(svc.Redis, "redeem", svc.Redeem.RateLimit, svc.Redeem.RateWindow),
		cardHandler.Redeem,
	)
	authed.GET("/card-keys", cardHandler.List)

	orderHandler := handlers.NewOrderHandler(svc.DB)
	authed.GET("/orders", orderHandler.List)

	pointsHandler := handlers.NewPointsHandler(svc.Points)
	authed.GET("/points/records", pointsHandler.Records)
	authed.POST("/points/transfer", pointsHandler.Transfer)
	authed.POST("/checkin", pointsHandler.Checkin)
	authed.GET("/checkin/status", pointsHandler.CheckinStatus)

	referralHandler := handlers.NewReferralHandler(svc.Referrals)
	authed.GET("/referrals", referralHandler.ListReferrals)
	authed.GET("/commissions", referralHandler.ListCommissions)
}

// userAuthMiddleware validates user JWTs and loads the user into context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if user.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}

		c.Set("userID", user.ID)
		c.Next()
	}
}
