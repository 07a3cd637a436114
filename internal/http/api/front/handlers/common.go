package handlers

import (
	"errors"
	"net/http"

	"github.com/alcms-dev/alcms-server/internal/cardkey"
	"github.com/alcms-dev/alcms-server/internal/pagination"
	"github.com/alcms-dev/alcms-server/internal/points"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// getUserID extracts the user ID from gin context.
func getUserID(c *gin.Context) uint64 {
	val, exists := c.Get("userID")
	if !exists {
		return 0
	}
	switch v := val.(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case uint:
		return uint64(v)
	case int:
		return uint64(v)
	default:
		return 0
	}
}

// pageParams reads limit/offset or page/page_size from the query string.
func pageParams(c *gin.Context) pagination.Params {
	return pagination.Parse(c.Query)
}

// writeDomainError maps redemption and points errors to HTTP responses.
func writeDomainError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, cardkey.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "card key not found"})
	case errors.Is(err, cardkey.ErrAlreadyRedeemed):
		c.JSON(http.StatusConflict, gin.H{"error": "card key already redeemed"})
	case errors.Is(err, cardkey.ErrDisabled):
		c.JSON(http.StatusConflict, gin.H{"error": "card key disabled"})
	case errors.Is(err, cardkey.ErrExpired):
		c.JSON(http.StatusGone, gin.H{"error": "card key expired"})
	case errors.Is(err, cardkey.ErrUserNotFound), errors.Is(err, points.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, points.ErrInsufficientBalance):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient points"})
	case errors.Is(err, points.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
	case errors.Is(err, points.ErrSelfTransfer):
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot transfer to yourself"})
	case errors.Is(err, points.ErrAlreadyCheckedIn):
		c.JSON(http.StatusConflict, gin.H{"error": "already checked in today"})
	default:
		log.WithError(err).Error(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
