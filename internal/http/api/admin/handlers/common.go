package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/alcms-dev/alcms-server/internal/cardkey"
	"github.com/alcms-dev/alcms-server/internal/order"
	"github.com/alcms-dev/alcms-server/internal/pagination"
	"github.com/alcms-dev/alcms-server/internal/points"
	"github.com/alcms-dev/alcms-server/internal/referral"
	"github.com/alcms-dev/alcms-server/internal/vip"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// readAdminIDFromContext returns the admin ID from request context.
func readAdminIDFromContext(c *gin.Context) (uint64, bool) {
	value, ok := c.Get("adminID")
	if !ok {
		return 0, false
	}
	id, ok := value.(uint64)
	return id, ok
}

// parseIDParam reads a positive numeric path parameter.
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// queryUint parses an optional numeric query parameter, 0 when absent or invalid.
func queryUint(c *gin.Context, name string) uint64 {
	v, errParse := strconv.ParseUint(strings.TrimSpace(c.Query(name)), 10, 64)
	if errParse != nil {
		return 0
	}
	return v
}

func pageParams(c *gin.Context) pagination.Params {
	return pagination.Parse(c.Query)
}

// writeDomainError maps domain sentinels to HTTP responses.
func writeDomainError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, cardkey.ErrInvalidParams), errors.Is(err, cardkey.ErrUnknownVIPLevel):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, cardkey.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "card key not found"})
	case errors.Is(err, order.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, order.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, vip.ErrUserNotFound), errors.Is(err, points.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, vip.ErrInvalidLevel):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, vip.ErrLevelNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "vip level not found"})
	case errors.Is(err, points.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be non-zero"})
	case errors.Is(err, points.ErrInsufficientBalance):
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient points"})
	case errors.Is(err, referral.ErrEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "commission event not found"})
	case errors.Is(err, referral.ErrEventNotRetryable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Error(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
