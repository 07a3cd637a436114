package handlers

import (
	"net/http"

	"github.com/alcms-dev/alcms-server/internal/settings"
	"github.com/gin-gonic/gin"
)

// publicConfigResponse is the response payload for public config.
type publicConfigResponse struct {
	SiteName              string `json:"site_name"`
	PointsPerCurrencyUnit int    `json:"points_per_currency_unit"`
	CheckinBasePoints     int    `json:"checkin_base_points"`
	CheckinStreakBonus    int    `json:"checkin_streak_bonus"`
}

// GetPublicConfig returns public configuration for the front UI.
func GetPublicConfig(c *gin.Context) {
	c.JSON(http.StatusOK, publicConfigResponse{
		SiteName:              settings.String(settings.SiteNameKey, settings.DefaultSiteName),
		PointsPerCurrencyUnit: settings.Int(settings.PointsPerCurrencyUnitKey, settings.DefaultPointsPerCurrencyUnit),
		CheckinBasePoints:     settings.Int(settings.CheckinBasePointsKey, settings.DefaultCheckinBasePoints),
		CheckinStreakBonus:    settings.Int(settings.CheckinStreakBonusKey, settings.DefaultCheckinStreakBonus),
	})
}
