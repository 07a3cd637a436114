package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the UI site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback UI site name.
	DefaultSiteName = "ALCMS"

	// PointsPerCurrencyUnitKey sets how many points are worth one currency unit.
	PointsPerCurrencyUnitKey = "POINTS_PER_CURRENCY_UNIT"
	// DefaultPointsPerCurrencyUnit values 100 points at 1.00.
	DefaultPointsPerCurrencyUnit = 100

	// CommissionRatePercentKey sets the referral commission rate.
	CommissionRatePercentKey = "COMMISSION_RATE_PERCENT"
	// DefaultCommissionRatePercent is the fallback commission rate.
	DefaultCommissionRatePercent = 10

	// CommissionMaxAttemptsKey caps dispatcher retries per outbox event.
	CommissionMaxAttemptsKey = "COMMISSION_MAX_ATTEMPTS"
	// DefaultCommissionMaxAttempts is the fallback retry cap.
	DefaultCommissionMaxAttempts = 5

	// CheckinBasePointsKey sets the points granted per daily check-in.
	CheckinBasePointsKey = "CHECKIN_BASE_POINTS"
	// DefaultCheckinBasePoints is the fallback check-in reward.
	DefaultCheckinBasePoints = 10
	// CheckinStreakBonusKey sets the extra points per consecutive day.
	CheckinStreakBonusKey = "CHECKIN_STREAK_BONUS"
	// DefaultCheckinStreakBonus is the fallback streak bonus.
	DefaultCheckinStreakBonus = 2
	// MaxCheckinStreakBonusDays caps how many streak days earn a bonus.
	MaxCheckinStreakBonusDays = 7
)

// Keys lists every setting the admin API accepts.
var Keys = []string{
	SiteNameKey,
	PointsPerCurrencyUnitKey,
	CommissionRatePercentKey,
	CommissionMaxAttemptsKey,
	CheckinBasePointsKey,
	CheckinStreakBonusKey,
}

// IsKnownKey reports whether key is an accepted setting.
func IsKnownKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}
