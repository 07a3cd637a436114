package settings

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Int returns the integer setting for key, or fallback when unset or invalid.
func Int(key string, fallback int) int {
	raw, ok := Raw(key)
	if !ok {
		return fallback
	}
	if parsed, okParse := parseInt(raw); okParse {
		return parsed
	}
	return fallback
}

// Decimal returns the decimal setting for key, or fallback when unset or invalid.
func Decimal(key string, fallback decimal.Decimal) decimal.Decimal {
	raw, ok := Raw(key)
	if !ok {
		return fallback
	}
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return fallback
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		if d, errParse := decimal.NewFromString(strings.TrimSpace(s)); errParse == nil {
			return d
		}
		return fallback
	}
	if d, errParse := decimal.NewFromString(string(raw)); errParse == nil {
		return d
	}
	return fallback
}

// String returns the string setting for key, or fallback when unset.
func String(key, fallback string) string {
	raw, ok := Raw(key)
	if !ok {
		return fallback
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal != nil || strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func parseInt(raw json.RawMessage) (int, bool) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if errUnmarshal := json.Unmarshal(raw, &n); errUnmarshal == nil {
		return n, true
	}
	var f float64
	if errUnmarshal := json.Unmarshal(raw, &f); errUnmarshal == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		if parsed, errParse := strconv.Atoi(strings.TrimSpace(s)); errParse == nil {
			return parsed, true
		}
	}
	return 0, false
}
