// Package cardkey generates, stores and redeems single-use card keys.
package cardkey

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/alcms-dev/alcms-server/internal/security"
)

const (
	// CodeAlphabet omits 0, O, 1 and I.
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// DefaultCodeLength yields XXXX-XXXX-XXXX-XXXX.
	DefaultCodeLength = 16
	codeGroupSize     = 4
)

var codePattern = regexp.MustCompile(`^[A-HJ-NP-Z2-9]{4}(-[A-HJ-NP-Z2-9]{4})*$`)

// GenerateCode returns length random characters from CodeAlphabet grouped
// into blocks of four joined by '-'.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}
	raw, err := security.RandomFromAlphabet(CodeAlphabet, length)
	if err != nil {
		return "", err
	}
	return group(raw), nil
}

func group(raw string) string {
	var b strings.Builder
	for i := 0; i < len(raw); i += codeGroupSize {
		if i > 0 {
			b.WriteByte('-')
		}
		end := i + codeGroupSize
		if end > len(raw) {
			end = len(raw)
		}
		b.WriteString(raw[i:end])
	}
	return b.String()
}

// GenerateBatchID returns BATCH_<epochMillis>_<8 hex>.
func GenerateBatchID(now time.Time) (string, error) {
	suffix, err := security.RandomHexUpper(4)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("BATCH_%d_%s", now.UnixMilli(), suffix), nil
}

// NormalizeCode upper-cases user input and regroups a code typed without
// separators.
func NormalizeCode(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	c = strings.ReplaceAll(c, " ", "")
	if !strings.Contains(c, "-") && len(c) > codeGroupSize && len(c)%codeGroupSize == 0 {
		c = group(c)
	}
	return c
}

// ValidCode reports whether code has the grouped card key shape.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}
