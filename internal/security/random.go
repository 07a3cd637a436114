package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// RandomHexUpper returns n random bytes hex-encoded in upper case.
func RandomHexUpper(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("random hex: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// RandomFromAlphabet returns length characters drawn uniformly from alphabet.
func RandomFromAlphabet(alphabet string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("random string: invalid length %d", length)
	}
	if len(alphabet) == 0 || len(alphabet) > 256 {
		return "", fmt.Errorf("random string: invalid alphabet size %d", len(alphabet))
	}
	// Reject bytes past the largest multiple of len(alphabet) to avoid modulo bias.
	limit := 256 - 256%len(alphabet)
	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return "", fmt.Errorf("random string: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
