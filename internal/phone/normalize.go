// Package phone normalizes user-entered phone numbers to E.164.
package phone

import (
	"fmt"
	"strings"

	"github.com/satriahrh/lifeline/domain/entities"
)

// DefaultCountryCode is assumed for bare 10 digit numbers
const DefaultCountryCode = "1"

// Normalize converts raw into E.164 form. Numbers that cannot be
// interpreted unambiguously are rejected rather than guessed.
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)

	var b strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if digits == "" {
		return "", fmt.Errorf("%w: %q", entities.ErrInvalidPhoneNumber, raw)
	}

	switch {
	case strings.HasPrefix(trimmed, "+"):
		return "+" + digits, nil
	case len(digits) == 10:
		return "+" + DefaultCountryCode + digits, nil
	case len(digits) == 11 && strings.HasPrefix(digits, DefaultCountryCode):
		return "+" + digits, nil
	}

	return "", fmt.Errorf("%w: %q", entities.ErrInvalidPhoneNumber, raw)
}

// NormalizeAll normalizes every number, dropping invalid ones and
// duplicates while keeping first-seen order.
func NormalizeAll(raws []string) []string {
	seen := make(map[string]struct{}, len(raws))
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		n, err := Normalize(raw)
		if err != nil {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
