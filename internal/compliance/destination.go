package compliance

import (
	"net/mail"
	"strings"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
)

// NormalizeDestination canonicalizes a raw recipient identifier for the given
// channel. Opt-out lookups and dedup rely on exact matches, so every path
// that stores or compares a destination must go through this function.
//
// Phone numbers come out in E.164 form ("+15551234567"); bare 10-digit
// numbers are assumed North American. Email addresses come out lowercased.
// Invalid input returns domain.ErrInvalidDestination; there is no best-effort
// pass-through.
func NormalizeDestination(channel domain.Channel, raw string) (string, error) {
	switch channel {
	case domain.ChannelSMS:
		return normalizePhone(raw)
	case domain.ChannelEmail:
		return normalizeEmail(raw)
	default:
		return "", domain.ErrInvalidChannel
	}
}

func normalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// separators and the leading plus are dropped; plus is re-added below
		default:
			return "", domain.ErrInvalidDestination
		}
	}
	d := digits.String()

	switch {
	case strings.HasPrefix(strings.TrimSpace(raw), "+"):
		if len(d) < 8 || len(d) > 15 {
			return "", domain.ErrInvalidDestination
		}
		return "+" + d, nil
	case len(d) == 10:
		return "+1" + d, nil
	case len(d) == 11 && d[0] == '1':
		return "+" + d, nil
	default:
		return "", domain.ErrInvalidDestination
	}
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", domain.ErrInvalidDestination
	}
	return strings.ToLower(addr.Address), nil
}
