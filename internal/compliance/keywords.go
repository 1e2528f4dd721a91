// Package compliance holds the pure regulatory/rate rules applied before any
// send: keyword matching, quiet hours, destination normalization, message
// segmentation, and the composed send-permission check. Nothing here does I/O.
package compliance

import "strings"

var optOutKeywords = map[string]struct{}{
	"STOP":        {},
	"UNSUBSCRIBE": {},
	"CANCEL":      {},
	"END":         {},
	"QUIT":        {},
	"STOPALL":     {},
}

var optInKeywords = map[string]struct{}{
	"START":     {},
	"YES":       {},
	"UNSTOP":    {},
	"SUBSCRIBE": {},
	"RESUME":    {},
}

// IsOptOutKeyword reports whether text is exactly one of the regulatory
// opt-out keywords, case-insensitively, ignoring surrounding whitespace.
// "STOP IT PLEASE" is not an opt-out; only the bare keyword counts.
func IsOptOutKeyword(text string) bool {
	_, ok := optOutKeywords[strings.ToUpper(strings.TrimSpace(text))]
	return ok
}

// IsOptInKeyword reports whether text is exactly one of the opt-in keywords.
func IsOptInKeyword(text string) bool {
	_, ok := optInKeywords[strings.ToUpper(strings.TrimSpace(text))]
	return ok
}
