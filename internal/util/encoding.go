package util

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeIdentifier canonicalizes a login identifier (email address) so
// that lookups and rate-limit keys agree regardless of how the client typed
// it: NFKD normalization, trimmed, lowercased.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKD.String(s)))
}
