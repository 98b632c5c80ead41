package helpers

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID returns a new random record id.
func GenerateUUID() string {
	return uuid.New().String()
}

// StripQuotes removes one pair of matching single or double quotes.
func StripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// IsQuoted reports whether s is wrapped in a matching pair of quotes.
func IsQuoted(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0]
}
