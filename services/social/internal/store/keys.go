package store

import (
	"strings"

	"github.com/google/uuid"
)

// MaxKindLen bounds content_type and reaction_type.
const MaxKindLen = 50

// ParseID returns the canonical lowercase hyphenated form of a UUID in any
// spelling uuid.Parse accepts. Every id handed to a store goes through here
// so that equal ids compare equal as strings.
func ParseID(s string) (string, bool) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return u.String(), true
}

// ParseKind trims and lowercases a content_type or reaction_type and checks
// it against [a-z0-9_-]{1,MaxKindLen}.
func ParseKind(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || len(s) > MaxKindLen {
		return "", false
	}
	for _, c := range s {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' && c != '-' {
			return "", false
		}
	}
	return s, true
}
