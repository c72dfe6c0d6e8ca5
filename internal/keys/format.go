package keys

import (
	"regexp"
	"strings"
)

const (
	// GroupCount is the number of hyphen separated groups in a license key.
	GroupCount = 4
	// GroupLength is the number of characters in each group.
	GroupLength = 5
	// KeyLength is the full length of a well formed key including separators.
	KeyLength = GroupCount*GroupLength + GroupCount - 1
	// FormatHint is the human readable shape of a license key.
	FormatHint = "XXXXX-XXXXX-XXXXX-XXXXX"

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var keyPattern = regexp.MustCompile(`^[A-Z0-9]{5}-[A-Z0-9]{5}-[A-Z0-9]{5}-[A-Z0-9]{5}$`)

// IsValidFormat reports whether key is four groups of five uppercase alphanumerics joined by hyphens.
func IsValidFormat(key string) bool {
	if len(key) != KeyLength {
		return false
	}
	return keyPattern.MatchString(key)
}

// Normalize trims surrounding whitespace and uppercases the key.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
