package domain

import "strings"

// maskSuffix replaces everything after a token's first word.
const maskSuffix = "***"

// MaskToken masks a session token for logs and listings, keeping only the
// first word and the delimiter that follows it.
// Example: fox-wolf-bear-lion -> fox-***
//
// The first word carries one byte of entropy, so a masked token cannot be
// used to guess the rest.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}

	i := strings.IndexFunc(token, func(r rune) bool {
		return r < 'a' || r > 'z'
	})
	if i <= 0 || i >= len(token)-1 {
		return maskSuffix
	}

	// Keep the whole delimiter, which may be more than one byte.
	j := i
	for j < len(token) && (token[j] < 'a' || token[j] > 'z') {
		j++
	}
	if j >= len(token) {
		return maskSuffix
	}
	return token[:j] + maskSuffix
}
