package logger

import (
	"log/slog"
	"strings"

	"github.com/yndnr/kernelgate/pkg/token"
)

// Sensitive key patterns whose values are always fully redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"key",
	"credential",
	"auth",
	"bearer",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive checks if an attribute contains sensitive data
// and redacts it if necessary.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		strVal := a.Value.String()
		if strVal == "" {
			return a
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
		if token.LooksLikeToken(strVal) {
			return slog.String(a.Key, MaskToken(strVal))
		}

	case slog.KindGroup:
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// MaskToken keeps the first word of a token and its delimiter.
// Example: fox-wolf-bear-lion -> fox-***
func MaskToken(value string) string {
	i := strings.IndexFunc(value, func(r rune) bool { return r < 'a' || r > 'z' })
	if i <= 0 {
		return "***"
	}
	j := i
	for j < len(value) && (value[j] < 'a' || value[j] > 'z') {
		j++
	}
	return value[:j] + "***"
}

// RedactString manually redacts a string value.
// Use this when you need to redact a value before logging.
func RedactString(value string) string {
	if token.LooksLikeToken(value) {
		return MaskToken(value)
	}
	return value
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue checks if a value appears to be a session token.
func IsSensitiveValue(value string) bool {
	return token.LooksLikeToken(value)
}
