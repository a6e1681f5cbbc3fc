package logger

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

// MaskedUsername keeps the first character and replaces the rest, e.g. "a****"
func MaskedUsername(username string) string {
	if username == "" {
		return ""
	}
	first, size := utf8.DecodeRuneInString(username)
	rest := utf8.RuneCountInString(username[size:])
	if rest == 0 {
		return "*"
	}
	return string(first) + strings.Repeat("*", rest)
}

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	local := MaskedUsername(parts[0])

	domainParts := strings.Split(parts[1], ".")
	for i := 0; i < len(domainParts)-1; i++ {
		domainParts[i] = strings.Repeat("*", len(domainParts[i]))
	}

	return local + "@" + strings.Join(domainParts, ".")
}

// RedactedAttr returns "[REDACTED]" for key in production, the value otherwise
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

var sensitiveQueryParams = []string{
	"password",
	"token",
	"secret",
	"csrf",
	"session",
	"auth",
	"username",
}

// SensitiveQuery reports whether a raw query string names a parameter that
// must not be logged.
func SensitiveQuery(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveQueryParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
