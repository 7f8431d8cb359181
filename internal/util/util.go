package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"poe2openai/internal/core"

	"github.com/bytedance/sonic"
)

// MarshalJSON wraps Sonic for performance
func MarshalJSON(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

// TruncateString keeps prefixLen and suffixLen runes and puts replacement between them.
func TruncateString(s string, prefixLen, suffixLen int, replacement string) string {
	runes := []rune(s)
	if len(runes) > prefixLen+suffixLen {
		return string(runes[:prefixLen]) + replacement + string(runes[len(runes)-suffixLen:])
	}
	return s
}

// MaskToken hides all but the edges of a credential for logging.
func MaskToken(token string) string {
	if token == "" {
		return "(none)"
	}
	if n := utf8.RuneCountInString(token); n <= 8 {
		return strings.Repeat("*", n)
	}
	return TruncateString(token, 3, 4, "***")
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= len(core.AuthBearerPrefix) && strings.EqualFold(header[:len(core.AuthBearerPrefix)], core.AuthBearerPrefix) {
		return strings.TrimSpace(header[len(core.AuthBearerPrefix):])
	}
	return ""
}

// FormatDuration renders a duration for log lines: µs below 1ms, ms below 1s, seconds otherwise.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// GetEnvWithDefault gets env var with default value
func GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt64 parses an integer env var, falling back to defaultValue when unset or invalid.
func GetEnvInt64(key string, defaultValue int64) (int64, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, true
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return defaultValue, false
	}
	return value, true
}

// GetEnvDuration parses a Go duration env var ("30s", "2m"); a bare number is read as seconds.
func GetEnvDuration(key string, defaultValue time.Duration) (time.Duration, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, true
	}
	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultValue, false
	}
	return d, true
}

// LowercaseIDs returns a copy of models with every id lowercased.
func LowercaseIDs(models []core.ModelInfo) []core.ModelInfo {
	out := make([]core.ModelInfo, len(models))
	for i, m := range models {
		m.ID = strings.ToLower(m.ID)
		out[i] = m
	}
	return out
}
