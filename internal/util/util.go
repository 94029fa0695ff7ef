package util

import (
	"strconv"
	"strings"
	"time"
)

// NowISO returns the current UTC time as ISO-8601.
func NowISO() string {
	return FormatISO(time.Now())
}

func FormatISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseISO accepts RFC3339 with or without fractional seconds. Empty is zero time.
func ParseISO(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func NormalizeBool(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "yes", "true", "1", "y", "on":
		return true
	default:
		return false
	}
}

// FormatOptionalInt renders nil as "unknown".
func FormatOptionalInt(v *int) string {
	if v == nil {
		return "unknown"
	}
	return strconv.Itoa(*v)
}

func ParseOptionalInt(s string) *int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}
