package util

import (
	"strconv"
	"strings"
)

// FormatCount renders audience counts the way profiles display them:
// 15000 -> "15K", 1200000 -> "1.2M", 0 -> "0".
func FormatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return trimZero(strconv.FormatFloat(float64(n)/1_000_000, 'f', 1, 64)) + "M"
	case n >= 1_000:
		return trimZero(strconv.FormatFloat(float64(n)/1_000, 'f', 1, 64)) + "K"
	case n > 0:
		return strconv.FormatInt(n, 10)
	default:
		return "0"
	}
}

func trimZero(s string) string {
	return strings.TrimSuffix(s, ".0")
}

// ParseCount reads counts such as "15.2K", "1,234", "2M" or "892".
// Unparseable input yields 0.
func ParseCount(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier, s = 1_000, strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier, s = 1_000_000, strings.TrimSuffix(s, "M")
	}

	if multiplier > 1 {
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(strings.ReplaceAll(s, ",", ""), ".", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f*multiplier + 0.5)
}
