// Package utils provides small parsing helpers shared by the HTTP handlers
// and the CLI. They carry no game rules.
package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// AtoiDefault converts s with strconv.Atoi, returning def when s is empty or
// not an integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi int) int {
	return max(lo, min(n, hi))
}

// LimitParam parses a list limit: empty or invalid yields def, anything else
// is clamped to [1, maxN].
func LimitParam(s string, def, maxN int) int {
	return Clamp(AtoiDefault(strings.TrimSpace(s), def), 1, maxN)
}

// ParseAmount parses a whole, positive item count as typed by a user.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a whole number", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %d", n)
	}
	return n, nil
}
