package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSize parses a human-readable byte count. Suffixes K, M, G and T are
// powers of 1024 and may be followed by "B" or "iB"; a bare number is bytes.
// Fractions are allowed with a suffix ("1.5G").
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	numStr := strings.ToUpper(s)
	numStr = strings.TrimSuffix(numStr, "IB")
	numStr = strings.TrimSuffix(numStr, "B")

	// Determine the multiplier suffix.
	multiplier := int64(1)
	if numStr != "" {
		switch numStr[len(numStr)-1] {
		case 'K':
			multiplier = 1 << 10
		case 'M':
			multiplier = 1 << 20
		case 'G':
			multiplier = 1 << 30
		case 'T':
			multiplier = 1 << 40
		}
		if multiplier > 1 {
			numStr = numStr[:len(numStr)-1]
		}
	}

	if numStr == "" {
		return 0, fmt.Errorf("invalid size: %q", s)
	}

	// Try integer first, then float.
	if n, err := strconv.ParseInt(numStr, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("invalid size: %q is negative", s)
		}
		return n * multiplier, nil
	}

	f, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size: %q", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("invalid size: %q is negative", s)
	}
	return int64(f * float64(multiplier)), nil
}
