package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var sizeUnits = map[string]uint64{
	"":  1,
	"b": 1,
	"k": 1 << 10,
	"m": 1 << 20,
	"g": 1 << 30,
	"t": 1 << 40,
}

// ParseSize parses a human-readable byte count such as "512", "10K",
// "1.5M" or "2GiB". Units are powers of 1024 and case-insensitive; a
// trailing "B" or "iB" after the unit letter is accepted.
func ParseSize(s string) (uint64, error) {
	orig := s
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	s = strings.TrimSuffix(s, "ib")
	if len(s) > 1 && strings.HasSuffix(s, "b") && strings.ContainsAny(s[len(s)-2:len(s)-1], "kmgt") {
		s = s[:len(s)-1]
	}

	if s == "" {
		return 0, fmt.Errorf("invalid size: %q", orig)
	}
	unit := ""
	if c := s[len(s)-1]; c < '0' || c > '9' {
		if c != '.' {
			unit = string(c)
			s = s[:len(s)-1]
		}
	}
	mult, ok := sizeUnits[unit]
	if !ok || s == "" {
		return 0, fmt.Errorf("invalid size: %q", orig)
	}

	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		if n > math.MaxUint64/mult {
			return 0, fmt.Errorf("size out of range: %q", orig)
		}
		return n * mult, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid size: %q", orig)
	}
	v := f * float64(mult)
	if v >= math.MaxUint64 {
		return 0, fmt.Errorf("size out of range: %q", orig)
	}
	return uint64(v), nil
}
