// Package numeric recognises and converts numeric text found in CSV cells.
//
// Accepted forms are plain decimal literals with an optional sign, fraction
// and exponent ("150", "-3", "1.5", "2e6", ".5"). Thousands separators,
// hex literals, underscores, "inf" and "nan" are not numbers.
package numeric

import (
	"math"
	"strconv"
	"strings"
)

// IsDecimal reports whether s (already trimmed) is a decimal literal.
func IsDecimal(s string) bool {
	i, n := 0, len(s)
	if i < n && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < n && isDigit(s[i]) {
		i++
		digits++
	}
	if i < n && s[i] == '.' {
		i++
		for i < n && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < n && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < n && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for i < n && isDigit(s[i]) {
			i++
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == n
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// ParseInt parses an integer literal. Surrounding whitespace is ignored.
func ParseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseFloat parses any decimal literal accepted by IsDecimal. Surrounding
// whitespace is ignored; non-finite results are rejected.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !IsDecimal(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Truncate converts f to int64 toward zero. It fails for non-finite values
// and values outside the int64 range.
func Truncate(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	t := math.Trunc(f)
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, false
	}
	return int64(t), true
}

// ToInt converts a cell value to int64. ok is false when v had no integer
// reading and 0 was substituted.
func ToInt(v any) (n int64, ok bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		return Truncate(x)
	case float32:
		return Truncate(float64(x))
	case string:
		if n, ok := ParseInt(x); ok {
			return n, true
		}
		if f, ok := ParseFloat(x); ok {
			return Truncate(f)
		}
		return 0, false
	case []byte:
		return ToInt(string(x))
	default:
		return 0, false
	}
}
