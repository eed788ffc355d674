package depth

import (
	"math"
	"strconv"
	"strings"
)

// FormatValue prints a sample the way numpy prints a float32 scalar:
// shortest round-trip digits, a trailing ".0" on integral values, and
// exponent form outside [1e-4, 1e16).
func FormatValue(v float32) string {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if a := math.Abs(f); a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 32)
	}
	s := strconv.FormatFloat(f, 'f', -1, 32)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
