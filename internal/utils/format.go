package utils

import (
	"math"
	"strconv"
)

// FormatGNF renders an amount the way shop receipts in Guinea print it:
// no decimals, thousands grouped with spaces (50000 -> "50 000").
func FormatGNF(amount float64) string {
	n := int64(math.Round(amount))

	neg := n < 0
	if neg {
		n = -n
	}

	s := strconv.FormatInt(n, 10)
	if len(s) > 3 {
		var out []byte
		first := len(s) % 3
		if first > 0 {
			out = append(out, s[:first]...)
		}
		for i := first; i < len(s); i += 3 {
			if len(out) > 0 {
				out = append(out, ' ')
			}
			out = append(out, s[i:i+3]...)
		}
		s = string(out)
	}

	if neg {
		return "-" + s
	}
	return s
}
