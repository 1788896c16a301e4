// Package format holds the pure presentation helpers shared by dashboard
// consumers: fixed-point currency rendering, nanosecond timestamp decoding
// and enum label extraction.
package format

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/civicledger/civicledger/pkg/types"
)

// AmountScale is the fixed-point scale of every monetary value in the
// system: 10^8 base units per display unit. Changing it would break every
// amount already persisted by the demo dataset.
const AmountScale = 100_000_000

var (
	scale      = big.NewInt(AmountScale)
	centScale  = big.NewInt(AmountScale / 100)
	oneHundred = big.NewInt(100)
)

// Amount renders a base-unit amount as a display string with two decimal
// places. "500000000000" formats to "5000.00". Fractions below a cent are
// truncated.
func Amount(v types.BigInt) string {
	i := v.Int()
	neg := i.Sign() < 0
	i.Abs(i)

	cents := new(big.Int).Quo(i, centScale)
	whole, frac := new(big.Int).QuoRem(cents, oneHundred, new(big.Int))

	s := fmt.Sprintf("%s.%02d", whole.String(), frac.Int64())
	if neg {
		return "-" + s
	}
	return s
}

// ParseAmount is the inverse of Amount at two-decimal precision: it returns
// the base-unit integer for a display string like "5000.00" or "5000".
func ParseAmount(s string) (types.BigInt, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}

	cents, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return types.BigInt{}, fmt.Errorf("invalid amount %q", s)
	}
	cents.Mul(cents, centScale)
	if neg {
		cents.Neg(cents)
	}
	return types.ParseBigInt(cents.String())
}

// Timestamp converts a nanoseconds-since-epoch value (the backend's native
// representation) to a time.Time. The division recovers milliseconds, which
// is all the dashboards display.
func Timestamp(ns int64) time.Time {
	return time.UnixMilli(ns / 1_000_000)
}

// TimestampString renders a nanosecond timestamp for display.
func TimestampString(ns int64) string {
	return Timestamp(ns).UTC().Format("2006-01-02 15:04:05")
}

// StatusLabel extracts a canonical display label from a raw enum value that
// may be a plain string or the tagged-union shape map[string]any with a
// single variant key. Unknown shapes render as "Unknown".
func StatusLabel(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case map[string]any:
		if len(val) == 1 {
			for k := range val {
				return k
			}
		}
	}
	return "Unknown"
}
