// Package units converts values between the ledger's fixed-width integers and
// the decimal strings, identifiers and timestamps the application works with.
package units

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of the native currency.
const Decimals = 18

// Sentinel errors for conversions.
var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrTooPrecise    = errors.New("amount has more fractional digits than the currency supports")
	ErrInvalidID     = errors.New("invalid identifier")
	ErrOutOfRange    = errors.New("value out of range")
)

const (
	millisPerSecond = 1000
	ratingScale     = 1

	// maxSeconds is the largest second count time.UnixMilli can take.
	maxSeconds = math.MaxInt64 / millisPerSecond
)

// ParseAmount encodes a decimal currency amount, e.g. "2.5", into base units.
func ParseAmount(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAmount, s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w %q: negative", ErrInvalidAmount, s)
	}
	shifted := d.Shift(Decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: %q", ErrTooPrecise, s)
	}
	return shifted.BigInt(), nil
}

// FormatAmount decodes base units into a decimal string that always carries at
// least one fractional digit ("1.0", "2.5", "0.000000000000000001").
func FormatAmount(v *big.Int) string {
	if v == nil {
		return "0.0"
	}
	s := decimal.NewFromBigInt(v, -Decimals).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ID renders a ledger identifier as a decimal string.
func ID(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// ParseID parses a decimal identifier string into a ledger integer.
func ParseID(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return v, nil
}

// Time converts ledger seconds since epoch into a point in time. Values that
// do not fit in millisecond precision are ErrOutOfRange rather than wrapped.
func Time(seconds *big.Int) (time.Time, error) {
	if seconds == nil {
		return time.UnixMilli(0).UTC(), nil
	}
	if seconds.Sign() < 0 || !seconds.IsInt64() || seconds.Int64() > maxSeconds {
		return time.Time{}, fmt.Errorf("%w: %s seconds is not a representable time", ErrOutOfRange, seconds)
	}
	return time.UnixMilli(seconds.Int64() * millisPerSecond).UTC(), nil
}

// Seconds converts a point in time into ledger seconds since epoch.
func Seconds(t time.Time) *big.Int {
	return big.NewInt(t.Unix())
}

// Rating turns a rating scaled by ten (47) into its decimal value (4.7).
func Rating(scaled *big.Int) float64 {
	if scaled == nil {
		return 0
	}
	return decimal.NewFromBigInt(scaled, -ratingScale).InexactFloat64()
}
