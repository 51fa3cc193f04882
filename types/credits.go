package types

import (
	"errors"
	"math"

	"github.com/dustin/go-humanize"
)

// Arithmetic errors returned by the checked Credits operations.
var (
	ErrOverflow = errors.New("credits: amount overflow")
	ErrNegative = errors.New("credits: amount would be negative")
)

// Credits is a whole number of usage credits. Credits are never fractional
// and balances never go below zero, so all arithmetic is integer-only and
// checked.
type Credits int64

// Add returns c+other, or ErrOverflow when the sum does not fit in an int64.
func (c Credits) Add(other Credits) (Credits, error) {
	if other > 0 && c > math.MaxInt64-other {
		return 0, ErrOverflow
	}
	if other < 0 && c < math.MinInt64-other {
		return 0, ErrOverflow
	}
	return c + other, nil
}

// Sub returns c-other. Results below zero are rejected with ErrNegative,
// never clamped.
func (c Credits) Sub(other Credits) (Credits, error) {
	if other == math.MinInt64 {
		return 0, ErrOverflow
	}
	r, err := c.Add(-other)
	if err != nil {
		return 0, err
	}
	if r < 0 {
		return 0, ErrNegative
	}
	return r, nil
}

// IsZero returns true if the amount is zero.
func (c Credits) IsZero() bool { return c == 0 }

// IsPositive returns true if the amount is greater than zero.
func (c Credits) IsPositive() bool { return c > 0 }

// IsNegative returns true if the amount is less than zero.
func (c Credits) IsNegative() bool { return c < 0 }

// Min returns the smaller of two amounts.
func (c Credits) Min(other Credits) Credits {
	if c < other {
		return c
	}
	return other
}

// Max returns the larger of two amounts.
func (c Credits) Max(other Credits) Credits {
	if c > other {
		return c
	}
	return other
}

// Int64 returns the raw amount.
func (c Credits) Int64() int64 { return int64(c) }

// String formats the amount with thousands separators: "1,250".
func (c Credits) String() string {
	return humanize.Comma(int64(c))
}

// Sum adds all values, stopping at the first overflow. Negative amounts are
// allowed so a sum of signed transaction amounts can be computed.
func Sum(values ...Credits) (Credits, error) {
	var total Credits
	for _, v := range values {
		var err error
		total, err = total.Add(v)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
