package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// RateScale is the number of fractional digits carried by tax rates
const RateScale int32 = 4

var (
	// ErrRateOutOfRange is returned when a rate falls outside [0, 1]
	ErrRateOutOfRange = errors.New("rate must be between 0 and 1")

	hundred = decimal.NewFromInt(100)
)

// Rate is a fraction in [0, 1] such as 0.2000 for 20% VAT
type Rate struct {
	value decimal.Decimal
}

// NewRate validates and rounds d to the rate scale
func NewRate(d decimal.Decimal) (Rate, error) {
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return Rate{}, fmt.Errorf("%w: %s", ErrRateOutOfRange, d.String())
	}
	return Rate{value: d.Round(RateScale)}, nil
}

// ParseRate parses a fraction string such as "0.2"
func ParseRate(s string) (Rate, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Rate{}, fmt.Errorf("invalid rate string: %w", err)
	}
	return NewRate(d)
}

// NewRateFromPercent converts a percentage such as 20 or "5.5" into a rate
func NewRateFromPercent(percent decimal.Decimal) (Rate, error) {
	return NewRate(percent.Div(hundred))
}

// MustRate parses a fraction string and panics on failure. For literals only.
func MustRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return r
}

// ZeroRate returns a 0% rate
func ZeroRate() Rate {
	return Rate{value: decimal.Zero}
}

// Decimal returns the fraction
func (r Rate) Decimal() decimal.Decimal {
	return r.value
}

// Percent returns the rate as a percentage (0.2 -> 20)
func (r Rate) Percent() decimal.Decimal {
	return r.value.Mul(hundred)
}

// IsZero returns true for a 0% rate
func (r Rate) IsZero() bool {
	return r.value.IsZero()
}

// Equals compares rates exactly
func (r Rate) Equals(other Rate) bool {
	return r.value.Equal(other.value)
}

// Apply returns round_half_up(amount * rate, 2)
func (r Rate) Apply(amount Money) Money {
	return amount.MulDecimal(r.value).Round()
}

// String returns the fraction with four fractional digits
func (r Rate) String() string {
	return r.value.StringFixed(RateScale)
}

// MarshalJSON encodes the rate as a fixed-point string
func (r Rate) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts a JSON string or number and validates the range
func (r *Rate) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid rate: %w", err)
	}
	parsed, err := NewRate(d)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value implements driver.Valuer
func (r Rate) Value() (driver.Value, error) {
	return r.String(), nil
}

// Scan implements sql.Scanner. A stored value outside [0, 1] is an error.
func (r *Rate) Scan(value any) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("failed to scan rate: %w", err)
	}
	parsed, err := NewRate(d)
	if err != nil {
		return fmt.Errorf("failed to scan rate: %w", err)
	}
	*r = parsed
	return nil
}
