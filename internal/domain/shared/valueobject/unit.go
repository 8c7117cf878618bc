package valueobject

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit is an immutable unit of measure with its conversion factor to the item's stock unit.
// 1 of this unit equals ConversionRate stock units.
type Unit struct {
	code           string
	conversionRate decimal.Decimal
}

const maxUnitCodeLength = 20

// NewUnit creates a Unit. The code is trimmed and upper-cased.
func NewUnit(code string, conversionRate decimal.Decimal) (Unit, error) {
	code = strings.TrimSpace(strings.ToUpper(code))
	if code == "" {
		return Unit{}, errors.New("unit code cannot be empty")
	}
	if len(code) > maxUnitCodeLength {
		return Unit{}, fmt.Errorf("unit code cannot exceed %d characters", maxUnitCodeLength)
	}
	if !conversionRate.IsPositive() {
		return Unit{}, errors.New("unit conversion rate must be positive")
	}
	return Unit{code: code, conversionRate: conversionRate}, nil
}

// NewBaseUnit creates a Unit with a conversion rate of 1
func NewBaseUnit(code string) (Unit, error) {
	return NewUnit(code, decimal.NewFromInt(1))
}

// MustNewUnit creates a Unit and panics on error
func MustNewUnit(code string, conversionRate decimal.Decimal) Unit {
	u, err := NewUnit(code, conversionRate)
	if err != nil {
		panic(err)
	}
	return u
}

// Code returns the normalized unit code
func (u Unit) Code() string {
	return u.code
}

// ConversionRate returns how many stock units one of this unit holds
func (u Unit) ConversionRate() decimal.Decimal {
	return u.conversionRate
}

// IsBaseUnit returns true if the conversion rate is exactly 1
func (u Unit) IsBaseUnit() bool {
	return u.conversionRate.Equal(decimal.NewFromInt(1))
}

// IsZero returns true for the zero value
func (u Unit) IsZero() bool {
	return u.code == "" && u.conversionRate.IsZero()
}

// MatchesCode compares codes case-insensitively
func (u Unit) MatchesCode(code string) bool {
	return u.code == strings.TrimSpace(strings.ToUpper(code))
}

// ToBase converts a quantity in this unit to stock units, keeping its sign
func (u Unit) ToBase(quantity decimal.Decimal, places int32) decimal.Decimal {
	return quantity.Mul(u.conversionRate).Round(places)
}

// RateToBase converts a per-unit rate in this unit into a per-stock-unit rate
func (u Unit) RateToBase(rate decimal.Decimal, places int32) decimal.Decimal {
	if u.conversionRate.IsZero() {
		return decimal.Zero
	}
	return rate.Div(u.conversionRate).Round(places)
}

// String returns a string representation of the Unit
func (u Unit) String() string {
	if u.IsBaseUnit() {
		return u.code
	}
	return fmt.Sprintf("%s (x%s)", u.code, u.conversionRate.String())
}
