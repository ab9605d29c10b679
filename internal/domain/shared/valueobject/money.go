package valueobject

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Currency represents a currency code (ISO 4217)
type Currency string

// GHS is the Ghana Cedi, the currency every amount in the shop is kept in
const GHS Currency = "GHS"

// MoneyScale is the number of fractional digits money values are kept and displayed with
const MoneyScale int32 = 2

var (
	// ErrSubCentPrecision is returned when an amount carries more than two fractional digits
	ErrSubCentPrecision = errors.New("amount must have at most two decimal places")

	oneCent        = decimal.New(1, -MoneyScale)
	displayPrinter = message.NewPrinter(language.English)
)

// Money is a value object representing monetary amounts
// It is immutable - all operations return new Money instances
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoneyGHS creates Money in GHS (Ghana Cedi)
func NewMoneyGHS(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: GHS}
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Add returns a new Money with the sum of both amounts
// Returns error if currencies don't match
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{
		amount:   m.amount.Add(other.amount),
		currency: m.currency,
	}, nil
}

// MustAdd adds two Money values, panics if currencies don't match
func (m Money) MustAdd(other Money) Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// MultiplyByInt returns a new Money multiplied by an integer
func (m Money) MultiplyByInt(factor int64) Money {
	return Money{
		amount:   m.amount.Mul(decimal.NewFromInt(factor)),
		currency: m.currency,
	}
}

// Display formats the amount for people, with digit grouping: "GHS 1,234.50".
func (m Money) Display() string {
	f, _ := m.amount.Round(MoneyScale).Float64()
	return fmt.Sprintf("%s %s", m.currency, displayPrinter.Sprint(number.Decimal(f, number.Scale(int(MoneyScale)))))
}

// Allocate divides money into n parts, handling remainders
// Returns a slice of Money values that sum to the original amount; leftover cents go to the first parts.
func (m Money) Allocate(parts int) ([]Money, error) {
	if parts <= 0 {
		return nil, errors.New("parts must be positive")
	}
	if parts == 1 {
		return []Money{m}, nil
	}

	base := m.amount.Div(decimal.NewFromInt(int64(parts))).Truncate(MoneyScale)
	remainder := m.amount.Sub(base.Mul(decimal.NewFromInt(int64(parts))))
	remainderCents := remainder.Div(oneCent).IntPart()

	result := make([]Money, parts)
	for i := range parts {
		partAmount := base
		if int64(i) < remainderCents {
			partAmount = partAmount.Add(oneCent)
		}
		result[i] = Money{amount: partAmount, currency: m.currency}
	}

	return result, nil
}

// HasCentPrecision reports whether d is representable in whole cents
func HasCentPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}

// ValidateAmount checks an amount is non-negative and at most cent precision.
func ValidateAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return errors.New("amount cannot be negative")
	}
	if !HasCentPrecision(d) {
		return ErrSubCentPrecision
	}
	return nil
}
