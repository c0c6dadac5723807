package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// SignedAmount is +amount for income and -amount for expense.
func SignedAmount(t EntryType, amount decimal.Decimal) decimal.Decimal {
	if t == Expense {
		return amount.Neg()
	}
	return amount
}

// ConvertAmount returns amount × rate without rounding.
func ConvertAmount(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate)
}

// ValidateAmount requires a strictly positive amount.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero, got %s", ErrInvalidAmount, amount)
	}
	return nil
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCurrency requires a three-letter upper-case code.
func ValidateCurrency(code string) error {
	if !currencyPattern.MatchString(code) {
		return fmt.Errorf("%w: invalid currency code %q", ErrValidation, code)
	}
	return nil
}

// NormalizeName is the form names are compared in for uniqueness.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateName requires a non-blank name of at most 100 characters.
func ValidateName(field, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	if len([]rune(name)) > 100 {
		return fmt.Errorf("%w: %s must be at most 100 characters", ErrValidation, field)
	}
	return nil
}
