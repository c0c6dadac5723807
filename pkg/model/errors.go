package model

import (
	"errors"

	"money-ledger/pkg/store"
)

// Domain errors. Operations wrap them with context using fmt.Errorf("%w: ...").
var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrValidation           = errors.New("validation failed")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidType          = errors.New("invalid type")
	ErrSameAccount          = errors.New("source and destination account are the same")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInvalidExchangeRate  = errors.New("invalid exchange rate")
	ErrDuplicateName        = errors.New("name already exists")
	ErrAccountInactive      = errors.New("account is inactive")
	ErrCategoryInactive     = errors.New("category is inactive")
	ErrCurrencyMismatch     = errors.New("currency does not match account")
	ErrCategoryTypeMismatch = errors.New("category type does not match transaction type")
)

// Kind is the coarse class of an error, used to pick a response status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindUnavailable
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Classify maps an error chain to its Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, store.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateName),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrAlreadyExists):
		return KindConflict
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidType),
		errors.Is(err, ErrSameAccount),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrInvalidExchangeRate),
		errors.Is(err, ErrAccountInactive),
		errors.Is(err, ErrCategoryInactive),
		errors.Is(err, ErrCurrencyMismatch),
		errors.Is(err, ErrCategoryTypeMismatch),
		errors.Is(err, store.ErrInvalidID),
		errors.Is(err, store.ErrInvalidQuery):
		return KindValidation
	case errors.Is(err, store.ErrCircuitOpen),
		errors.Is(err, store.ErrTimeout),
		errors.Is(err, store.ErrUnavailable):
		return KindUnavailable
	}
	return KindInternal
}

// Outcome is the metrics label for an operation result.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return Classify(err).String()
}
