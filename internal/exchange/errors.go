package exchange

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnsupportedAPIResponse is returned when a response is missing a
	// required field, carries a malformed value or describes another
	// instrument or currency than the one requested.
	ErrUnsupportedAPIResponse = errors.New("exchange: unsupported api response")

	// ErrEmptyAPIResponse is returned when the exchange answered with no
	// data at all (e.g. no open position yet).
	ErrEmptyAPIResponse = errors.New("exchange: empty api response")

	// ErrMissingAccountValue is returned when a balance response lacks the
	// account equity or the collateral currency entry.
	ErrMissingAccountValue = errors.New("exchange: missing account value")

	// ErrRejected is returned when the exchange accepted the request but
	// refused to execute it.
	ErrRejected = errors.New("exchange: request rejected")

	// ErrExchangeCall wraps transport, rate-limit and client failures.
	ErrExchangeCall = errors.New("exchange: call failed")
)

// ValidationKind classifies input validation failures.
type ValidationKind string

const (
	UnsupportedCurrency   ValidationKind = "unsupported_currency"
	NonPositiveQuantity   ValidationKind = "non_positive_quantity"
	UnsupportedAddress    ValidationKind = "unsupported_address"
	MissingParameters     ValidationKind = "missing_parameters"
	UnsupportedInstrument ValidationKind = "unsupported_instrument"
	UnsupportedSide       ValidationKind = "unsupported_side"
)

// ValidationError is returned before any network call when the arguments
// of an operation are invalid. It is a local programming or configuration
// fault and is never retried.
type ValidationError struct {
	Kind  ValidationKind
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("exchange: invalid input: %s (%s)", e.Kind, e.Field)
	}
	return fmt.Sprintf("exchange: invalid input: %s (%s=%q)", e.Kind, e.Field, e.Value)
}

// Invalid builds a ValidationError.
func Invalid(kind ValidationKind, field, value string) error {
	return &ValidationError{Kind: kind, Field: field, Value: value}
}

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Unsupported wraps ErrUnsupportedAPIResponse with detail.
func Unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedAPIResponse, fmt.Sprintf(format, args...))
}

// ParseDecimal parses a numeric string field of a response. Empty or
// malformed strings are rejected rather than coerced to zero.
func ParseDecimal(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, Unsupported("missing numeric field %s", field)
	}
	v, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, Unsupported("malformed numeric field %s=%q", field, value)
	}
	return v, nil
}
