package chain

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	ErrAmountPrecision   = errors.New("amount has more decimal places than the chain supports")
)

// decimalAmount is plain decimal notation with an optional exponent of at
// most three digits. Other forms big.Rat accepts, such as 0x10 or 1/2, are
// rejected.
var decimalAmount = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d{1,3})?$`)

// ParseAmount parses a decimal amount in the chain's native unit.
// Exponent forms such as "1e-5" are accepted.
func ParseAmount(amount string) (*big.Rat, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if !decimalAmount.MatchString(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if r.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNonPositiveAmount, s)
	}
	return r, nil
}

// ToSmallestUnit converts a native-unit decimal amount to its integer base unit
// (wei for 18 decimals). Amounts finer than the chain precision are rejected.
func ToSmallestUnit(amount string, decimals uint8) (*big.Int, error) {
	r, err := ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))
	if !r.IsInt() {
		return nil, fmt.Errorf("%w: %s (max %d decimals)", ErrAmountPrecision, strings.TrimSpace(amount), decimals)
	}
	return new(big.Int).Set(r.Num()), nil
}

// FormatUnits renders a base-unit value in the chain's native unit without
// rounding. Trailing fractional zeros are dropped, so 1e17 wei is "0.1".
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	s := new(big.Rat).SetFrac(value, scale).FloatString(int(decimals))
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
