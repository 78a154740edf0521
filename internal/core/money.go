// Package core provides the invoice-combination domain model.
//
// This file contains the number parsing used for every amount and count the
// user types. It accepts the same inputs a browser Number() conversion would
// for plain decimal text: surrounding whitespace, an optional sign, decimal
// and exponent notation. Grouping separators are rejected.
package core

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrNotANumber = errors.New("not a number")

// ParseNumber parses s as a decimal number.
//
// Examples:
//
//	ParseNumber(" 12.50 ") -> 12.5, nil
//	ParseNumber("1e3")     -> 1000, nil
//	ParseNumber("1,234")   -> error
//	ParseNumber("")        -> error
func ParseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrNotANumber
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrNotANumber
	}
	return d, nil
}

// ParsePositive parses s and reports whether it is a number greater than zero.
func ParsePositive(s string) (decimal.Decimal, bool) {
	d, err := ParseNumber(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// ParsePositiveInt parses s and reports whether it is an integer greater
// than zero. "3" and "3.0" are both accepted.
func ParsePositiveInt(s string) (int, bool) {
	d, ok := ParsePositive(s)
	if !ok || !d.IsInteger() {
		return 0, false
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return 0, false
	}
	return int(d.IntPart()), true
}

// ParseGroupedNumber parses numeric text that may contain comma thousands
// separators, as returned by the service for some amounts.
func ParseGroupedNumber(s string) (decimal.Decimal, bool) {
	d, err := ParseNumber(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
