// Package core provides money parsing and handling utilities.
//
// This file contains the coercion used at the aggregation boundary, where
// amounts arrive from weakly-typed JSON responses.
package core

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount coerces a decoded JSON value into a non-negative amount.
//
// Numbers (float64, json.Number, integers) and numeric strings are
// accepted. Decimal commas ("12,34") are normalized to dots. Anything else,
// including negative, NaN or infinite values, reports ok=false.
//
// Examples:
//
//	ParseAmount(12.5)          -> 12.5, true
//	ParseAmount("12,34")       -> 12.34, true
//	ParseAmount("x")           -> 0, false
//	ParseAmount(nil)           -> 0, false
func ParseAmount(v any) (decimal.Decimal, bool) {
	var d decimal.Decimal
	switch x := v.(type) {
	case decimal.Decimal:
		d = x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, false
		}
		d = decimal.NewFromFloat(x)
	case float32:
		return ParseAmount(float64(x))
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	case json.Number:
		parsed, err := decimal.NewFromString(x.String())
		if err != nil {
			return decimal.Zero, false
		}
		d = parsed
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", ".")
		if s == "" {
			return decimal.Zero, false
		}
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		d = parsed
	default:
		return decimal.Zero, false
	}
	if d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// AmountOrZero is ParseAmount with the failure case folded to zero.
func AmountOrZero(v any) decimal.Decimal {
	d, ok := ParseAmount(v)
	if !ok {
		return decimal.Zero
	}
	return d
}
