package core

// convert.go turns raw spreadsheet cells into record values.
//
// Spreadsheet exports render money inconsistently: some cells arrive as
// numbers, others as comma-grouped strings like "1,208.73". Both helpers
// here are total and never fail, so a single malformed cell cannot abort
// the batch.

import (
	"math"
	"strconv"
	"strings"
)

// NormalizeCurrency converts a raw cell into an amount.
//
// nil, "" and 0 yield 0. Numbers are returned unchanged. Strings lose every
// thousands separator (",") and are parsed as a decimal; anything that does
// not parse yields 0. The whole string must be a number: trailing text such
// as "100%" yields 0. Currency symbols and comma decimals are not handled.
func NormalizeCurrency(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		return parseAmount(n)
	case *string:
		if n == nil {
			return 0
		}
		return parseAmount(*n)
	default:
		return 0
	}
}

func parseAmount(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

// finite maps NaN and ±Inf to 0.
func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// CellText returns the categorical value of a cell, or nil when empty.
// Strings are kept verbatim; numbers use their shortest decimal form.
func CellText(v any) *string {
	var s string
	switch c := v.(type) {
	case nil:
		return nil
	case string:
		s = c
	case *string:
		if c == nil {
			return nil
		}
		s = *c
	case float64:
		s = strconv.FormatFloat(c, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(c), 'f', -1, 32)
	case int:
		s = strconv.Itoa(c)
	case int64:
		s = strconv.FormatInt(c, 10)
	case bool:
		s = strconv.FormatBool(c)
	default:
		return nil
	}

	if s == "" {
		return nil
	}
	return &s
}
