// Package core holds the DTOs exchanged with the finance API and the
// validation and money helpers shared by the web front end and the CLI.
//
// Amounts are decimals. They travel as bare JSON numbers and are rounded
// half away from zero to two places when parsed from user input.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// ParseAmount parses a strictly positive amount such as a transaction value.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. When
// both appear, the rightmost one is the decimal separator and the other
// groups thousands, so FormatAmount output parses back. A lone separator is
// always decimal.
//
//	ParseAmount("12,345")   -> 12.35
//	ParseAmount("1,234.50") -> 1234.50
//	ParseAmount("1.234,50") -> 1234.50
//	ParseAmount("-1")       -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := ParseBalance(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseBalance parses a signed amount. Overdrawn accounts carry negative balances.
func ParseBalance(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s, ok := normalizeSeparators(s)
	if !ok {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// normalizeSeparators rewrites s to use a single dot as decimal separator.
// Thousands groups must be three digits wide.
func normalizeSeparators(s string) (string, bool) {
	dec := strings.LastIndexAny(s, ".,")
	if dec < 0 {
		return s, true
	}
	intPart, frac := s[:dec], s[dec+1:]
	if strings.ContainsAny(frac, ".,") {
		return "", false
	}
	if sep := strings.IndexAny(intPart, ".,"); sep >= 0 {
		if intPart[sep] == s[dec] {
			// "1.2.3": the same mark cannot be both grouping and decimal
			return "", false
		}
		groups := strings.Split(intPart, string(intPart[sep]))
		for i, g := range groups {
			if i > 0 && len(g) != 3 || g == "" || strings.ContainsAny(g, ".,") {
				return "", false
			}
		}
		intPart = strings.Join(groups, "")
	}
	return intPart + "." + frac, true
}

// FormatAmount renders a decimal with two places and a thousands separator,
// e.g. 1234.5 -> "1,234.50".
func FormatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
