package core

import (
	"fmt"
	"strconv"
	"strings"
)

// maxUnits keeps units*100 within int64.
const maxUnits = (1<<63 - 1) / 100

// ParseDecimalToCents reads a positive amount such as "12.34" or "12,34".
// Digits past the second decimal round half-up on the third ("12.345" is
// 1235 cents). Signs, grouping separators and zero are rejected with
// ErrInvalidAmount.
func ParseDecimalToCents(s string) (int64, error) {
	units, frac, ok := strings.Cut(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), ".")
	if units == "" && frac == "" {
		return 0, ErrInvalidAmount
	}
	if units == "" {
		units = "0"
	}
	if !ok {
		frac = ""
	}
	if !allDigits(units) || !allDigits(frac) {
		return 0, ErrInvalidAmount
	}

	n, err := strconv.ParseInt(units, 10, 64)
	if err != nil || n > maxUnits {
		return 0, ErrInvalidAmount
	}
	frac += "000"
	cents := n*100 + int64(frac[0]-'0')*10 + int64(frac[1]-'0')
	if frac[2] >= '5' {
		cents++
	}
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Float returns the value as a float64 for display purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

// String renders the amount with two decimals and a dot separator ("49.90").
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Split divides a total into n parts that sum back to the total. Leftover
// cents go to the first parts.
func (m Money) Split(n int) []Money {
	if n < 1 {
		return nil
	}
	base := m.Cents / int64(n)
	rem := m.Cents % int64(n)
	parts := make([]Money, n)
	for i := range parts {
		parts[i] = Money{Cents: base}
		if int64(i) < rem {
			parts[i].Cents++
		}
	}
	return parts
}
