package importer

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"financas/internal/core"
)

// futureRollback is how far ahead of now a year-less date may land before it
// is assumed to belong to the previous year (December rows read in January).
const futureRollback = 180 * 24 * time.Hour

var errUnparseableDate = errors.New("unparseable date")

var (
	isoDate      = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	numericDate  = regexp.MustCompile(`^(\d{1,2})[/.](\d{1,2})(?:[/.](\d{4}|\d{2}))?$`)
	monthAbbDate = regexp.MustCompile(`^(\d{1,2})[/\s-]*([a-z]{3})\.?$`)
)

var monthAbbrevs = map[string]time.Month{
	"jan": time.January, "fev": time.February, "feb": time.February,
	"mar": time.March, "abr": time.April, "apr": time.April,
	"mai": time.May, "may": time.May, "jun": time.June, "jul": time.July,
	"ago": time.August, "aug": time.August, "set": time.September, "sep": time.September,
	"out": time.October, "oct": time.October, "nov": time.November,
	"dez": time.December, "dec": time.December,
}

// parseDate reads the statement date formats seen in the wild: DD/MM/YYYY,
// DD/MM/YY, DD/MM, DD/<month abbreviation> and ISO YYYY-MM-DD. Year-less
// dates take the year of now and roll back one year when that puts them more
// than 180 days in the future.
func parseDate(raw string, now time.Time) (core.Date, error) {
	s := strings.ToLower(strings.TrimSpace(raw))

	if m := isoDate.FindStringSubmatch(s); m != nil {
		return buildDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}

	if m := numericDate.FindStringSubmatch(s); m != nil {
		day, month := atoi(m[1]), atoi(m[2])
		switch len(m[3]) {
		case 4:
			return buildDate(atoi(m[3]), month, day)
		case 2:
			return buildDate(2000+atoi(m[3]), month, day)
		}
		return inferYear(day, month, now)
	}

	if m := monthAbbDate.FindStringSubmatch(accentFolder.Replace(s)); m != nil {
		month, ok := monthAbbrevs[m[2]]
		if !ok {
			return core.Date{}, errUnparseableDate
		}
		return inferYear(atoi(m[1]), int(month), now)
	}

	return core.Date{}, errUnparseableDate
}

func inferYear(day, month int, now time.Time) (core.Date, error) {
	d, err := buildDate(now.Year(), month, day)
	if err != nil {
		return d, err
	}
	today := core.DateOf(now)
	if d.Sub(today.Time) > futureRollback {
		return buildDate(now.Year()-1, month, day)
	}
	return d, nil
}

// buildDate rejects out-of-range parts instead of letting time.Date normalize
// 31/02 into March.
func buildDate(year, month, day int) (core.Date, error) {
	if month < 1 || month > 12 || day < 1 {
		return core.Date{}, errUnparseableDate
	}
	d := core.NewDate(year, month, day)
	if d.Day() != day {
		return core.Date{}, errUnparseableDate
	}
	return d, nil
}

var currencyStripper = strings.NewReplacer("R$", "", "US$", "", "$", "", "€", "", "BRL", "", " ", "", "\u00a0", "")

// parseAmount converts a statement amount to signed cents. When both '.' and
// ',' appear the dot is a thousands separator; a lone ',' is the decimal
// separator. Parentheses and a trailing '-' also mark negatives.
func parseAmount(raw string) (int64, error) {
	s := currencyStripper.Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0, core.ErrInvalidAmount
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	switch {
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = !negative
		s = s[:len(s)-1]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	s = currencyStripper.Replace(s)

	if strings.Contains(s, ".") && strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")

	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return 0, err
	}
	if negative {
		cents = -cents
	}
	return cents, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// parseCount reads a bare installment number such as "3" or "03".
func parseCount(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}
