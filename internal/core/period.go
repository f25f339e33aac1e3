package core

import (
	"fmt"
	"time"
)

// Period is a calendar month, rendered as "YYYY-MM". It is used both for
// invoice periods and for recurring reference periods.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod builds a normalized period (month 13 rolls into the next year).
func NewPeriod(year int, month time.Month) Period {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{Year: t.Year(), Month: t.Month()}
}

// PeriodOf returns the calendar month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, &ValidationError{Field: "period", Reason: fmt.Sprintf("invalid period %q, want YYYY-MM", s), Err: ErrInvalidMonth}
	}
	return PeriodOf(t), nil
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// MarshalText renders the period as "YYYY-MM" (empty for the zero period).
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*p = Period{}
		return nil
	}
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Period) AddMonths(n int) Period {
	return NewPeriod(p.Year, p.Month+time.Month(n))
}

func (p Period) Next() Period {
	return p.AddMonths(1)
}

func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// DaysIn returns the number of days in the month.
func (p Period) DaysIn() int {
	return time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateOn returns the date for the given day in this month, clamped to the
// month's last day.
func (p Period) DateOn(day int) Date {
	if day < 1 {
		day = 1
	}
	if last := p.DaysIn(); day > last {
		day = last
	}
	return NewDate(p.Year, int(p.Month), day)
}

// Range returns the first day of the period and the first day of the next one.
func (p Period) Range() (from, to Date) {
	return p.DateOn(1), p.Next().DateOn(1)
}
