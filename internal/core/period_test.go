package core

import (
	"errors"
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2025-06")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Year != 2025 || p.Month != time.June {
		t.Fatalf("got %+v", p)
	}
	if p.String() != "2025-06" {
		t.Fatalf("String() = %q", p.String())
	}

	for _, bad := range []string{"", "2025-13", "06/2025", "2025"} {
		if _, err := ParsePeriod(bad); !errors.Is(err, ErrValidation) {
			t.Errorf("ParsePeriod(%q) expected validation error, got %v", bad, err)
		}
	}
}

func TestPeriodArithmetic(t *testing.T) {
	p := Period{Year: 2025, Month: time.December}
	if got := p.Next().String(); got != "2026-01" {
		t.Errorf("Next() = %s", got)
	}
	if got := p.AddMonths(-12).String(); got != "2024-12" {
		t.Errorf("AddMonths(-12) = %s", got)
	}
	if !p.Before(p.Next()) || p.Next().Before(p) {
		t.Error("Before ordering is wrong")
	}
	if got := (Period{Year: 2024, Month: time.February}).DaysIn(); got != 29 {
		t.Errorf("DaysIn leap February = %d", got)
	}
	if got := (Period{Year: 2025, Month: time.June}).DateOn(31); !got.Equal(NewDate(2025, 6, 30).Time) {
		t.Errorf("DateOn(31) = %s", got)
	}
}

func TestPeriodText(t *testing.T) {
	var p Period
	if err := p.UnmarshalText([]byte("2025-02")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := p.MarshalText()
	if string(b) != "2025-02" {
		t.Fatalf("MarshalText = %q", b)
	}
	if err := p.UnmarshalText(nil); err != nil || !p.IsZero() {
		t.Fatalf("empty text should yield zero period, got %+v err=%v", p, err)
	}
}
