package core

import (
	"testing"
	"time"
)

func TestInvoicePeriodFor(t *testing.T) {
	tests := []struct {
		name       string
		purchase   time.Time
		closingDay int
		want       string
	}{
		{"after closing rolls to next month", time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), 15, "2025-02"},
		{"on closing day stays", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), 15, "2025-01"},
		{"before closing stays", time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), 15, "2025-01"},
		{"december rolls into next year", time.Date(2025, 12, 28, 0, 0, 0, 0, time.UTC), 10, "2026-01"},
		{"closing 31 in february is last day", time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), 31, "2025-02"},
		{"closing 30 in leap february", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), 30, "2024-02"},
		{"closing 1", time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), 1, "2025-05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InvoicePeriodFor(tt.purchase, tt.closingDay).String(); got != tt.want {
				t.Errorf("InvoicePeriodFor(%s, %d) = %s, want %s", tt.purchase.Format("2006-01-02"), tt.closingDay, got, tt.want)
			}
		})
	}
}

func TestInvoicePeriodForClampingMatchesLastDay(t *testing.T) {
	d := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	if InvoicePeriodFor(d, 31) != InvoicePeriodFor(d, 28) {
		t.Fatalf("closing day 31 in February must behave as 28")
	}
}

func TestInvoicePeriodForProperty(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for d := start; d.Year() < 2026; d = d.AddDate(0, 0, 1) {
		for c := 1; c <= 31; c++ {
			got := InvoicePeriodFor(d, c)
			own := PeriodOf(d)
			effective := c
			if last := own.DaysIn(); effective > last {
				effective = last
			}
			want := own
			if d.Day() > effective {
				want = own.Next()
			}
			if got != want {
				t.Fatalf("InvoicePeriodFor(%s, %d) = %s, want %s", d.Format("2006-01-02"), c, got, want)
			}
			if d.Day() <= c && got != own {
				t.Fatalf("day %d <= closing %d must stay in own month, got %s", d.Day(), c, got)
			}
		}
	}
}

func TestCardClosingDayOverride(t *testing.T) {
	card := Card{ID: "nubank", ClosingDay: 15, Overrides: map[string]int{"2025-02": 10}}

	if got := card.InvoicePeriod(NewDate(2025, 2, 12)).String(); got != "2025-03" {
		t.Errorf("override month: got %s, want 2025-03", got)
	}
	if got := card.InvoicePeriod(NewDate(2025, 3, 12)).String(); got != "2025-03" {
		t.Errorf("regular month: got %s, want 2025-03", got)
	}
}

func TestCardBookInvoicePeriod(t *testing.T) {
	book := NewCardBook(5, Card{ID: "nubank", ClosingDay: 15}, Card{ID: "inter", ClosingDay: 28})

	tests := []struct {
		card string
		date Date
		want string
	}{
		{"nubank", NewDate(2025, 1, 20), "2025-02"},
		{"inter", NewDate(2025, 1, 20), "2025-01"},
		{"unknown", NewDate(2025, 1, 4), "2025-01"},
		{"unknown", NewDate(2025, 1, 6), "2025-02"},
	}
	for _, tt := range tests {
		if got := book.InvoicePeriod(tt.card, tt.date).String(); got != tt.want {
			t.Errorf("InvoicePeriod(%s, %s) = %s, want %s", tt.card, tt.date, got, tt.want)
		}
	}

	cards := book.Cards()
	if len(cards) != 2 || cards[0].ID != "inter" {
		t.Errorf("Cards() = %+v, want sorted by id", cards)
	}
}
