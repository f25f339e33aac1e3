package core

import (
	"sort"
	"time"
)

// InvoicePeriodFor maps a purchase date and a card closing day to the invoice
// the charge is billed under. Purchases after the closing day roll into the
// next month's invoice. A closing day beyond the month length behaves as the
// month's last day, so the function is total for closingDay in [1, 31].
func InvoicePeriodFor(purchase time.Time, closingDay int) Period {
	own := PeriodOf(purchase)
	if closingDay < 1 {
		closingDay = 1
	}
	if last := own.DaysIn(); closingDay > last {
		closingDay = last
	}
	if purchase.Day() > closingDay {
		return own.Next()
	}
	return own
}

// Card is a credit card with its invoice closing day. Overrides replace the
// closing day for purchases made in a specific calendar month, keyed "YYYY-MM".
type Card struct {
	ID         string
	Name       string
	ClosingDay int
	Overrides  map[string]int
}

// ClosingDayFor returns the closing day that applies to purchases made in
// purchaseMonth.
func (c Card) ClosingDayFor(purchaseMonth Period) int {
	if day, ok := c.Overrides[purchaseMonth.String()]; ok {
		return day
	}
	return c.ClosingDay
}

// InvoicePeriod assigns a purchase on this card to its invoice.
func (c Card) InvoicePeriod(purchase Date) Period {
	return InvoicePeriodFor(purchase.Time, c.ClosingDayFor(purchase.Period()))
}

// CardBook is the set of known cards. Purchases on a card that is not in the
// book use DefaultClosingDay.
type CardBook struct {
	DefaultClosingDay int
	cards             map[string]Card
}

func NewCardBook(defaultClosingDay int, cards ...Card) CardBook {
	b := CardBook{DefaultClosingDay: defaultClosingDay, cards: make(map[string]Card, len(cards))}
	for _, c := range cards {
		b.cards[c.ID] = c
	}
	return b
}

func (b CardBook) Card(id string) (Card, bool) {
	c, ok := b.cards[id]
	return c, ok
}

// Cards lists the book ordered by id.
func (b CardBook) Cards() []Card {
	out := make([]Card, 0, len(b.cards))
	for _, c := range b.cards {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InvoicePeriod assigns a purchase on cardID to its invoice.
func (b CardBook) InvoicePeriod(cardID string, purchase Date) Period {
	if c, ok := b.cards[cardID]; ok {
		return c.InvoicePeriod(purchase)
	}
	return InvoicePeriodFor(purchase.Time, b.DefaultClosingDay)
}
