package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"financas/internal/core"
)

func TestExpandSeriesFlagMatrix(t *testing.T) {
	seed := cardSeed(3, 5, core.NewDate(2025, 1, 20))

	tests := []struct {
		name         string
		opts         SeriesOptions
		wantIndices  []int
		wantDates    []string
		wantInvoices []string
	}{
		{
			name:         "future and past, purchase date logic",
			opts:         SeriesOptions{GenerateFuture: true, GeneratePast: true, UsePurchaseDateLogic: true},
			wantIndices:  []int{1, 2, 3, 4, 5},
			wantDates:    []string{"2024-11-20", "2024-12-20", "2025-01-20", "2025-02-20", "2025-03-20"},
			wantInvoices: []string{"2024-12", "2025-01", "2025-02", "2025-03", "2025-04"},
		},
		{
			name:         "future and past, invoice month dates",
			opts:         SeriesOptions{GenerateFuture: true, GeneratePast: true},
			wantIndices:  []int{1, 2, 3, 4, 5},
			wantDates:    []string{"2024-11-20", "2024-12-20", "2025-01-20", "2025-02-20", "2025-03-20"},
			wantInvoices: []string{"2024-11", "2024-12", "2025-01", "2025-02", "2025-03"},
		},
		{
			name:         "future only, purchase date logic",
			opts:         SeriesOptions{GenerateFuture: true, UsePurchaseDateLogic: true},
			wantIndices:  []int{3, 4, 5},
			wantDates:    []string{"2025-01-20", "2025-02-20", "2025-03-20"},
			wantInvoices: []string{"2025-02", "2025-03", "2025-04"},
		},
		{
			name:         "future only, invoice month dates",
			opts:         SeriesOptions{GenerateFuture: true},
			wantIndices:  []int{3, 4, 5},
			wantDates:    []string{"2025-01-20", "2025-02-20", "2025-03-20"},
			wantInvoices: []string{"2025-01", "2025-02", "2025-03"},
		},
		{
			name:         "past only, purchase date logic",
			opts:         SeriesOptions{GeneratePast: true, UsePurchaseDateLogic: true},
			wantIndices:  []int{1, 2, 3},
			wantDates:    []string{"2024-11-20", "2024-12-20", "2025-01-20"},
			wantInvoices: []string{"2024-12", "2025-01", "2025-02"},
		},
		{
			name:         "past only, invoice month dates",
			opts:         SeriesOptions{GeneratePast: true},
			wantIndices:  []int{1, 2, 3},
			wantDates:    []string{"2024-11-20", "2024-12-20", "2025-01-20"},
			wantInvoices: []string{"2024-11", "2024-12", "2025-01"},
		},
		{
			name:         "seed only",
			opts:         SeriesOptions{UsePurchaseDateLogic: true},
			wantIndices:  []int{3},
			wantDates:    []string{"2025-01-20"},
			wantInvoices: []string{"2025-02"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandSeries(seed, testCards(), tt.opts)
			if err != nil {
				t.Fatalf("ExpandSeries: %v", err)
			}
			if len(got) != len(tt.wantIndices) {
				t.Fatalf("got %d records, want %d", len(got), len(tt.wantIndices))
			}
			group := got[0].InstallmentGroupID
			for i, r := range got {
				if r.InstallmentIndex != tt.wantIndices[i] {
					t.Errorf("record %d index = %d, want %d", i, r.InstallmentIndex, tt.wantIndices[i])
				}
				if r.Date.String() != tt.wantDates[i] {
					t.Errorf("record %d date = %s, want %s", i, r.Date, tt.wantDates[i])
				}
				if r.InvoicePeriod.String() != tt.wantInvoices[i] {
					t.Errorf("record %d invoice = %s, want %s", i, r.InvoicePeriod, tt.wantInvoices[i])
				}
				if r.InstallmentGroupID != group || r.InstallmentCount != 5 || !r.IsInstallment {
					t.Errorf("record %d not linked to the group: %+v", i, r)
				}
			}
		})
	}
}

func TestExpandSeriesPastIgnoredForFirstInstallment(t *testing.T) {
	got, err := ExpandSeries(cardSeed(1, 3, core.NewDate(2025, 1, 10)), testCards(), SeriesOptions{GeneratePast: true})
	if err != nil {
		t.Fatalf("ExpandSeries: %v", err)
	}
	if len(got) != 1 || got[0].InstallmentIndex != 1 {
		t.Fatalf("expected only the seed, got %+v", got)
	}
}

func TestExpandSeriesProducesFullGroup(t *testing.T) {
	for n := 1; n <= 24; n++ {
		seed := cardSeed(1, n, core.NewDate(2025, 1, 31))
		got, err := ExpandSeries(seed, testCards(), fullSeries())
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if len(got) != n {
			t.Fatalf("n=%d: got %d records", n, len(got))
		}
		var sum int64
		for i, r := range got {
			if r.InstallmentIndex != i+1 {
				t.Fatalf("n=%d: index %d at position %d", n, r.InstallmentIndex, i)
			}
			sum += r.InstallmentAmount.Cents
			if i == 0 {
				continue
			}
			prev := got[i-1].Date
			if !r.Date.After(prev.Time) || r.Date.Period() != prev.Period().Next() {
				t.Fatalf("n=%d: %s does not follow %s by one month", n, r.Date, prev)
			}
		}
		if sum != seed.Amount.Cents {
			t.Fatalf("n=%d: installments sum to %d, want %d", n, sum, seed.Amount.Cents)
		}
	}
}

func TestExpandSeriesCrossesYearBoundary(t *testing.T) {
	got, err := ExpandSeries(cardSeed(1, 3, core.NewDate(2025, 12, 20)), testCards(), fullSeries())
	if err != nil {
		t.Fatalf("ExpandSeries: %v", err)
	}
	want := []string{"2026-01", "2026-02", "2026-03"}
	for i, r := range got {
		if r.InvoicePeriod.String() != want[i] {
			t.Errorf("installment %d invoice = %s, want %s", r.InstallmentIndex, r.InvoicePeriod, want[i])
		}
	}
}

func TestExpandSeriesAmounts(t *testing.T) {
	seed := cardSeed(1, 3, core.NewDate(2025, 3, 1))
	seed.Amount = core.Money{Cents: 10001}
	got, _ := ExpandSeries(seed, testCards(), fullSeries())
	want := []int64{3334, 3334, 3333}
	for i, r := range got {
		if r.InstallmentAmount.Cents != want[i] || r.Amount.Cents != 10001 {
			t.Errorf("installment %d: amount %d, per-installment %d", i+1, r.Amount.Cents, r.InstallmentAmount.Cents)
		}
	}

	seed.InstallmentAmount = core.Money{Cents: 4990}
	got, _ = ExpandSeries(seed, testCards(), fullSeries())
	for _, r := range got {
		if r.InstallmentAmount.Cents != 4990 {
			t.Errorf("explicit per-installment amount not kept: %d", r.InstallmentAmount.Cents)
		}
	}
}

func TestExpandSeriesStripsToken(t *testing.T) {
	seed := cardSeed(2, 10, core.NewDate(2025, 3, 5))
	seed.Description = "Amazon 02/10"
	got, _ := ExpandSeries(seed, testCards(), fullSeries())
	for _, r := range got {
		if r.Description != "Amazon" {
			t.Fatalf("sibling description = %q, want Amazon", r.Description)
		}
	}
}

func TestExpandSeriesRejectsBadSeed(t *testing.T) {
	tests := []struct {
		name  string
		index int
		count int
	}{
		{"zero count", 1, 0},
		{"index above count", 4, 3},
		{"zero index", 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExpandSeries(cardSeed(tt.index, tt.count, core.NewDate(2025, 1, 1)), testCards(), fullSeries())
			if !errors.Is(err, core.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestPreviewSeries(t *testing.T) {
	feb := core.Period{Year: 2025, Month: time.February}
	seed := cardSeed(3, 5, core.NewDate(2025, 1, 20))
	seed.InvoicePeriod = feb

	tests := []struct {
		name       string
		seed       core.LedgerRecord
		viewed     core.Period
		purchase   bool
		wantClosed bool
		wantPeriod string
	}{
		{"purchase logic follows viewed invoice", seed, core.Period{Year: 2025, Month: time.March}, true, false, "2025-04"},
		{"purchase logic without viewed month", seed, core.Period{}, true, false, "2025-03"},
		{"invoice month dates follow seed date", seed, core.Period{Year: 2025, Month: time.March}, false, false, "2025-02"},
		{"last installment is closed", cardSeed(5, 5, core.NewDate(2025, 1, 20)), feb, true, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PreviewSeries(tt.seed, tt.viewed, tt.purchase)
			if got.Closed != tt.wantClosed {
				t.Fatalf("Closed = %v, want %v", got.Closed, tt.wantClosed)
			}
			if got.NextPeriod.String() != tt.wantPeriod {
				t.Errorf("NextPeriod = %s, want %s", got.NextPeriod, tt.wantPeriod)
			}
			if !got.Closed && (got.NextIndex != 4 || got.Remaining != 2) {
				t.Errorf("unexpected preview %+v", got)
			}
		})
	}
}

func TestCreateInstallmentSeriesStoresGroup(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestLedger(newFlakyStore())

	res, err := svc.CreateInstallmentSeries(ctx, cardSeed(1, 4, core.NewDate(2025, 1, 20)), fullSeries())
	if err != nil {
		t.Fatalf("CreateInstallmentSeries: %v", err)
	}
	group, _ := svc.ListGroup(ctx, res.GroupID)
	if len(group) != 4 || len(res.IDs()) != 4 {
		t.Fatalf("expected 4 stored siblings, got %d", len(group))
	}
	if pub.count("record.created") != 4 {
		t.Errorf("expected 4 created events, got %d", pub.count("record.created"))
	}
}

func TestCreateInstallmentSeriesAbortsOnFailure(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	svc, _ := newTestLedger(store)

	seed := cardSeed(1, 3, core.NewDate(2025, 1, 20))
	seed.CardID = ""
	seed.PaymentMethod = core.CashOrTransfer
	seed.Description = "Quebra"
	store.failDescription = "Quebra"

	res, err := svc.CreateInstallmentSeries(ctx, seed, fullSeries())
	var pbf *core.PartialBatchFailure
	if !errors.As(err, &pbf) {
		t.Fatalf("expected *PartialBatchFailure, got %v", err)
	}
	if len(res.Records) != 0 || len(pbf.Succeeded) != 0 || len(pbf.Failed) != 1 {
		t.Fatalf("expected abort on the first write, got %+v", pbf)
	}
	if !errors.Is(pbf.Failed[0].Err, core.ErrExternalStore) {
		t.Errorf("store failure should be surfaced, got %v", pbf.Failed[0].Err)
	}
}
