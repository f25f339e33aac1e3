package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"financas/internal/core"
	"financas/internal/storage"
)

func TestCreateRecordAssignsInvoice(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		card        string
		date        core.Date
		wantInvoice string
	}{
		{"after closing day", "nubank", core.NewDate(2025, 1, 20), "2025-02"},
		{"on closing day", "nubank", core.NewDate(2025, 1, 15), "2025-01"},
		{"december rolls the year", "nubank", core.NewDate(2025, 12, 16), "2026-01"},
		{"unknown card uses default closing day", "itau", core.NewDate(2025, 3, 1), "2025-03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, pub := newTestLedger(newFlakyStore())
			r := cashRecord("Farmácia", tt.date)
			r.PaymentMethod = core.CreditCard
			r.CardID = tt.card
			r.InvoicePeriod = core.NewPeriod(1999, time.January)

			got, err := svc.CreateRecord(ctx, r)
			if err != nil {
				t.Fatalf("CreateRecord: %v", err)
			}
			if got.InvoicePeriod.String() != tt.wantInvoice {
				t.Errorf("invoice = %s, want %s", got.InvoicePeriod, tt.wantInvoice)
			}
			if pub.count("record.created") != 1 {
				t.Errorf("expected one created event")
			}
		})
	}
}

func TestCreateRecordCashHasNoInvoice(t *testing.T) {
	svc, _ := newTestLedger(newFlakyStore())
	r := cashRecord("Feira", core.NewDate(2025, 5, 3))
	r.InvoicePeriod = core.NewPeriod(2025, time.May)

	got, err := svc.CreateRecord(context.Background(), r)
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if !got.InvoicePeriod.IsZero() {
		t.Errorf("cash record got invoice %s", got.InvoicePeriod)
	}
}

func TestCreateRecordValidation(t *testing.T) {
	svc, pub := newTestLedger(newFlakyStore())

	tests := []struct {
		name   string
		mutate func(*core.LedgerRecord)
	}{
		{"empty description", func(r *core.LedgerRecord) { r.Description = "  " }},
		{"zero amount", func(r *core.LedgerRecord) { r.Amount = core.Money{} }},
		{"card without id", func(r *core.LedgerRecord) { r.PaymentMethod = core.CreditCard }},
		{"unknown kind", func(r *core.LedgerRecord) { r.Kind = "LOAN" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := cashRecord("Padaria", core.NewDate(2025, 2, 2))
			tt.mutate(&r)
			if _, err := svc.CreateRecord(context.Background(), r); !errors.Is(err, core.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if len(pub.events) != 0 {
		t.Errorf("rejected records must not publish events, got %d", len(pub.events))
	}
}

func TestCreateRecordPublishFailureIsNotFatal(t *testing.T) {
	svc, pub := newTestLedger(newFlakyStore())
	pub.err = errors.New("broker down")

	got, err := svc.CreateRecord(context.Background(), cashRecord("Luz", core.NewDate(2025, 2, 10)))
	if err != nil {
		t.Fatalf("publish failure leaked into CreateRecord: %v", err)
	}
	if _, err := svc.Get(context.Background(), got.ID); err != nil {
		t.Fatalf("record not stored: %v", err)
	}
}

func TestNilPublisherIsSkipped(t *testing.T) {
	svc := NewLedgerService(newFlakyStore(), testCards(), nil, nil)
	if _, err := svc.CreateRecord(context.Background(), cashRecord("Água", core.NewDate(2025, 2, 10))); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
}

func TestEditRecordRecomputesInvoice(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestLedger(newFlakyStore())

	r := cashRecord("Cinema", core.NewDate(2025, 1, 10))
	r.PaymentMethod = core.CreditCard
	r.CardID = "nubank"
	created, err := svc.CreateRecord(ctx, r)
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if created.InvoicePeriod.String() != "2025-01" {
		t.Fatalf("invoice = %s, want 2025-01", created.InvoicePeriod)
	}

	newDate := core.NewDate(2025, 1, 20)
	bogus := core.NewPeriod(2030, time.June)
	got, err := svc.EditRecord(ctx, created.ID, storage.Patch{Date: &newDate, InvoicePeriod: &bogus})
	if err != nil {
		t.Fatalf("EditRecord: %v", err)
	}
	if got.InvoicePeriod.String() != "2025-02" {
		t.Errorf("invoice after edit = %s, want 2025-02", got.InvoicePeriod)
	}
	if pub.count("record.updated") != 1 {
		t.Errorf("expected one updated event, got %d", pub.count("record.updated"))
	}
}

func TestEditRecordIgnoresInvoiceWithoutDateChange(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestLedger(newFlakyStore())
	created, _ := svc.CreateRecord(ctx, cashRecord("Táxi", core.NewDate(2025, 4, 4)))

	bogus := core.NewPeriod(2030, time.June)
	got, err := svc.EditRecord(ctx, created.ID, storage.Patch{InvoicePeriod: &bogus})
	if err != nil {
		t.Fatalf("EditRecord: %v", err)
	}
	if !got.InvoicePeriod.IsZero() {
		t.Errorf("invoice period was written: %s", got.InvoicePeriod)
	}
	if pub.count("record.updated") != 0 {
		t.Errorf("empty patch should not publish")
	}
}

func TestEditRecordPropagatesToGroup(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(newFlakyStore())
	series, err := svc.CreateInstallmentSeries(ctx, cardSeed(1, 4, core.NewDate(2025, 1, 20)), fullSeries())
	if err != nil {
		t.Fatalf("CreateInstallmentSeries: %v", err)
	}

	member := "ana"
	desc := "Notebook Dell 02/04"
	amount := core.Money{Cents: 9999}
	target := series.Records[1].ID
	if _, err := svc.EditRecord(ctx, target, storage.Patch{SpenderMemberID: &member, Description: &desc, InstallmentAmount: &amount}); err != nil {
		t.Fatalf("EditRecord: %v", err)
	}

	group, _ := svc.ListGroup(ctx, series.GroupID)
	for _, r := range group {
		if r.SpenderMemberID != "ana" {
			t.Errorf("installment %d member = %q, want ana", r.InstallmentIndex, r.SpenderMemberID)
		}
		if r.Description != "Notebook Dell" {
			t.Errorf("installment %d description = %q", r.InstallmentIndex, r.Description)
		}
		wantAmount := int64(2500)
		if r.ID == target {
			wantAmount = 9999
		}
		if r.InstallmentAmount.Cents != wantAmount {
			t.Errorf("installment %d amount = %d, want %d", r.InstallmentIndex, r.InstallmentAmount.Cents, wantAmount)
		}
	}
}

func TestCreateRecordJoinsExistingGroup(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(newFlakyStore())
	series, err := svc.CreateInstallmentSeries(ctx, cardSeed(1, 4, core.NewDate(2025, 1, 20)), SeriesOptions{UsePurchaseDateLogic: true})
	if err != nil {
		t.Fatalf("CreateInstallmentSeries: %v", err)
	}

	sibling := func(mutate func(*core.LedgerRecord)) core.LedgerRecord {
		r := cardSeed(2, 4, core.NewDate(2025, 2, 20))
		r.InstallmentGroupID = series.GroupID
		if mutate != nil {
			mutate(&r)
		}
		return r
	}

	rejected := []struct {
		name      string
		record    core.LedgerRecord
		wantField string
	}{
		{"different count", sibling(func(r *core.LedgerRecord) { r.InstallmentIndex, r.InstallmentCount = 7, 9 }), "installment_count"},
		{"different description", sibling(func(r *core.LedgerRecord) { r.Description = "Something else" }), "description"},
		{"different payment method", sibling(func(r *core.LedgerRecord) {
			r.PaymentMethod, r.CardID = core.CashOrTransfer, ""
		}), "payment_method"},
		{"repeated index", sibling(func(r *core.LedgerRecord) { r.InstallmentIndex = 1 }), "installment_index"},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRecord(ctx, tt.record)
			var verr *core.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.wantField {
				t.Fatalf("CreateRecord error = %v, want validation on %s", err, tt.wantField)
			}
		})
	}

	joined, err := svc.CreateRecord(ctx, sibling(func(r *core.LedgerRecord) { r.Description = "notebook 02/04" }))
	if err != nil {
		t.Fatalf("CreateRecord matching sibling: %v", err)
	}
	if joined.InstallmentGroupID != series.GroupID {
		t.Errorf("group = %s, want %s", joined.InstallmentGroupID, series.GroupID)
	}

	deleted, err := svc.DeleteRecord(ctx, joined.ID, true)
	if err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if deleted != 2 {
		t.Errorf("cascade deleted %d, want 2", deleted)
	}
}

func TestCreateRecordAssignsItsOwnID(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(newFlakyStore())
	r := cashRecord("Padaria", core.NewDate(2025, 3, 2))
	r.ID = "chosen-by-client"

	got, err := svc.CreateRecord(ctx, r)
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if got.ID == "" || got.ID == "chosen-by-client" {
		t.Fatalf("ID = %q, want a generated id", got.ID)
	}
	if _, err := svc.Get(ctx, "chosen-by-client"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get(client id) error = %v, want ErrNotFound", err)
	}
}

func TestEditRecordKeepsRecurringInstanceInItsMonth(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	m, svc := newTestMaterializer(store)
	june := core.NewPeriod(2025, time.June)

	res, err := m.Materialize(ctx, []core.RecurringTemplate{rentTemplate()}, june)
	if err != nil || len(res.Created) != 1 {
		t.Fatalf("Materialize: %+v %v", res, err)
	}
	id := res.Created[0].ID

	july := core.NewDate(2025, 7, 5)
	_, err = svc.EditRecord(ctx, id, storage.Patch{Date: &july})
	var verr *core.ValidationError
	if !errors.As(err, &verr) || verr.Field != "date" {
		t.Fatalf("EditRecord across months error = %v, want validation on date", err)
	}

	later := core.NewDate(2025, 6, 28)
	if _, err := svc.EditRecord(ctx, id, storage.Patch{Date: &later}); err != nil {
		t.Fatalf("EditRecord within the month: %v", err)
	}

	res, err = m.Materialize(ctx, []core.RecurringTemplate{rentTemplate()}, june)
	if err != nil {
		t.Fatalf("Materialize again: %v", err)
	}
	if len(res.Created) != 0 || res.Existed != 1 {
		t.Errorf("second run created %d existed %d, want 0 and 1", len(res.Created), res.Existed)
	}
}

func TestEditRecordNotFound(t *testing.T) {
	svc, _ := newTestLedger(newFlakyStore())
	desc := "x"
	if _, err := svc.EditRecord(context.Background(), "missing", storage.Patch{Description: &desc}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRecord(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		cascade   bool
		wantN     int
		wantLeft  int
		wantEvent int
	}{
		{"single installment", false, 1, 2, 1},
		{"whole group", true, 3, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, pub := newTestLedger(newFlakyStore())
			series, err := svc.CreateInstallmentSeries(ctx, cardSeed(2, 3, core.NewDate(2025, 6, 1)), fullSeries())
			if err != nil {
				t.Fatalf("CreateInstallmentSeries: %v", err)
			}

			n, err := svc.DeleteRecord(ctx, series.Records[1].ID, tt.cascade)
			if err != nil {
				t.Fatalf("DeleteRecord: %v", err)
			}
			if n != tt.wantN {
				t.Errorf("deleted %d, want %d", n, tt.wantN)
			}
			left, _ := svc.ListGroup(ctx, series.GroupID)
			if len(left) != tt.wantLeft {
				t.Errorf("%d siblings left, want %d", len(left), tt.wantLeft)
			}
			if pub.count("record.deleted") != tt.wantEvent {
				t.Errorf("deleted events = %d, want %d", pub.count("record.deleted"), tt.wantEvent)
			}
		})
	}
}

func TestDeleteRecordCascadeOnPlainRecord(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(newFlakyStore())
	r, _ := svc.CreateRecord(ctx, cashRecord("Pão", core.NewDate(2025, 6, 1)))
	n, err := svc.DeleteRecord(ctx, r.ID, true)
	if err != nil || n != 1 {
		t.Fatalf("DeleteRecord = %d, %v", n, err)
	}
}

func TestListInvoiceAndMonth(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(newFlakyStore())

	if _, err := svc.CreateInstallmentSeries(ctx, cardSeed(1, 3, core.NewDate(2025, 1, 20)), fullSeries()); err != nil {
		t.Fatalf("CreateInstallmentSeries: %v", err)
	}
	if _, err := svc.CreateRecord(ctx, cashRecord("Mercado", core.NewDate(2025, 2, 3))); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	invoice, err := svc.ListInvoice(ctx, "nubank", core.NewPeriod(2025, time.February))
	if err != nil {
		t.Fatalf("ListInvoice: %v", err)
	}
	if len(invoice) != 1 || invoice[0].InstallmentIndex != 1 {
		t.Errorf("February invoice = %+v, want installment 1", invoice)
	}

	month, err := svc.ListMonth(ctx, core.NewPeriod(2025, time.February))
	if err != nil {
		t.Fatalf("ListMonth: %v", err)
	}
	if len(month) != 2 {
		t.Errorf("February month has %d records, want 2 (installment 2 and cash)", len(month))
	}
}

func TestHistoryCollapsesGroups(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestLedger(newFlakyStore())

	series, err := svc.CreateInstallmentSeries(ctx, cardSeed(1, 6, core.NewDate(2025, 1, 20)), fullSeries())
	if err != nil {
		t.Fatalf("CreateInstallmentSeries: %v", err)
	}
	if _, err := svc.CreateRecord(ctx, cashRecord("Mercado", core.NewDate(2025, 3, 3))); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	entries, err := svc.History(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d history entries, want 2", len(entries))
	}
	first := entries[0]
	if first.Record.ID != series.Records[0].ID || first.GroupSize != 6 {
		t.Errorf("representative = index %d size %d, want index 1 size 6", first.Record.InstallmentIndex, first.GroupSize)
	}
	if entries[1].GroupSize != 1 {
		t.Errorf("plain record group size = %d", entries[1].GroupSize)
	}
}
