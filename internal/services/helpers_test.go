package services

import (
	"context"
	"errors"
	"sync"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/storage"
	"financas/internal/storage/memory"
)

var errDiskFull = errors.New("disk full")

// flakyStore fails selected operations on top of the memory store.
type flakyStore struct {
	*memory.Store
	failIDs         map[string]bool
	failDescription string
	failTemplateID  string
	hideTemplates   bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: memory.New(), failIDs: make(map[string]bool)}
}

func (f *flakyStore) Create(ctx context.Context, r core.LedgerRecord) (string, error) {
	if f.failDescription != "" && r.Description == f.failDescription {
		return "", &core.StoreError{Op: "create", Err: errDiskFull}
	}
	if f.failTemplateID != "" && r.RecurringTemplateID == f.failTemplateID {
		return "", &core.StoreError{Op: "create", Err: errDiskFull}
	}
	return f.Store.Create(ctx, r)
}

func (f *flakyStore) List(ctx context.Context, filter storage.Filter) ([]core.LedgerRecord, error) {
	if f.hideTemplates && filter.RecurringTemplateID != "" {
		return nil, nil
	}
	return f.Store.List(ctx, filter)
}

func (f *flakyStore) Update(ctx context.Context, id string, p storage.Patch) error {
	if f.failIDs[id] {
		return &core.StoreError{Op: "update", Err: errDiskFull}
	}
	return f.Store.Update(ctx, id, p)
}

func (f *flakyStore) Delete(ctx context.Context, id string) error {
	if f.failIDs[id] {
		return &core.StoreError{Op: "delete", Err: errDiskFull}
	}
	return f.Store.Delete(ctx, id)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) count(typ amqp.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func testCards() core.CardBook {
	return core.NewCardBook(1, core.Card{ID: "nubank", Name: "Nubank", ClosingDay: 15})
}

func newTestLedger(store storage.RecordStore) (*LedgerService, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewLedgerService(store, testCards(), pub, log.Discard()), pub
}

func cardSeed(index, count int, date core.Date) core.LedgerRecord {
	return core.LedgerRecord{
		Description:      "Notebook",
		Amount:           core.Money{Cents: 10000},
		Category:         "Eletrônicos",
		Kind:             core.VariableExpense,
		Date:             date,
		PaymentMethod:    core.CreditCard,
		CardID:           "nubank",
		Status:           core.Completed,
		IsInstallment:    true,
		InstallmentIndex: index,
		InstallmentCount: count,
	}
}

func cashRecord(desc string, date core.Date) core.LedgerRecord {
	return core.LedgerRecord{
		Description:   desc,
		Amount:        core.Money{Cents: 2500},
		Category:      "Mercado",
		Kind:          core.VariableExpense,
		Date:          date,
		PaymentMethod: core.CashOrTransfer,
		Status:        core.Completed,
	}
}

func fullSeries() SeriesOptions {
	return SeriesOptions{GenerateFuture: true, GeneratePast: true, UsePurchaseDateLogic: true}
}
