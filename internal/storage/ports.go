package storage

import (
	"context"
	"slices"

	"financas/internal/core"
)

// Ports for the record store collaborator. Implementations assign ids on
// create, return errors matching core.ErrNotFound for missing ids and wrap I/O
// failures in *core.StoreError.
type (
	RecordStore interface {
		Create(ctx context.Context, r core.LedgerRecord) (id string, err error)
		Get(ctx context.Context, id string) (core.LedgerRecord, error)
		// List returns matching records ordered by date, then installment index.
		List(ctx context.Context, f Filter) ([]core.LedgerRecord, error)
		Update(ctx context.Context, id string, p Patch) error
		Delete(ctx context.Context, id string) error
		// DeleteMany removes every existing id and reports how many were removed.
		DeleteMany(ctx context.Context, ids []string) (int, error)
	}

	TemplateStore interface {
		CreateTemplate(ctx context.Context, t core.RecurringTemplate) (id string, err error)
		GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error)
		ListTemplates(ctx context.Context, activeOnly bool) ([]core.RecurringTemplate, error)
		DeleteTemplate(ctx context.Context, id string) error
	}

	// Store is the full persistence surface used by the binaries.
	Store interface {
		RecordStore
		TemplateStore
		Close() error
	}
)

// Filter selects records. Zero-valued fields do not constrain the result.
type Filter struct {
	IDs                 []string
	InstallmentGroupID  string
	RecurringTemplateID string
	CardID              string
	InvoicePeriod       core.Period
	Month               core.Period // calendar month of the record date
	Status              core.Status
	SpenderMemberID     string
	Kind                core.Kind
}

// Match reports whether r satisfies every set field of the filter.
func (f Filter) Match(r core.LedgerRecord) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, r.ID) {
		return false
	}
	if f.InstallmentGroupID != "" && r.InstallmentGroupID != f.InstallmentGroupID {
		return false
	}
	if f.RecurringTemplateID != "" && r.RecurringTemplateID != f.RecurringTemplateID {
		return false
	}
	if f.CardID != "" && r.CardID != f.CardID {
		return false
	}
	if !f.InvoicePeriod.IsZero() && r.InvoicePeriod != f.InvoicePeriod {
		return false
	}
	if !f.Month.IsZero() && r.Date.Period() != f.Month {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.SpenderMemberID != "" && r.SpenderMemberID != f.SpenderMemberID {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	return true
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Description       *string
	Amount            *core.Money
	InstallmentAmount *core.Money
	Category          *string
	Date              *core.Date
	InvoicePeriod     *core.Period
	SpenderMemberID   *string
	Status            *core.Status
}

func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Apply copies the set fields onto r.
func (p Patch) Apply(r *core.LedgerRecord) {
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.InstallmentAmount != nil {
		r.InstallmentAmount = *p.InstallmentAmount
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Date != nil {
		r.Date = *p.Date
	}
	if p.InvoicePeriod != nil {
		r.InvoicePeriod = *p.InvoicePeriod
	}
	if p.SpenderMemberID != nil {
		r.SpenderMemberID = *p.SpenderMemberID
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
}

// SortRecords orders records by date, then installment index, then id.
func SortRecords(records []core.LedgerRecord) {
	slices.SortStableFunc(records, func(a, b core.LedgerRecord) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		if a.InstallmentIndex != b.InstallmentIndex {
			return a.InstallmentIndex - b.InstallmentIndex
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
