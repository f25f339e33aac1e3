package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/metrics"
	"financas/internal/storage"
)

// EventPublisher receives a notification after every successful write.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.LedgerEvent) error
}

// LedgerService orchestrates ledger writes: it derives invoice periods from
// the card book, keeps installment groups consistent and publishes events.
// Multi-record operations issue their store calls sequentially.
type LedgerService struct {
	store  storage.RecordStore
	cards  core.CardBook
	events EventPublisher
	logger *log.Logger
}

func NewLedgerService(store storage.RecordStore, cards core.CardBook, events EventPublisher, logger *log.Logger) *LedgerService {
	if c, ok := events.(*amqp.Client); ok && c == nil {
		events = nil
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerService{
		store:  store,
		cards:  cards,
		events: events,
		logger: logger.WithComponent(log.ComponentLedger),
	}
}

// Cards exposes the card book used for invoice assignment.
func (s *LedgerService) Cards() core.CardBook { return s.cards }

// CreateRecord stores one record. Card purchases get their invoice period
// from the card's closing day; any caller-supplied period is replaced. An
// installment naming an existing group must agree with that group's count,
// description and payment method and must not repeat one of its indices.
func (s *LedgerService) CreateRecord(ctx context.Context, r core.LedgerRecord) (core.LedgerRecord, error) {
	if r.IsInstallment && r.InstallmentGroupID != "" {
		if err := s.checkGroupMember(ctx, r); err != nil {
			return core.LedgerRecord{}, err
		}
	}
	return s.create(ctx, r, metrics.SourceManual)
}

func (s *LedgerService) checkGroupMember(ctx context.Context, r core.LedgerRecord) error {
	siblings, err := s.store.List(ctx, storage.Filter{InstallmentGroupID: r.InstallmentGroupID})
	if err != nil {
		return fmt.Errorf("list group %s: %w", r.InstallmentGroupID, err)
	}
	desc := core.StripInstallmentToken(strings.TrimSpace(r.Description))
	for _, sib := range siblings {
		switch {
		case sib.InstallmentCount != r.InstallmentCount:
			return &core.ValidationError{Field: "installment_count",
				Reason: fmt.Sprintf("group has %d installments", sib.InstallmentCount)}
		case !strings.EqualFold(core.StripInstallmentToken(sib.Description), desc):
			return &core.ValidationError{Field: "description",
				Reason: fmt.Sprintf("group is %q", sib.Description)}
		case sib.PaymentMethod != r.PaymentMethod:
			return &core.ValidationError{Field: "payment_method",
				Reason: "group is paid by " + string(sib.PaymentMethod)}
		case sib.InstallmentIndex == r.InstallmentIndex:
			return &core.ValidationError{Field: "installment_index",
				Reason: fmt.Sprintf("installment %d already exists in the group", r.InstallmentIndex),
				Err:    core.ErrConflict}
		}
	}
	return nil
}

func (s *LedgerService) create(ctx context.Context, r core.LedgerRecord, source string) (core.LedgerRecord, error) {
	r.ID = ""
	r.Description = strings.TrimSpace(r.Description)
	r.Category = strings.TrimSpace(r.Category)
	if r.Status == "" {
		r.Status = core.Completed
	}
	s.assignInvoice(&r)
	if r.IsInstallment && r.InstallmentGroupID == "" {
		r.InstallmentGroupID = uuid.NewString()
	}
	if err := r.Validate(); err != nil {
		return core.LedgerRecord{}, err
	}

	id, err := s.store.Create(ctx, r)
	if err != nil {
		return core.LedgerRecord{}, fmt.Errorf("create record: %w", err)
	}
	r.ID = id

	metrics.RecordsCreated.WithLabelValues(source).Inc()
	s.logger.InfoContext(ctx, "Ledger record created",
		log.NewFields().WithRecord(id, r.InstallmentGroupID, r.EffectiveAmount().Cents).ToSlice()...)
	s.publish(ctx, amqp.EventRecordCreated, id, r.InstallmentGroupID)
	return r, nil
}

func (s *LedgerService) assignInvoice(r *core.LedgerRecord) {
	if r.PaymentMethod != core.CreditCard {
		r.InvoicePeriod = core.Period{}
		return
	}
	r.InvoicePeriod = s.cards.InvoicePeriod(r.CardID, r.Date)
}

func (s *LedgerService) Get(ctx context.Context, id string) (core.LedgerRecord, error) {
	return s.store.Get(ctx, id)
}

// EditRecord applies a partial update. A date change on a card purchase
// recomputes its invoice period; a caller-supplied invoice period is ignored.
// Member and description changes on an installment apply to the whole group.
func (s *LedgerService) EditRecord(ctx context.Context, id string, p storage.Patch) (core.LedgerRecord, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return core.LedgerRecord{}, err
	}
	p.InvoicePeriod = nil

	// A recurring instance belongs to the month it was materialized for.
	if current.IsRecurring && p.Date != nil && p.Date.Period() != current.Date.Period() {
		return core.LedgerRecord{}, &core.ValidationError{Field: "date",
			Reason: "recurring instances cannot move to another month"}
	}

	if current.IsInstallment {
		if p.SpenderMemberID != nil {
			if _, err := s.AssignMember(ctx, id, *p.SpenderMemberID); err != nil {
				return core.LedgerRecord{}, err
			}
			p.SpenderMemberID = nil
		}
		if p.Description != nil {
			desc := core.StripInstallmentToken(*p.Description)
			if err := s.updateGroup(ctx, current.InstallmentGroupID, id, storage.Patch{Description: &desc}); err != nil {
				return core.LedgerRecord{}, err
			}
			p.Description = &desc
		}
	}

	if p.Date != nil && current.PaymentMethod == core.CreditCard {
		invoice := s.cards.InvoicePeriod(current.CardID, *p.Date)
		p.InvoicePeriod = &invoice
	}

	if !p.IsEmpty() {
		if err := s.store.Update(ctx, id, p); err != nil {
			return core.LedgerRecord{}, fmt.Errorf("update record %s: %w", id, err)
		}
		s.publish(ctx, amqp.EventRecordUpdated, id, current.InstallmentGroupID)
	}
	return s.store.Get(ctx, id)
}

// updateGroup patches every sibling of groupID except skipID, stopping at the
// first failure.
func (s *LedgerService) updateGroup(ctx context.Context, groupID, skipID string, p storage.Patch) error {
	siblings, err := s.store.List(ctx, storage.Filter{InstallmentGroupID: groupID})
	if err != nil {
		return fmt.Errorf("list group %s: %w", groupID, err)
	}
	for _, sib := range siblings {
		if sib.ID == skipID {
			continue
		}
		if err := s.store.Update(ctx, sib.ID, p); err != nil {
			return fmt.Errorf("update sibling %s: %w", sib.ID, err)
		}
		s.publish(ctx, amqp.EventRecordUpdated, sib.ID, groupID)
	}
	return nil
}

// DeleteRecord removes one record, or with cascade the whole installment
// group it belongs to. It returns the number of records removed.
func (s *LedgerService) DeleteRecord(ctx context.Context, id string, cascade bool) (int, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	if !cascade || !rec.IsInstallment {
		if err := s.store.Delete(ctx, id); err != nil {
			return 0, fmt.Errorf("delete record %s: %w", id, err)
		}
		metrics.RecordsDeleted.Inc()
		s.publish(ctx, amqp.EventRecordDeleted, id, rec.InstallmentGroupID)
		return 1, nil
	}

	ids, err := s.groupIDs(ctx, rec.InstallmentGroupID)
	if err != nil {
		return 0, err
	}
	n, err := s.store.DeleteMany(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete group %s: %w", rec.InstallmentGroupID, err)
	}
	metrics.RecordsDeleted.Add(float64(n))
	for _, sid := range ids {
		s.publish(ctx, amqp.EventRecordDeleted, sid, rec.InstallmentGroupID)
	}
	s.logger.InfoContext(ctx, "Installment group deleted",
		log.FieldGroupID, rec.InstallmentGroupID,
		log.FieldCount, n)
	return n, nil
}

func (s *LedgerService) groupIDs(ctx context.Context, groupID string) ([]string, error) {
	siblings, err := s.store.List(ctx, storage.Filter{InstallmentGroupID: groupID})
	if err != nil {
		return nil, fmt.Errorf("list group %s: %w", groupID, err)
	}
	ids := make([]string, len(siblings))
	for i, sib := range siblings {
		ids[i] = sib.ID
	}
	return ids, nil
}

// ListInvoice returns the charges billed on cardID's invoice for period.
func (s *LedgerService) ListInvoice(ctx context.Context, cardID string, period core.Period) ([]core.LedgerRecord, error) {
	return s.store.List(ctx, storage.Filter{CardID: cardID, InvoicePeriod: period})
}

// ListMonth returns the records dated within period.
func (s *LedgerService) ListMonth(ctx context.Context, period core.Period) ([]core.LedgerRecord, error) {
	return s.store.List(ctx, storage.Filter{Month: period})
}

func (s *LedgerService) ListGroup(ctx context.Context, groupID string) ([]core.LedgerRecord, error) {
	return s.store.List(ctx, storage.Filter{InstallmentGroupID: groupID})
}

// HistoryEntry is one row of the consolidated history view.
type HistoryEntry struct {
	Record    core.LedgerRecord
	GroupSize int
}

// History lists matching records with each installment group collapsed into
// its lowest-index member.
func (s *LedgerService) History(ctx context.Context, f storage.Filter) ([]HistoryEntry, error) {
	records, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}

	var out []HistoryEntry
	groups := make(map[string]int)
	for _, r := range records {
		if !r.IsInstallment {
			out = append(out, HistoryEntry{Record: r, GroupSize: 1})
			continue
		}
		if i, ok := groups[r.InstallmentGroupID]; ok {
			out[i].GroupSize++
			if r.InstallmentIndex < out[i].Record.InstallmentIndex {
				out[i].Record = r
			}
			continue
		}
		groups[r.InstallmentGroupID] = len(out)
		out = append(out, HistoryEntry{Record: r, GroupSize: 1})
	}
	slices.SortStableFunc(out, func(a, b HistoryEntry) int {
		return a.Record.Date.Compare(b.Record.Date.Time)
	})
	return out, nil
}

func (s *LedgerService) publish(ctx context.Context, typ amqp.EventType, id, groupID string) {
	if s.events == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping ledger event", "type", typ, log.FieldRecordID, id)
		return
	}
	if err := s.events.Publish(ctx, amqp.NewLedgerEvent(typ, id, groupID)); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			"type", typ,
			log.FieldRecordID, id,
			log.FieldError, err)
		return
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
}
