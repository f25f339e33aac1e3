package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/metrics"
	"financas/internal/storage"
)

// RecurringMaterializer creates the PENDING instance of each recurring
// template for a reference period. Running it again for the same period
// creates nothing: a template that already has a record dated in the period
// is skipped.
type RecurringMaterializer struct {
	ledger    *LedgerService
	templates storage.TemplateStore
	logger    *log.Logger
}

func NewRecurringMaterializer(ledger *LedgerService, templates storage.TemplateStore) *RecurringMaterializer {
	return &RecurringMaterializer{
		ledger:    ledger,
		templates: templates,
		logger:    ledger.logger.WithComponent(log.ComponentRecurring),
	}
}

// MaterializeResult reports one materializer run.
type MaterializeResult struct {
	Period  core.Period
	Created []core.LedgerRecord
	Existed int
	NotDue  int
}

// MaterializeDue materializes the period containing now for every active
// stored template.
func (p *RecurringMaterializer) MaterializeDue(ctx context.Context, now time.Time) (MaterializeResult, error) {
	if p.templates == nil {
		return MaterializeResult{}, errors.New("materializer has no template store")
	}
	templates, err := p.templates.ListTemplates(ctx, true)
	if err != nil {
		return MaterializeResult{}, fmt.Errorf("list recurring templates: %w", err)
	}
	return p.Materialize(ctx, templates, core.PeriodOf(now))
}

// Materialize ensures one instance per due template in period. A failure on
// one template is logged and collected; the remaining templates are still
// processed and the failures come back as a *core.PartialBatchFailure.
func (p *RecurringMaterializer) Materialize(ctx context.Context, templates []core.RecurringTemplate, period core.Period) (MaterializeResult, error) {
	res := MaterializeResult{Period: period}
	var failed []core.ItemFailure

	p.logger.InfoContext(ctx, "Materializing recurring templates",
		"total", len(templates),
		log.FieldPeriod, period.String())

	for _, t := range templates {
		if !t.Active {
			res.NotDue++
			continue
		}
		checker, err := GetDuenessChecker(t.Every)
		if err != nil {
			p.fail(ctx, &failed, t, err)
			continue
		}
		if !checker.IsDue(t, period) {
			res.NotDue++
			continue
		}

		existing, err := p.ledger.store.List(ctx, storage.Filter{RecurringTemplateID: t.ID, Month: period})
		if err != nil {
			p.fail(ctx, &failed, t, fmt.Errorf("check existing instance: %w", err))
			continue
		}
		if len(existing) > 0 {
			res.Existed++
			continue
		}

		rec, err := p.ledger.create(ctx, instanceOf(t, period), metrics.SourceRecurring)
		if errors.Is(err, core.ErrConflict) {
			// Another run created it between the check and the write.
			res.Existed++
			continue
		}
		if err != nil {
			p.fail(ctx, &failed, t, err)
			continue
		}

		res.Created = append(res.Created, rec)
		metrics.RecurringMaterialized.Inc()
		p.logger.InfoContext(ctx, "Created instance from recurring template",
			log.FieldTemplateID, t.ID,
			log.FieldRecordID, rec.ID,
			log.FieldAmountCents, t.Amount.Cents,
			"date", rec.Date.String(),
			"frequency", t.Every)
	}

	p.logger.InfoContext(ctx, "Recurring materialization complete",
		log.FieldPeriod, period.String(),
		"created", len(res.Created),
		"existed", res.Existed,
		"failed", len(failed))

	if len(failed) > 0 {
		ids := make([]string, len(res.Created))
		for i, r := range res.Created {
			ids[i] = r.ID
		}
		return res, &core.PartialBatchFailure{Op: log.OpMaterialize, Succeeded: ids, Failed: failed}
	}
	return res, nil
}

func (p *RecurringMaterializer) fail(ctx context.Context, failed *[]core.ItemFailure, t core.RecurringTemplate, err error) {
	metrics.RecurringFailures.Inc()
	p.logger.ErrorContext(ctx, "Failed to materialize recurring template",
		log.FieldTemplateID, t.ID,
		"description", t.Description,
		log.FieldError, err)
	*failed = append(*failed, core.ItemFailure{ID: t.ID, Err: err})
}

func instanceOf(t core.RecurringTemplate, period core.Period) core.LedgerRecord {
	return core.LedgerRecord{
		Description:         t.Description,
		Amount:              t.Amount,
		Category:            t.Category,
		Kind:                t.Kind,
		Date:                period.DateOn(t.DayOfMonth),
		PaymentMethod:       t.PaymentMethod,
		CardID:              t.CardID,
		SpenderMemberID:     t.SpenderMemberID,
		Status:              core.Pending,
		IsRecurring:         true,
		RecurringTemplateID: t.ID,
	}
}

// Run materializes the current period every interval until ctx is done.
func (p *RecurringMaterializer) Run(ctx context.Context, interval time.Duration, clock core.Clock) error {
	if clock == nil {
		clock = core.SystemClock{}
	}
	tick := func() {
		if _, err := p.MaterializeDue(ctx, clock.Now()); err != nil {
			p.logger.ErrorContext(ctx, "Recurring materialization failed", log.FieldError, err)
		}
	}

	tick()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Recurring materializer stopped")
			return nil
		case <-ticker.C:
			tick()
		}
	}
}
