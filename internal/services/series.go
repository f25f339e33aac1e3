package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/metrics"
)

// SeriesOptions selects which siblings of a seed installment are generated.
type SeriesOptions struct {
	GenerateFuture bool
	GeneratePast   bool
	// UsePurchaseDateLogic treats the seed date as the real purchase date, so
	// each sibling's invoice comes from the card's closing day. When false the
	// seed date already sits in its invoice month and siblings are billed in
	// the calendar month of their own date.
	UsePurchaseDateLogic bool
}

// ExpandSeries builds the records of an installment group from its seed,
// ordered by index. The seed index is always included. Siblings are dated one
// calendar month apart from the seed, clamping the day to the month length.
// Per-installment amounts come from the seed's InstallmentAmount or, when it
// is unset, from splitting Amount evenly.
func ExpandSeries(seed core.LedgerRecord, cards core.CardBook, opts SeriesOptions) ([]core.LedgerRecord, error) {
	n, i0 := seed.InstallmentCount, seed.InstallmentIndex
	if n < 1 {
		return nil, &core.ValidationError{Field: "installment_count", Reason: "must be at least 1"}
	}
	if i0 < 1 || i0 > n {
		return nil, &core.ValidationError{Field: "installment_index", Reason: fmt.Sprintf("must be within 1..%d", n)}
	}
	if err := seed.Amount.Validate(); err != nil {
		return nil, err
	}

	groupID := seed.InstallmentGroupID
	if groupID == "" {
		groupID = uuid.NewString()
	}
	parts := seed.Amount.Split(n)
	desc := core.StripInstallmentToken(seed.Description)
	if desc == "" {
		desc = seed.Description
	}

	first, last := i0, i0
	if opts.GeneratePast {
		first = 1
	}
	if opts.GenerateFuture {
		last = n
	}

	out := make([]core.LedgerRecord, 0, last-first+1)
	for k := first; k <= last; k++ {
		r := seed
		r.ID = ""
		r.Description = desc
		r.IsInstallment = true
		r.InstallmentGroupID = groupID
		r.InstallmentIndex = k
		r.InstallmentCount = n
		r.Date = seed.Date.AddMonths(k - i0)
		if r.Status == "" {
			r.Status = core.Completed
		}
		if seed.InstallmentAmount.Cents > 0 {
			r.InstallmentAmount = seed.InstallmentAmount
		} else {
			r.InstallmentAmount = parts[k-1]
		}

		r.InvoicePeriod = core.Period{}
		if r.PaymentMethod == core.CreditCard {
			if opts.UsePurchaseDateLogic {
				r.InvoicePeriod = cards.InvoicePeriod(r.CardID, r.Date)
			} else {
				r.InvoicePeriod = r.Date.Period()
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// SeriesResult lists the records written for one installment group.
type SeriesResult struct {
	GroupID string
	Records []core.LedgerRecord
}

func (r SeriesResult) IDs() []string {
	ids := make([]string, len(r.Records))
	for i, rec := range r.Records {
		ids[i] = rec.ID
	}
	return ids
}

// CreateInstallmentSeries expands the seed and stores each sibling in index
// order. The first failed write stops the series; the returned
// *core.PartialBatchFailure names the records already stored.
func (s *LedgerService) CreateInstallmentSeries(ctx context.Context, seed core.LedgerRecord, opts SeriesOptions) (SeriesResult, error) {
	records, err := ExpandSeries(seed, s.cards, opts)
	if err != nil {
		return SeriesResult{}, err
	}
	res := SeriesResult{GroupID: records[0].InstallmentGroupID}

	for _, r := range records {
		if err := r.Validate(); err != nil {
			return res, s.seriesFailure(ctx, res, r, err)
		}
		id, err := s.store.Create(ctx, r)
		if err != nil {
			return res, s.seriesFailure(ctx, res, r, err)
		}
		r.ID = id
		res.Records = append(res.Records, r)
		metrics.RecordsCreated.WithLabelValues(metrics.SourceInstallment).Inc()
		s.publish(ctx, amqp.EventRecordCreated, id, res.GroupID)
	}

	s.logger.InfoContext(ctx, "Installment series created",
		log.FieldGroupID, res.GroupID,
		log.FieldCount, len(res.Records),
		"installment_count", seed.InstallmentCount)
	return res, nil
}

func (s *LedgerService) seriesFailure(ctx context.Context, res SeriesResult, r core.LedgerRecord, err error) error {
	s.logger.ErrorContext(ctx, "Installment series aborted",
		log.FieldGroupID, res.GroupID,
		"installment_index", r.InstallmentIndex,
		log.FieldError, err)
	return &core.PartialBatchFailure{
		Op:        "create series",
		Succeeded: res.IDs(),
		Failed: []core.ItemFailure{{
			ID:  fmt.Sprintf("%s#%d", res.GroupID, r.InstallmentIndex),
			Err: err,
		}},
	}
}

// SeriesPreview is the on-screen projection of an installment's next charge.
type SeriesPreview struct {
	Closed     bool
	NextIndex  int
	NextPeriod core.Period
	Remaining  int
}

// PreviewSeries projects the next installment after the seed. With purchase
// date logic the projection advances from the invoice month being viewed, so
// that every purchase billed in month M shows M+1 as its next installment.
// Otherwise it advances from the seed date's month.
func PreviewSeries(seed core.LedgerRecord, viewed core.Period, usePurchaseDateLogic bool) SeriesPreview {
	if seed.InstallmentIndex >= seed.InstallmentCount {
		return SeriesPreview{Closed: true}
	}

	base := seed.Date.Period()
	if usePurchaseDateLogic {
		switch {
		case !viewed.IsZero():
			base = viewed
		case !seed.InvoicePeriod.IsZero():
			base = seed.InvoicePeriod
		}
	}
	return SeriesPreview{
		NextIndex:  seed.InstallmentIndex + 1,
		NextPeriod: base.Next(),
		Remaining:  seed.InstallmentCount - seed.InstallmentIndex,
	}
}
