package services

import (
	"context"
	"fmt"

	"financas/internal/importer"
	"financas/internal/log"
	"financas/internal/metrics"
)

// CommitResult reports the records written from a reviewed statement.
type CommitResult struct {
	Created   []string
	Unchecked int
}

// CommitDrafts writes the selected drafts in order. Installment drafts seed a
// series expanded with opts. The first failure aborts the commit; the result
// still lists the ids created before it.
func (s *LedgerService) CommitDrafts(ctx context.Context, drafts []importer.Draft, opts SeriesOptions) (CommitResult, error) {
	var res CommitResult

	for _, d := range drafts {
		if !d.Selected {
			res.Unchecked++
			continue
		}

		if d.Record.IsInstallment && d.Record.InstallmentCount > 1 {
			series, err := s.CreateInstallmentSeries(ctx, d.Record, opts)
			res.Created = append(res.Created, series.IDs()...)
			if err != nil {
				return res, fmt.Errorf("commit line %d: %w", d.Line, err)
			}
			continue
		}

		rec, err := s.create(ctx, d.Record, metrics.SourceImport)
		if err != nil {
			return res, fmt.Errorf("commit line %d: %w", d.Line, err)
		}
		res.Created = append(res.Created, rec.ID)
	}

	s.logger.InfoContext(ctx, "Statement drafts committed",
		log.FieldOperation, log.OpCommit,
		"created", len(res.Created),
		"unchecked", res.Unchecked)
	return res, nil
}
