package services

import (
	"context"
	"fmt"

	"financas/internal/amqp"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/metrics"
	"financas/internal/storage"
)

// View is the screen a bulk selection was made on.
type View int

const (
	// ViewPeriod lists every record of a period; ids are taken literally.
	ViewPeriod View = iota
	// ViewHistory shows each installment group once, so a selected
	// representative stands for all of its siblings.
	ViewHistory
)

// BulkDeleteResult reports what a bulk delete touched.
type BulkDeleteResult struct {
	Requested int
	Targeted  []string
	Deleted   []string
	// CascadeWarning is set when sibling expansion targeted more records than
	// were selected.
	CascadeWarning bool
}

// BulkDelete removes the selected ids one by one. From the history view each
// installment representative is expanded to every sibling in its group across
// all periods. Failures are collected and returned as a
// *core.PartialBatchFailure; deleted ids are not restored.
func (s *LedgerService) BulkDelete(ctx context.Context, ids []string, view View) (BulkDeleteResult, error) {
	res := BulkDeleteResult{Requested: len(ids)}
	var failed []core.ItemFailure

	targets := dedupe(ids)
	if view == ViewHistory {
		targets, failed = s.expandGroups(ctx, targets)
	}
	res.Targeted = targets
	res.CascadeWarning = len(targets) > res.Requested

	for _, id := range targets {
		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.ErrorContext(ctx, "Bulk delete item failed", log.FieldRecordID, id, log.FieldError, err)
			failed = append(failed, core.ItemFailure{ID: id, Err: err})
			continue
		}
		res.Deleted = append(res.Deleted, id)
		metrics.RecordsDeleted.Inc()
		s.publish(ctx, amqp.EventRecordDeleted, id, "")
	}

	s.logger.InfoContext(ctx, "Bulk delete complete",
		log.FieldOperation, log.OpBulkDelete,
		"requested", res.Requested,
		"targeted", len(res.Targeted),
		"deleted", len(res.Deleted),
		"failed", len(failed))
	return res, s.batchError(log.OpBulkDelete, res.Deleted, failed)
}

// expandGroups replaces installment ids with the ids of their whole group,
// keeping first-seen order and dropping repeats.
func (s *LedgerService) expandGroups(ctx context.Context, ids []string) ([]string, []core.ItemFailure) {
	var out []string
	var failed []core.ItemFailure
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	for _, id := range ids {
		rec, err := s.store.Get(ctx, id)
		if err != nil {
			failed = append(failed, core.ItemFailure{ID: id, Err: err})
			continue
		}
		if !rec.IsInstallment {
			add(id)
			continue
		}
		siblings, err := s.store.List(ctx, storage.Filter{InstallmentGroupID: rec.InstallmentGroupID})
		if err != nil {
			failed = append(failed, core.ItemFailure{ID: id, Err: fmt.Errorf("list group %s: %w", rec.InstallmentGroupID, err)})
			continue
		}
		add(id)
		for _, sib := range siblings {
			add(sib.ID)
		}
	}
	return out, failed
}

// BulkResult lists the ids a bulk update succeeded on.
type BulkResult struct {
	Succeeded []string
}

// BulkReassignMember sets the spender on exactly the selected ids. Unlike
// AssignMember it never fans out to installment siblings.
func (s *LedgerService) BulkReassignMember(ctx context.Context, ids []string, memberID string) (BulkResult, error) {
	var res BulkResult
	var failed []core.ItemFailure
	patch := storage.Patch{SpenderMemberID: &memberID}

	for _, id := range dedupe(ids) {
		if err := s.store.Update(ctx, id, patch); err != nil {
			s.logger.ErrorContext(ctx, "Bulk reassign item failed", log.FieldRecordID, id, log.FieldError, err)
			failed = append(failed, core.ItemFailure{ID: id, Err: err})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
		s.publish(ctx, amqp.EventRecordUpdated, id, "")
	}

	s.logger.InfoContext(ctx, "Bulk reassign complete",
		log.FieldOperation, log.OpBulkReassign,
		log.FieldMemberID, memberID,
		"updated", len(res.Succeeded),
		"failed", len(failed))
	return res, s.batchError(log.OpBulkReassign, res.Succeeded, failed)
}

// AssignMember sets the spender on one record and, for an installment, on
// every sibling of its group. It stops at the first failed update and returns
// the ids updated so far.
func (s *LedgerService) AssignMember(ctx context.Context, recordID, memberID string) ([]string, error) {
	rec, err := s.store.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}

	targets := []string{recordID}
	if rec.IsInstallment {
		ids, err := s.groupIDs(ctx, rec.InstallmentGroupID)
		if err != nil {
			return nil, err
		}
		targets = ids
	}

	patch := storage.Patch{SpenderMemberID: &memberID}
	var updated []string
	for _, id := range targets {
		if err := s.store.Update(ctx, id, patch); err != nil {
			return updated, fmt.Errorf("assign member to %s: %w", id, err)
		}
		updated = append(updated, id)
		s.publish(ctx, amqp.EventRecordUpdated, id, rec.InstallmentGroupID)
	}

	s.logger.InfoContext(ctx, "Member assigned",
		log.FieldOperation, log.OpAssignMember,
		log.FieldRecordID, recordID,
		log.FieldMemberID, memberID,
		log.FieldCount, len(updated))
	return updated, nil
}

func (s *LedgerService) batchError(op string, succeeded []string, failed []core.ItemFailure) error {
	if len(failed) == 0 {
		return nil
	}
	metrics.BulkFailures.WithLabelValues(op).Add(float64(len(failed)))
	return &core.PartialBatchFailure{Op: op, Succeeded: succeeded, Failed: failed}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
