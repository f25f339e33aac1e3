package http

import (
	"net/http"
)

// handleBulkDelete answers 207 when some ids failed; the body then lists the
// deleted ids and the per-id failures.
func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var body bulkDeleteRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.Ledger.BulkDelete(r.Context(), body.IDs, body.view())
	status, failed, err := batchOutcome(err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, bulkDeleteResponse{
		Requested:      res.Requested,
		Targeted:       nonNil(res.Targeted),
		Deleted:        nonNil(res.Deleted),
		CascadeWarning: res.CascadeWarning,
		Failed:         failed,
	})
}

func (s *Server) handleBulkReassign(w http.ResponseWriter, r *http.Request) {
	var body bulkMemberRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.Ledger.BulkReassignMember(r.Context(), body.IDs, body.MemberID)
	status, failed, err := batchOutcome(err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, bulkMemberResponse{Succeeded: nonNil(res.Succeeded), Failed: failed})
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
