package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"financas/internal/core"
	"financas/internal/services"
	"financas/internal/storage"
)

func (s *Server) handleListCards(w http.ResponseWriter, _ *http.Request) {
	cards := s.deps.Ledger.Cards().Cards()
	out := make([]cardJSON, len(cards))
	for i, c := range cards {
		out[i] = cardJSON{ID: c.ID, Name: c.Name, ClosingDay: c.ClosingDay, Overrides: c.Overrides}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var body recordJSON
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := body.record()
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.deps.Ledger.CreateRecord(r.Context(), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordJSON(created))
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordJSON(rec))
}

func (s *Server) handleEditRecord(w http.ResponseWriter, r *http.Request) {
	var body patchJSON
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := body.patch()
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.deps.Ledger.EditRecord(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordJSON(rec))
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Ledger.DeleteRecord(r.Context(), chi.URLParam(r, "id"), queryBool(r, "cascade"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *Server) handleAssignMember(w http.ResponseWriter, r *http.Request) {
	var body memberRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.deps.Ledger.AssignMember(r.Context(), chi.URLParam(r, "id"), body.MemberID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"updated": updated})
}

// handlePreviewSeries projects the next installment. The optional "viewed"
// query parameter is the invoice month currently on screen.
func (s *Server) handlePreviewSeries(w http.ResponseWriter, r *http.Request) {
	viewed, err := parsePeriodOr(r.URL.Query().Get("viewed"), core.Period{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	seed, err := s.deps.Ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	purchase := s.deps.Series.UsePurchaseDateLogic
	if r.URL.Query().Has("purchase_date_logic") {
		purchase = queryBool(r, "purchase_date_logic")
	}

	p := services.PreviewSeries(seed, viewed, purchase)
	writeJSON(w, http.StatusOK, previewResponse{
		Closed:     p.Closed,
		NextIndex:  p.NextIndex,
		NextPeriod: p.NextPeriod.String(),
		Remaining:  p.Remaining,
	})
}

func (s *Server) handleCreateSeries(w http.ResponseWriter, r *http.Request) {
	var body seriesRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	seed, err := body.Seed.record()
	if err != nil {
		writeError(w, r, err)
		return
	}
	seed.IsInstallment = true
	if seed.Status == "" {
		seed.Status = core.Completed
	}

	res, err := s.deps.Ledger.CreateInstallmentSeries(r.Context(), seed, body.apply(s.deps.Series))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, seriesResponse{GroupID: res.GroupID, Records: toRecordsJSON(res.Records)})
}

func (s *Server) handleListGroup(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Ledger.ListGroup(r.Context(), chi.URLParam(r, "group"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(records) == 0 {
		writeError(w, r, core.NotFound("installment group", chi.URLParam(r, "group")))
		return
	}
	writeJSON(w, http.StatusOK, toRecordsJSON(records))
}

func (s *Server) handleListInvoice(w http.ResponseWriter, r *http.Request) {
	period, err := core.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, err := s.deps.Ledger.ListInvoice(r.Context(), chi.URLParam(r, "card"), period)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var total int64
	for _, rec := range records {
		total += rec.EffectiveAmount().Cents
	}
	writeJSON(w, http.StatusOK, struct {
		Card       string       `json:"card_id"`
		Period     string       `json:"period"`
		TotalCents int64        `json:"total_cents"`
		Records    []recordJSON `json:"records"`
	}{chi.URLParam(r, "card"), period.String(), total, toRecordsJSON(records)})
}

func (s *Server) handleListMonth(w http.ResponseWriter, r *http.Request) {
	period, err := core.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, err := s.deps.Ledger.ListMonth(r.Context(), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordsJSON(records))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.Filter{
		CardID:          q.Get("card"),
		SpenderMemberID: q.Get("member"),
		Kind:            core.Kind(q.Get("kind")),
		Status:          core.Status(q.Get("status")),
	}
	entries, err := s.deps.Ledger.History(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]historyEntryJSON, len(entries))
	for i, e := range entries {
		out[i] = historyEntryJSON{recordJSON: toRecordJSON(e.Record), GroupSize: e.GroupSize}
	}
	writeJSON(w, http.StatusOK, out)
}
