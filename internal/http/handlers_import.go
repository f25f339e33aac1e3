package http

import (
	"io"
	"net/http"
	"strings"

	"financas/internal/core"
	"financas/internal/importer"
)

// handleImport normalizes an uploaded statement into drafts for review.
// The CSV is read from the multipart field "file" or, for any other content
// type, from the raw body. Nothing is stored.
//
// Query parameters: reference_month, card, category, spender, creator.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref, err := parsePeriodOr(q.Get("reference_month"), core.Period{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts := importer.Options{
		ReferenceMonth:  ref,
		CardID:          q.Get("card"),
		Category:        sanitizeInput(q.Get("category")),
		SpenderMemberID: q.Get("spender"),
		CreatorMemberID: q.Get("creator"),
	}

	body, closeBody, err := statementBody(w, r)
	if err != nil {
		writeError(w, r, &core.ValidationError{Field: "file", Reason: err.Error(), Err: err})
		return
	}
	defer closeBody()

	res, err := s.deps.Importer.Import(body, opts)
	if err != nil {
		writeError(w, r, &core.ValidationError{Field: "file", Reason: err.Error(), Err: err})
		return
	}
	writeJSON(w, http.StatusOK, toImportResponse(res))
}

func statementBody(w http.ResponseWriter, r *http.Request) (io.Reader, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.Body, func() {}, nil
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, err
	}
	return file, func() { file.Close() }, nil
}

// handleCommit stores the reviewed drafts. Unselected drafts are counted and
// skipped. When a write fails the response is still 207 with the ids created
// before the failure.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var body commitRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	drafts := make([]importer.Draft, 0, len(body.Drafts))
	for _, d := range body.Drafts {
		rec, err := d.Record.record()
		if err != nil {
			writeError(w, r, err)
			return
		}
		drafts = append(drafts, importer.Draft{Line: d.Line, Selected: d.Selected, RawDescription: d.RawDescription, Record: rec})
	}

	res, err := s.deps.Ledger.CommitDrafts(r.Context(), drafts, body.apply(s.deps.Series))
	out := commitResponse{Created: nonNil(res.Created), Unchecked: res.Unchecked}
	if err != nil {
		if len(res.Created) == 0 {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusMultiStatus, struct {
			commitResponse
			Error string `json:"error"`
		}{out, err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, out)
}
