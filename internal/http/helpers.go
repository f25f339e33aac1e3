package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"financas/internal/core"
	"financas/internal/log"
)

// maxBodyBytes bounds JSON bodies and uploaded statements.
const maxBodyBytes = 4 << 20

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type failureJSON struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes. Unexpected errors are
// logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *core.ValidationError
	var pbf *core.PartialBatchFailure

	switch {
	case errors.As(err, &pbf):
		writeJSON(w, http.StatusMultiStatus, struct {
			Error     string        `json:"error"`
			Succeeded []string      `json:"succeeded"`
			Failed    []failureJSON `json:"failed"`
		}{pbf.Error(), pbf.Succeeded, failures(pbf)})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, core.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, core.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// batchOutcome splits a bulk error into the per-id failures and the status
// to answer with. Any error that is not a partial batch failure is returned
// unchanged for writeError.
func batchOutcome(err error) (int, []failureJSON, error) {
	if err == nil {
		return http.StatusOK, nil, nil
	}
	var pbf *core.PartialBatchFailure
	if errors.As(err, &pbf) {
		return http.StatusMultiStatus, failures(pbf), nil
	}
	return 0, nil, err
}

func failures(pbf *core.PartialBatchFailure) []failureJSON {
	out := make([]failureJSON, len(pbf.Failed))
	for i, f := range pbf.Failed {
		out[i] = failureJSON{ID: f.ID, Error: f.Err.Error()}
	}
	return out
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &core.ValidationError{Field: "body", Reason: fmt.Sprintf("invalid JSON: %v", err), Err: err}
	}
	return nil
}

// parseDate parses a date string in YYYY-MM-DD format.
func parseDate(s string) (core.Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: "date", Reason: fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s), Err: err}
	}
	return core.DateOf(t), nil
}

// parsePeriodOr parses a YYYY-MM value, returning def when s is empty.
func parsePeriodOr(s string, def core.Period) (core.Period, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return core.ParsePeriod(strings.TrimSpace(s))
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
