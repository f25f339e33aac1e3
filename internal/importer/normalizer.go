package importer

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/metrics"
)

// Column synonyms, matched against normalized header names.
var (
	dateCols        = []string{"data", "date", "dia", "dt"}
	amountCols      = []string{"valor", "value", "amount"}
	descriptionCols = []string{"descricao", "description", "loja"}
	categoryCols    = []string{"categoria", "category"}
	currentCols     = []string{"parcela_atual"}
	generalCols     = []string{"parcela", "parcelas", "installments"}
	totalCols       = []string{"total_parcelas", "numero_parcelas"}
)

const fallbackDescription = "Sem descrição"

// Options tune how rows become records.
type Options struct {
	// ReferenceMonth, when set, moves installment rows into this month while
	// keeping their day of month.
	ReferenceMonth core.Period
	// CardID marks every draft as a purchase on that card.
	CardID          string
	Category        string
	SpenderMemberID string
	CreatorMemberID string
}

// Draft is a normalized record awaiting user confirmation.
type Draft struct {
	Line           int
	Selected       bool
	RawDescription string
	Record         core.LedgerRecord
}

type Skipped struct {
	Line   int
	Reason string
}

// Result is the outcome of normalizing one statement.
type Result struct {
	Drafts     []Draft
	Skipped    []Skipped
	Duplicates int
}

type Normalizer struct {
	clock  core.Clock
	logger *log.Logger
}

func NewNormalizer(clock core.Clock, logger *log.Logger) *Normalizer {
	if clock == nil {
		clock = core.SystemClock{}
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Normalizer{clock: clock, logger: logger.WithComponent(log.ComponentImporter)}
}

// Import reads a CSV statement and normalizes its rows.
func (n *Normalizer) Import(r io.Reader, opts Options) (Result, error) {
	rows, err := ReadCSV(r)
	if err != nil {
		return Result{}, fmt.Errorf("parse statement: %w", err)
	}
	return n.Normalize(rows, opts), nil
}

// Normalize converts raw rows into drafts sorted by date. Rows without a
// usable amount or with an unreadable date are dropped and reported in
// Result.Skipped. Installment rows describing the same purchase collapse into
// the one with the lowest installment index.
func (n *Normalizer) Normalize(rows []Row, opts Options) Result {
	var res Result
	now := n.clock.Now()

	var kept []Draft
	seeds := make(map[string]int) // signature -> index in kept

	for _, row := range rows {
		fields := normalizeFields(row.Fields)

		draft, reason := n.normalizeRow(row.Line, fields, opts, now)
		if reason != "" {
			n.logger.Debug("Statement row skipped", log.FieldLine, row.Line, "reason", reason)
			res.Skipped = append(res.Skipped, Skipped{Line: row.Line, Reason: reason})
			metrics.CSVRows.WithLabelValues(metrics.RowSkipped).Inc()
			continue
		}

		rec := draft.Record
		if rec.InstallmentCount > 1 {
			sig := signature(rec)
			if i, seen := seeds[sig]; seen {
				res.Duplicates++
				metrics.CSVRows.WithLabelValues(metrics.RowDuplicate).Inc()
				if rec.InstallmentIndex < kept[i].Record.InstallmentIndex {
					kept[i] = draft
				}
				continue
			}
			seeds[sig] = len(kept)
		}
		kept = append(kept, draft)
	}

	for i := range kept {
		rec := &kept[i].Record
		if !opts.ReferenceMonth.IsZero() && rec.IsInstallment && rec.InstallmentCount > 1 {
			rec.Date = opts.ReferenceMonth.DateOn(rec.Date.Day())
		}
	}

	slices.SortStableFunc(kept, func(a, b Draft) int {
		return a.Record.Date.Compare(b.Record.Date.Time)
	})
	metrics.CSVRows.WithLabelValues(metrics.RowAccepted).Add(float64(len(kept)))

	res.Drafts = kept
	n.logger.Info("Statement normalized",
		"rows", len(rows),
		"drafts", len(res.Drafts),
		"skipped", len(res.Skipped),
		"duplicates", res.Duplicates)
	return res
}

func (n *Normalizer) normalizeRow(line int, fields map[string]string, opts Options, now time.Time) (Draft, string) {
	date := core.DateOf(now)
	if raw := first(fields, dateCols); raw != "" {
		d, err := parseDate(raw, now)
		if err != nil {
			return Draft{}, fmt.Sprintf("unparseable date %q", raw)
		}
		date = d
	}

	cents, err := parseAmount(first(fields, amountCols))
	if err != nil {
		cents = 0
	}
	if cents == 0 {
		return Draft{}, "zero or missing amount"
	}

	kind := core.VariableExpense
	if cents < 0 {
		kind = core.Income
		cents = -cents
	}

	rawDesc := first(fields, descriptionCols)
	rec := core.LedgerRecord{
		Description:     rawDesc,
		Amount:          core.Money{Cents: cents},
		Category:        first(fields, categoryCols),
		Kind:            kind,
		Date:            date,
		PaymentMethod:   core.CashOrTransfer,
		SpenderMemberID: opts.SpenderMemberID,
		CreatorMemberID: opts.CreatorMemberID,
		Status:          core.Completed,
	}
	if rec.Category == "" {
		rec.Category = opts.Category
	}
	if opts.CardID != "" {
		rec.PaymentMethod = core.CreditCard
		rec.CardID = opts.CardID
	}

	if cur, total, ok := detectInstallment(fields, rawDesc); ok && total > 1 {
		if cents > math.MaxInt64/int64(total) {
			return Draft{}, fmt.Sprintf("installment amount too large for %d installments", total)
		}
		rec.IsInstallment = true
		rec.InstallmentIndex = cur
		rec.InstallmentCount = total
		rec.InstallmentAmount = core.Money{Cents: cents}
		rec.Amount = core.Money{Cents: cents * int64(total)}
		rec.Description = core.StripInstallmentToken(rawDesc)
	}
	if strings.TrimSpace(rec.Description) == "" {
		rec.Description = fallbackDescription
	}
	if len(rec.Description) > core.MaxDescriptionLength {
		rec.Description = truncate(rec.Description, core.MaxDescriptionLength)
	}

	return Draft{Line: line, Selected: true, RawDescription: rawDesc, Record: rec}, ""
}

// detectInstallment looks for an "x/y" marker in the dedicated column, the
// general installment column and the description, in that order, then falls
// back to separate numeric current/total columns.
func detectInstallment(fields map[string]string, desc string) (cur, total int, ok bool) {
	for _, cols := range [][]string{currentCols, generalCols} {
		if tok, found := core.ParseInstallment(first(fields, cols)); found {
			return tok.Current, tok.Total, true
		}
	}
	if tok, found := core.FindDescriptionInstallment(desc); found {
		return tok.Current, tok.Total, true
	}

	cur, curOK := firstCount(fields, currentCols)
	fromCurrentCol := curOK
	if !curOK {
		cur, curOK = firstCount(fields, generalCols)
	}
	total, totalOK := firstCount(fields, totalCols)
	if !totalOK && fromCurrentCol {
		total, totalOK = firstCount(fields, generalCols)
	}
	if curOK && totalOK && total > 1 && cur >= 1 && cur <= total {
		return cur, total, true
	}
	return 0, 0, false
}

// signature identifies rows that describe the same installment purchase.
func signature(r core.LedgerRecord) string {
	return fmt.Sprintf("%s|%s|%d|%d",
		r.Date.String(),
		strings.ToLower(r.Description),
		r.InstallmentAmount.Cents,
		r.InstallmentCount)
}

func normalizeFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[NormalizeHeader(k)] = strings.TrimSpace(v)
	}
	return out
}

func first(fields map[string]string, names []string) string {
	for _, name := range names {
		if v := fields[name]; v != "" {
			return v
		}
	}
	return ""
}

func firstCount(fields map[string]string, names []string) (int, bool) {
	for _, name := range names {
		if n, ok := parseCount(fields[name]); ok {
			return n, true
		}
	}
	return 0, false
}

func truncate(s string, max int) string {
	for len(s) > max {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	return s
}
