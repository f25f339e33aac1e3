package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"financas/internal/core"

	_ "modernc.org/sqlite"
)

const recordColumns = `id, description, amount_cents, category, kind, date, payment_method,
	card_id, invoice_period, spender_member_id, creator_member_id, status,
	is_installment, installment_group_id, installment_index, installment_count,
	installment_amount_cents, is_recurring, recurring_template_id, created_at`

const templateColumns = `id, description, amount_cents, category, kind, day_of_month, every,
	payment_method, card_id, spender_member_id, start_period, end_period, active`

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Create implements RecordStore
func (r *SQLiteRepository) Create(ctx context.Context, rec core.LedgerRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO ledger_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Description, rec.Amount.Cents, rec.Category, string(rec.Kind), rec.Date.String(),
		string(rec.PaymentMethod), nullString(rec.CardID), nullString(rec.InvoicePeriod.String()),
		nullString(rec.SpenderMemberID), nullString(rec.CreatorMemberID), string(rec.Status),
		rec.IsInstallment, nullString(rec.InstallmentGroupID), rec.InstallmentIndex, rec.InstallmentCount,
		rec.InstallmentAmount.Cents, rec.IsRecurring, nullString(rec.RecurringTemplateID),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("record %s: %w", rec.ID, core.ErrConflict)
		}
		return "", &core.StoreError{Op: "create record", Err: err}
	}

	slog.DebugContext(ctx, "Ledger record saved to SQLite",
		"id", rec.ID,
		"amount_cents", rec.Amount.Cents,
		"date", rec.Date.String(),
		"group_id", rec.InstallmentGroupID)

	return rec.ID, nil
}

// Get implements RecordStore
func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.LedgerRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM ledger_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerRecord{}, core.NotFound("record", id)
	}
	if err != nil {
		return core.LedgerRecord{}, &core.StoreError{Op: "get record", Err: err}
	}
	return rec, nil
}

// List implements RecordStore
func (r *SQLiteRepository) List(ctx context.Context, f Filter) ([]core.LedgerRecord, error) {
	where, args := filterClause(f)
	query := `SELECT ` + recordColumns + ` FROM ledger_records` + where +
		` ORDER BY date, installment_index, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &core.StoreError{Op: "list records", Err: err}
	}
	defer rows.Close()

	var out []core.LedgerRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &core.StoreError{Op: "scan record", Err: err}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StoreError{Op: "list records", Err: err}
	}
	return out, nil
}

// Update implements RecordStore. The patched record is validated before the
// write so a partial update cannot break record invariants.
func (r *SQLiteRepository) Update(ctx context.Context, id string, p Patch) error {
	if p.IsEmpty() {
		return nil
	}
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	p.Apply(&current)
	if err := current.Validate(); err != nil {
		return err
	}

	var sets []string
	var args []any
	if p.Description != nil {
		sets, args = append(sets, "description = ?"), append(args, current.Description)
	}
	if p.Amount != nil {
		sets, args = append(sets, "amount_cents = ?"), append(args, current.Amount.Cents)
	}
	if p.InstallmentAmount != nil {
		sets, args = append(sets, "installment_amount_cents = ?"), append(args, current.InstallmentAmount.Cents)
	}
	if p.Category != nil {
		sets, args = append(sets, "category = ?"), append(args, current.Category)
	}
	if p.Date != nil {
		sets, args = append(sets, "date = ?"), append(args, current.Date.String())
	}
	if p.InvoicePeriod != nil {
		sets, args = append(sets, "invoice_period = ?"), append(args, nullString(current.InvoicePeriod.String()))
	}
	if p.SpenderMemberID != nil {
		sets, args = append(sets, "spender_member_id = ?"), append(args, nullString(current.SpenderMemberID))
	}
	if p.Status != nil {
		sets, args = append(sets, "status = ?"), append(args, string(current.Status))
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, `UPDATE ledger_records SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("record %s: %w", id, core.ErrConflict)
		}
		return &core.StoreError{Op: "update record", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFound("record", id)
	}
	return nil
}

// Delete implements RecordStore
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ledger_records WHERE id = ?`, id)
	if err != nil {
		return &core.StoreError{Op: "delete record", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFound("record", id)
	}
	return nil
}

// DeleteMany implements RecordStore. The ids are removed in one transaction.
func (r *SQLiteRepository) DeleteMany(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &core.StoreError{Op: "begin delete many", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM ledger_records WHERE id IN (`+placeholders(len(ids))+`)`, toArgs(ids)...)
	if err != nil {
		return 0, &core.StoreError{Op: "delete many", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &core.StoreError{Op: "delete many", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &core.StoreError{Op: "commit delete many", Err: err}
	}

	slog.InfoContext(ctx, "Ledger records deleted", "requested", len(ids), "deleted", n)
	return int(n), nil
}

// CreateTemplate implements TemplateStore
func (r *SQLiteRepository) CreateTemplate(ctx context.Context, t core.RecurringTemplate) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO recurring_templates (`+templateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Description, t.Amount.Cents, t.Category, string(t.Kind), t.DayOfMonth, string(t.Every),
		string(t.PaymentMethod), nullString(t.CardID), nullString(t.SpenderMemberID),
		t.StartPeriod.String(), nullString(t.EndPeriod.String()), t.Active,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("template %s: %w", t.ID, core.ErrConflict)
		}
		return "", &core.StoreError{Op: "create template", Err: err}
	}
	return t.ID, nil
}

// GetTemplate implements TemplateStore
func (r *SQLiteRepository) GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM recurring_templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringTemplate{}, core.NotFound("template", id)
	}
	if err != nil {
		return core.RecurringTemplate{}, &core.StoreError{Op: "get template", Err: err}
	}
	return t, nil
}

// ListTemplates implements TemplateStore
func (r *SQLiteRepository) ListTemplates(ctx context.Context, activeOnly bool) ([]core.RecurringTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM recurring_templates`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &core.StoreError{Op: "list templates", Err: err}
	}
	defer rows.Close()

	var out []core.RecurringTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, &core.StoreError{Op: "scan template", Err: err}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StoreError{Op: "list templates", Err: err}
	}
	return out, nil
}

// DeleteTemplate implements TemplateStore. Materialized instances are kept.
func (r *SQLiteRepository) DeleteTemplate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_templates WHERE id = ?`, id)
	if err != nil {
		return &core.StoreError{Op: "delete template", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFound("template", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (core.LedgerRecord, error) {
	var (
		rec                                     core.LedgerRecord
		kind, method, status, date, createdAt   string
		cardID, invoicePeriod, spender, creator sql.NullString
		groupID, templateID                     sql.NullString
		amountCents, installmentAmountCents     int64
	)
	err := s.Scan(&rec.ID, &rec.Description, &amountCents, &rec.Category, &kind, &date, &method,
		&cardID, &invoicePeriod, &spender, &creator, &status,
		&rec.IsInstallment, &groupID, &rec.InstallmentIndex, &rec.InstallmentCount,
		&installmentAmountCents, &rec.IsRecurring, &templateID, &createdAt)
	if err != nil {
		return core.LedgerRecord{}, err
	}

	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return core.LedgerRecord{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	rec.Date = core.Date{Time: d}
	if invoicePeriod.Valid && invoicePeriod.String != "" {
		p, err := core.ParsePeriod(invoicePeriod.String)
		if err != nil {
			return core.LedgerRecord{}, fmt.Errorf("parse invoice period: %w", err)
		}
		rec.InvoicePeriod = p
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = ts
	}

	rec.Amount = core.Money{Cents: amountCents}
	rec.InstallmentAmount = core.Money{Cents: installmentAmountCents}
	rec.Kind = core.Kind(kind)
	rec.PaymentMethod = core.PaymentMethod(method)
	rec.Status = core.Status(status)
	rec.CardID = cardID.String
	rec.SpenderMemberID = spender.String
	rec.CreatorMemberID = creator.String
	rec.InstallmentGroupID = groupID.String
	rec.RecurringTemplateID = templateID.String
	return rec, nil
}

func scanTemplate(s rowScanner) (core.RecurringTemplate, error) {
	var (
		t                          core.RecurringTemplate
		kind, every, method        string
		startPeriod                string
		cardID, spender, endPeriod sql.NullString
		amountCents                int64
	)
	err := s.Scan(&t.ID, &t.Description, &amountCents, &t.Category, &kind, &t.DayOfMonth, &every,
		&method, &cardID, &spender, &startPeriod, &endPeriod, &t.Active)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	start, err := core.ParsePeriod(startPeriod)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("parse start period: %w", err)
	}
	t.StartPeriod = start
	if endPeriod.Valid && endPeriod.String != "" {
		end, err := core.ParsePeriod(endPeriod.String)
		if err != nil {
			return core.RecurringTemplate{}, fmt.Errorf("parse end period: %w", err)
		}
		t.EndPeriod = end
	}
	t.Amount = core.Money{Cents: amountCents}
	t.Kind = core.Kind(kind)
	t.Every = core.RepetitionTypes(every)
	t.PaymentMethod = core.PaymentMethod(method)
	t.CardID = cardID.String
	t.SpenderMemberID = spender.String
	return t, nil
}

func filterClause(f Filter) (string, []any) {
	var conds []string
	var args []any
	if len(f.IDs) > 0 {
		conds = append(conds, "id IN ("+placeholders(len(f.IDs))+")")
		args = append(args, toArgs(f.IDs)...)
	}
	if f.InstallmentGroupID != "" {
		conds, args = append(conds, "installment_group_id = ?"), append(args, f.InstallmentGroupID)
	}
	if f.RecurringTemplateID != "" {
		conds, args = append(conds, "recurring_template_id = ?"), append(args, f.RecurringTemplateID)
	}
	if f.CardID != "" {
		conds, args = append(conds, "card_id = ?"), append(args, f.CardID)
	}
	if !f.InvoicePeriod.IsZero() {
		conds, args = append(conds, "invoice_period = ?"), append(args, f.InvoicePeriod.String())
	}
	if !f.Month.IsZero() {
		conds, args = append(conds, "substr(date, 1, 7) = ?"), append(args, f.Month.String())
	}
	if f.Status != "" {
		conds, args = append(conds, "status = ?"), append(args, string(f.Status))
	}
	if f.SpenderMemberID != "" {
		conds, args = append(conds, "spender_member_id = ?"), append(args, f.SpenderMemberID)
	}
	if f.Kind != "" {
		conds, args = append(conds, "kind = ?"), append(args, string(f.Kind))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
