package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income          Kind = "INCOME"
	FixedExpense    Kind = "FIXED_EXPENSE"
	VariableExpense Kind = "VARIABLE_EXPENSE"
)

const (
	CashOrTransfer PaymentMethod = "CASH_OR_TRANSFER"
	CreditCard     PaymentMethod = "CREDIT_CARD"
)

const (
	Pending   Status = "PENDING"
	Completed Status = "COMPLETED"
)

const (
	Monthly RepetitionTypes = "monthly"
	Yearly  RepetitionTypes = "yearly"
)

// MaxDescriptionLength bounds record and template descriptions.
const MaxDescriptionLength = 200

type (
	Kind            string
	PaymentMethod   string
	Status          string
	RepetitionTypes string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// LedgerRecord is one persisted financial movement. Installments are stored
	// as one record per period, linked by InstallmentGroupID.
	LedgerRecord struct {
		ID                  string
		Description         string
		Amount              Money
		Category            string
		Kind                Kind
		Date                Date
		PaymentMethod       PaymentMethod
		CardID              string // set iff PaymentMethod == CreditCard
		InvoicePeriod       Period // set iff PaymentMethod == CreditCard
		SpenderMemberID     string
		CreatorMemberID     string
		Status              Status
		IsInstallment       bool
		InstallmentGroupID  string
		InstallmentIndex    int // 1-based
		InstallmentCount    int
		InstallmentAmount   Money
		IsRecurring         bool
		RecurringTemplateID string
		CreatedAt           time.Time
	}

	// RecurringTemplate is a rule from which one ledger instance per period is materialized.
	RecurringTemplate struct {
		ID              string
		Description     string
		Amount          Money
		Category        string
		Kind            Kind
		DayOfMonth      int
		Every           RepetitionTypes
		PaymentMethod   PaymentMethod
		CardID          string
		SpenderMemberID string
		StartPeriod     Period
		EndPeriod       Period // zero means open-ended
		Active          bool
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
)

func (k Kind) Valid() bool {
	switch k {
	case Income, FixedExpense, VariableExpense:
		return true
	}
	return false
}

func (m PaymentMethod) Valid() bool {
	return m == CashOrTransfer || m == CreditCard
}

func (s Status) Valid() bool {
	return s == Pending || s == Completed
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Period returns the calendar month the date falls in.
func (d Date) Period() Period {
	return Period{Year: d.Year(), Month: time.Month(d.Month())}
}

// AddMonths shifts the date by n calendar months, keeping the day of month
// and clamping it to the last day of the target month (Jan 31 + 1 = Feb 28).
func (d Date) AddMonths(n int) Date {
	return d.Period().AddMonths(n).DateOn(d.Day())
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive", Err: ErrInvalidAmount}
	}
	return nil
}

// Validate checks the record invariants that hold for every persisted record.
func (r LedgerRecord) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Reason: err.Error(), Err: err}
	}
	if strings.TrimSpace(r.Description) == "" {
		return &ValidationError{Field: "description", Reason: "required", Err: ErrEmptyDescription}
	}
	if len(r.Description) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Reason: "too long (max 200 characters)"}
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if !r.Kind.Valid() {
		return &ValidationError{Field: "kind", Reason: "unknown kind " + string(r.Kind)}
	}
	if !r.PaymentMethod.Valid() {
		return &ValidationError{Field: "payment_method", Reason: "unknown payment method " + string(r.PaymentMethod)}
	}
	if !r.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "unknown status " + string(r.Status)}
	}
	if r.PaymentMethod == CreditCard && strings.TrimSpace(r.CardID) == "" {
		return &ValidationError{Field: "card_id", Reason: "required for credit card payments"}
	}
	if r.PaymentMethod != CreditCard && r.CardID != "" {
		return &ValidationError{Field: "card_id", Reason: "only allowed for credit card payments"}
	}
	if r.IsInstallment {
		if r.InstallmentGroupID == "" {
			return &ValidationError{Field: "installment_group_id", Reason: "required for installments"}
		}
		if r.InstallmentCount < 1 || r.InstallmentIndex < 1 || r.InstallmentIndex > r.InstallmentCount {
			return &ValidationError{Field: "installment_index", Reason: "must be within 1..installment_count"}
		}
	}
	return nil
}

// EffectiveAmount is the per-period value of the record.
func (r LedgerRecord) EffectiveAmount() Money {
	if r.IsInstallment && r.InstallmentAmount.Cents > 0 {
		return r.InstallmentAmount
	}
	return r.Amount
}

func (t RecurringTemplate) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return &ValidationError{Field: "description", Reason: "required", Err: ErrEmptyDescription}
	}
	if len(t.Description) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Reason: "too long (max 200 characters)"}
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return &ValidationError{Field: "category", Reason: "required", Err: ErrEmptyCategory}
	}
	if !t.Kind.Valid() {
		return &ValidationError{Field: "kind", Reason: "unknown kind " + string(t.Kind)}
	}
	if t.DayOfMonth < 1 || t.DayOfMonth > 31 {
		return &ValidationError{Field: "day_of_month", Reason: "must be between 1 and 31", Err: ErrInvalidDay}
	}
	switch t.Every {
	case Monthly, Yearly:
	default:
		return &ValidationError{Field: "every", Reason: "invalid repetition type"}
	}
	if !t.PaymentMethod.Valid() {
		return &ValidationError{Field: "payment_method", Reason: "unknown payment method " + string(t.PaymentMethod)}
	}
	if t.PaymentMethod == CreditCard && strings.TrimSpace(t.CardID) == "" {
		return &ValidationError{Field: "card_id", Reason: "required for credit card payments"}
	}
	if t.StartPeriod.IsZero() {
		return &ValidationError{Field: "start_period", Reason: "required"}
	}
	if !t.EndPeriod.IsZero() && t.EndPeriod.Before(t.StartPeriod) {
		return &ValidationError{Field: "end_period", Reason: "must not be before start period"}
	}
	return nil
}
