package http

import (
	"strings"
	"time"

	"financas/internal/core"
	"financas/internal/importer"
	"financas/internal/services"
	"financas/internal/storage"
)

const dateLayout = "2006-01-02"

type recordJSON struct {
	ID                     string `json:"id,omitempty"`
	Description            string `json:"description"`
	AmountCents            int64  `json:"amount_cents"`
	Amount                 string `json:"amount,omitempty"`
	Category               string `json:"category"`
	Kind                   string `json:"kind"`
	Date                   string `json:"date"`
	PaymentMethod          string `json:"payment_method"`
	CardID                 string `json:"card_id,omitempty"`
	InvoicePeriod          string `json:"invoice_period,omitempty"`
	SpenderMemberID        string `json:"spender_member_id,omitempty"`
	CreatorMemberID        string `json:"creator_member_id,omitempty"`
	Status                 string `json:"status,omitempty"`
	IsInstallment          bool   `json:"is_installment,omitempty"`
	InstallmentGroupID     string `json:"installment_group_id,omitempty"`
	InstallmentIndex       int    `json:"installment_index,omitempty"`
	InstallmentCount       int    `json:"installment_count,omitempty"`
	InstallmentAmountCents int64  `json:"installment_amount_cents,omitempty"`
	IsRecurring            bool   `json:"is_recurring,omitempty"`
	RecurringTemplateID    string `json:"recurring_template_id,omitempty"`
	CreatedAt              string `json:"created_at,omitempty"`
}

func toRecordJSON(r core.LedgerRecord) recordJSON {
	out := recordJSON{
		ID:                     r.ID,
		Description:            r.Description,
		AmountCents:            r.Amount.Cents,
		Amount:                 r.Amount.String(),
		Category:               r.Category,
		Kind:                   string(r.Kind),
		Date:                   r.Date.String(),
		PaymentMethod:          string(r.PaymentMethod),
		CardID:                 r.CardID,
		InvoicePeriod:          r.InvoicePeriod.String(),
		SpenderMemberID:        r.SpenderMemberID,
		CreatorMemberID:        r.CreatorMemberID,
		Status:                 string(r.Status),
		IsInstallment:          r.IsInstallment,
		InstallmentGroupID:     r.InstallmentGroupID,
		InstallmentIndex:       r.InstallmentIndex,
		InstallmentCount:       r.InstallmentCount,
		InstallmentAmountCents: r.InstallmentAmount.Cents,
		IsRecurring:            r.IsRecurring,
		RecurringTemplateID:    r.RecurringTemplateID,
	}
	if !r.CreatedAt.IsZero() {
		out.CreatedAt = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func toRecordsJSON(rs []core.LedgerRecord) []recordJSON {
	out := make([]recordJSON, len(rs))
	for i, r := range rs {
		out[i] = toRecordJSON(r)
	}
	return out
}

// record converts a request body into a domain record. The id and invoice
// period are not read; the service assigns them.
func (j recordJSON) record() (core.LedgerRecord, error) {
	date, err := parseDate(j.Date)
	if err != nil {
		return core.LedgerRecord{}, err
	}
	return core.LedgerRecord{
		Description:         sanitizeInput(j.Description),
		Amount:              core.Money{Cents: j.AmountCents},
		Category:            sanitizeInput(j.Category),
		Kind:                core.Kind(strings.ToUpper(j.Kind)),
		Date:                date,
		PaymentMethod:       core.PaymentMethod(strings.ToUpper(j.PaymentMethod)),
		CardID:              j.CardID,
		SpenderMemberID:     j.SpenderMemberID,
		CreatorMemberID:     j.CreatorMemberID,
		Status:              core.Status(strings.ToUpper(j.Status)),
		IsInstallment:       j.IsInstallment || j.InstallmentCount > 1,
		InstallmentGroupID:  j.InstallmentGroupID,
		InstallmentIndex:    j.InstallmentIndex,
		InstallmentCount:    j.InstallmentCount,
		InstallmentAmount:   core.Money{Cents: j.InstallmentAmountCents},
		IsRecurring:         j.IsRecurring,
		RecurringTemplateID: j.RecurringTemplateID,
	}, nil
}

type patchJSON struct {
	Description            *string `json:"description"`
	AmountCents            *int64  `json:"amount_cents"`
	InstallmentAmountCents *int64  `json:"installment_amount_cents"`
	Category               *string `json:"category"`
	Date                   *string `json:"date"`
	SpenderMemberID        *string `json:"spender_member_id"`
	Status                 *string `json:"status"`
}

func (j patchJSON) patch() (storage.Patch, error) {
	var p storage.Patch
	if j.Description != nil {
		d := sanitizeInput(*j.Description)
		p.Description = &d
	}
	if j.AmountCents != nil {
		p.Amount = &core.Money{Cents: *j.AmountCents}
	}
	if j.InstallmentAmountCents != nil {
		p.InstallmentAmount = &core.Money{Cents: *j.InstallmentAmountCents}
	}
	if j.Category != nil {
		c := sanitizeInput(*j.Category)
		p.Category = &c
	}
	if j.Date != nil {
		d, err := parseDate(*j.Date)
		if err != nil {
			return storage.Patch{}, err
		}
		p.Date = &d
	}
	p.SpenderMemberID = j.SpenderMemberID
	if j.Status != nil {
		s := core.Status(strings.ToUpper(*j.Status))
		if !s.Valid() {
			return storage.Patch{}, &core.ValidationError{Field: "status", Reason: "unknown status " + *j.Status}
		}
		p.Status = &s
	}
	return p, nil
}

type seriesOptionsJSON struct {
	GenerateFuture       *bool `json:"generate_future"`
	GeneratePast         *bool `json:"generate_past"`
	UsePurchaseDateLogic *bool `json:"use_purchase_date_logic"`
}

// apply overrides the server defaults with the fields present in the request.
func (j seriesOptionsJSON) apply(def services.SeriesOptions) services.SeriesOptions {
	if j.GenerateFuture != nil {
		def.GenerateFuture = *j.GenerateFuture
	}
	if j.GeneratePast != nil {
		def.GeneratePast = *j.GeneratePast
	}
	if j.UsePurchaseDateLogic != nil {
		def.UsePurchaseDateLogic = *j.UsePurchaseDateLogic
	}
	return def
}

type seriesRequest struct {
	Seed recordJSON `json:"seed"`
	seriesOptionsJSON
}

type seriesResponse struct {
	GroupID string       `json:"group_id"`
	Records []recordJSON `json:"records"`
}

type previewResponse struct {
	Closed     bool   `json:"closed"`
	NextIndex  int    `json:"next_index,omitempty"`
	NextPeriod string `json:"next_period,omitempty"`
	Remaining  int    `json:"remaining,omitempty"`
}

type historyEntryJSON struct {
	recordJSON
	GroupSize int `json:"group_size"`
}

type memberRequest struct {
	MemberID string `json:"member_id"`
}

type bulkDeleteRequest struct {
	IDs  []string `json:"ids"`
	View string   `json:"view"`
}

func (b bulkDeleteRequest) view() services.View {
	if strings.EqualFold(b.View, "history") {
		return services.ViewHistory
	}
	return services.ViewPeriod
}

type bulkDeleteResponse struct {
	Requested      int           `json:"requested"`
	Targeted       []string      `json:"targeted"`
	Deleted        []string      `json:"deleted"`
	CascadeWarning bool          `json:"cascade_warning"`
	Failed         []failureJSON `json:"failed,omitempty"`
}

type bulkMemberRequest struct {
	IDs      []string `json:"ids"`
	MemberID string   `json:"member_id"`
}

type bulkMemberResponse struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []failureJSON `json:"failed,omitempty"`
}

type draftJSON struct {
	Line           int        `json:"line"`
	Selected       bool       `json:"selected"`
	RawDescription string     `json:"raw_description,omitempty"`
	Record         recordJSON `json:"record"`
}

type skippedJSON struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type importResponse struct {
	Drafts     []draftJSON   `json:"drafts"`
	Skipped    []skippedJSON `json:"skipped"`
	Duplicates int           `json:"duplicates"`
}

func toImportResponse(res importer.Result) importResponse {
	out := importResponse{
		Drafts:     make([]draftJSON, len(res.Drafts)),
		Skipped:    make([]skippedJSON, len(res.Skipped)),
		Duplicates: res.Duplicates,
	}
	for i, d := range res.Drafts {
		out.Drafts[i] = draftJSON{Line: d.Line, Selected: d.Selected, RawDescription: d.RawDescription, Record: toRecordJSON(d.Record)}
	}
	for i, s := range res.Skipped {
		out.Skipped[i] = skippedJSON{Line: s.Line, Reason: s.Reason}
	}
	return out
}

type commitRequest struct {
	Drafts []draftJSON `json:"drafts"`
	seriesOptionsJSON
}

type commitResponse struct {
	Created   []string `json:"created"`
	Unchecked int      `json:"unchecked"`
}

type templateJSON struct {
	ID              string `json:"id,omitempty"`
	Description     string `json:"description"`
	AmountCents     int64  `json:"amount_cents"`
	Category        string `json:"category"`
	Kind            string `json:"kind"`
	DayOfMonth      int    `json:"day_of_month"`
	Every           string `json:"every"`
	PaymentMethod   string `json:"payment_method"`
	CardID          string `json:"card_id,omitempty"`
	SpenderMemberID string `json:"spender_member_id,omitempty"`
	StartPeriod     string `json:"start_period"`
	EndPeriod       string `json:"end_period,omitempty"`
	Active          *bool  `json:"active,omitempty"`
}

func toTemplateJSON(t core.RecurringTemplate) templateJSON {
	active := t.Active
	return templateJSON{
		ID:              t.ID,
		Description:     t.Description,
		AmountCents:     t.Amount.Cents,
		Category:        t.Category,
		Kind:            string(t.Kind),
		DayOfMonth:      t.DayOfMonth,
		Every:           string(t.Every),
		PaymentMethod:   string(t.PaymentMethod),
		CardID:          t.CardID,
		SpenderMemberID: t.SpenderMemberID,
		StartPeriod:     t.StartPeriod.String(),
		EndPeriod:       t.EndPeriod.String(),
		Active:          &active,
	}
}

func (j templateJSON) template() (core.RecurringTemplate, error) {
	t := core.RecurringTemplate{
		ID:              j.ID,
		Description:     sanitizeInput(j.Description),
		Amount:          core.Money{Cents: j.AmountCents},
		Category:        sanitizeInput(j.Category),
		Kind:            core.Kind(strings.ToUpper(j.Kind)),
		DayOfMonth:      j.DayOfMonth,
		Every:           core.RepetitionTypes(strings.ToLower(j.Every)),
		PaymentMethod:   core.PaymentMethod(strings.ToUpper(j.PaymentMethod)),
		CardID:          j.CardID,
		SpenderMemberID: j.SpenderMemberID,
		Active:          j.Active == nil || *j.Active,
	}
	if err := t.StartPeriod.UnmarshalText([]byte(j.StartPeriod)); err != nil {
		return core.RecurringTemplate{}, err
	}
	if err := t.EndPeriod.UnmarshalText([]byte(j.EndPeriod)); err != nil {
		return core.RecurringTemplate{}, err
	}
	return t, t.Validate()
}

type materializeRequest struct {
	Period string `json:"period"`
}

type materializeResponse struct {
	Period  string        `json:"period"`
	Created []recordJSON  `json:"created"`
	Existed int           `json:"existed"`
	NotDue  int           `json:"not_due"`
	Failed  []failureJSON `json:"failed,omitempty"`
}

type cardJSON struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	ClosingDay int            `json:"closing_day"`
	Overrides  map[string]int `json:"overrides,omitempty"`
}
