package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldRecordID    = "record_id"
	FieldGroupID     = "group_id"
	FieldTemplateID  = "template_id"
	FieldPeriod      = "period"
	FieldCardID      = "card_id"
	FieldMemberID    = "member_id"
	FieldAmountCents = "amount_cents"
	FieldLine        = "line"
	FieldCount       = "count"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentRecurring = "recurring"
	ComponentImporter  = "importer"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpCreate       = "create"
	OpUpdate       = "update"
	OpDelete       = "delete"
	OpBulkDelete   = "bulk_delete"
	OpBulkReassign = "bulk_reassign"
	OpAssignMember = "assign_member"
	OpCommit       = "commit"
	OpMaterialize  = "materialize"
	OpImport       = "import"
	OpStartup      = "startup"
	OpShutdown     = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRecord adds the identifying fields of a ledger record.
func (f LogFields) WithRecord(id, groupID string, amountCents int64) LogFields {
	f[FieldRecordID] = id
	if groupID != "" {
		f[FieldGroupID] = groupID
	}
	f[FieldAmountCents] = amountCents
	return f
}

func (f LogFields) WithHTTPResponse(method, path string, statusCode int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
