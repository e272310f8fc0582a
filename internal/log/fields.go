package log

import "time"

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldPeriod      = "period"
	FieldLabel       = "label"
	FieldSequence    = "seq"
	FieldWindowStart = "window_start"
	FieldWindowEnd   = "window_end"
	FieldAmountCents = "amount_cents"
	FieldExpense     = "total_expense_cents"
	FieldIncome      = "total_income_cents"
	FieldCount       = "count"
	FieldFingerprint = "fingerprint"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentSession = "session"
	ComponentStats   = "stats"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentCache   = "cache"
	ComponentExport  = "export"
	ComponentImport  = "import"
)

// Operations defines standard operation names
const (
	OpRead     = "read"
	OpAppend   = "append"
	OpCompute  = "compute"
	OpCompare  = "compare"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpExport   = "export"
	OpParse    = "parse"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithPeriod adds the selected period kind and the request sequence number.
func (f LogFields) WithPeriod(kind string, seq uint64) LogFields {
	f[FieldPeriod] = kind
	f[FieldSequence] = seq
	return f
}

// WithWindow adds window bounds, formatted in the window's own location.
func (f LogFields) WithWindow(label string, start, end time.Time) LogFields {
	f[FieldLabel] = label
	f[FieldWindowStart] = start.Format(time.RFC3339)
	f[FieldWindowEnd] = end.Format(time.RFC3339Nano)
	return f
}

// WithTotals adds the aggregate totals in minor units.
func (f LogFields) WithTotals(expenseCents, incomeCents int64) LogFields {
	f[FieldExpense] = expenseCents
	f[FieldIncome] = incomeCents
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
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
