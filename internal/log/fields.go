package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldBaseURL     = "base_url"
	FieldFileName    = "file_name"
	FieldContentType = "content_type"
	FieldSizeBytes   = "size_bytes"
	FieldCount       = "count"
	FieldTotalKg     = "total_kg_co2e"
	FieldReportID    = "report_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentAPI       = "esgapi"
	ComponentUpload    = "upload"
	ComponentDashboard = "dashboard"
	ComponentBackend   = "backend"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentTemplate  = "template"
)

// Operations defines standard operation names
const (
	OpListInvoices   = "list_invoices"
	OpProcessBatch   = "process_transactions"
	OpProcessInvoice = "process_invoice"
	OpRender         = "render"
	OpPersist        = "persist"
	OpPublish        = "publish"
	OpStartup        = "startup"
	OpShutdown       = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
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

// WithDocument adds the uploaded file fields
func (f LogFields) WithDocument(name, contentType string, size int) LogFields {
	f[FieldFileName] = name
	f[FieldContentType] = contentType
	f[FieldSizeBytes] = size
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
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
