package log

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldMethod       = "method"
	FieldURL          = "url"
	FieldStatusCode   = "status_code"
	FieldDuration     = "duration_ms"
	FieldSuccess      = "success"
	FieldError        = "error"
	FieldErrorType    = "error_type"
	FieldOperation    = "operation"
	FieldFlow         = "flow"
	FieldTarget       = "target"
	FieldInvoiceCount = "invoice_count"
	FieldComboCount   = "combination_count"
	FieldScenarioID   = "scenario_id"
	FieldScenarioName = "scenario_name"
	FieldFileName     = "file_name"
	FieldBytes        = "bytes"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentClient       = "client"
	ComponentOrchestrator = "orchestrator"
	ComponentScenario     = "scenario"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentBackend      = "backend"
	ComponentExport       = "export"
)

// Operations defines standard operation names
const (
	OpSearch   = "search"
	OpUpload   = "upload"
	OpExport   = "export"
	OpSave     = "save"
	OpLoad     = "load"
	OpDelete   = "delete"
	OpRead     = "read"
	OpValidate = "validate"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypePrecondition  = "precondition_error"
	ErrorTypeService       = "service_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeStorage       = "storage_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeInternal      = "internal_error"
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

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds the error category
func (f LogFields) WithErrorType(errType string) LogFields {
	f[FieldErrorType] = errType
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithFlow adds the intake flow (manual or upload)
func (f LogFields) WithFlow(flow string) LogFields {
	f[FieldFlow] = flow
	return f
}

// WithRequest adds combination request fields
func (f LogFields) WithRequest(target string, invoiceCount int) LogFields {
	f[FieldTarget] = target
	f[FieldInvoiceCount] = invoiceCount
	return f
}

// WithScenario adds scenario fields
func (f LogFields) WithScenario(id, name string) LogFields {
	f[FieldScenarioID] = id
	if name != "" {
		f[FieldScenarioName] = name
	}
	return f
}

// WithHTTPRequest adds outbound HTTP request fields
func (f LogFields) WithHTTPRequest(method, url string) LogFields {
	f[FieldMethod] = method
	f[FieldURL] = url
	return f
}

// WithHTTPResponse adds outbound HTTP response fields
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
