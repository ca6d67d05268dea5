package log

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldClientIP     = "client_ip"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldStatusCode   = "status_code"
	FieldDuration     = "duration_ms"
	FieldUserAgent    = "user_agent"
	FieldSuccess      = "success"
	FieldError        = "error"
	FieldErrorKind    = "error_kind"
	FieldOperation    = "operation"
	FieldObligationID = "obligation_id"
	FieldNextDue      = "next_due"
	FieldInterval     = "interval"
	FieldIncome       = "income"
	FieldExpense      = "expense"
	FieldBudget       = "budget"
	FieldGoal         = "goal"
	FieldAlertCount   = "alert_count"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentAPI        = "api"
	ComponentMonitor    = "monitor"
	ComponentScheduler  = "scheduler"
	ComponentAggregator = "aggregator"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentSheets     = "sheets"
	ComponentBackend    = "backend"
	ComponentCLI        = "cli"
)

// Operations defines standard operation names
const (
	OpRead       = "read"
	OpList       = "list"
	OpReschedule = "reschedule"
	OpAdvance    = "advance"
	OpRemove     = "remove"
	OpRefresh    = "refresh"
	OpClear      = "clear"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
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

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error text and, when present, its taxonomy kind.
func (f LogFields) WithError(err error, kind error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	if kind != nil {
		f[FieldErrorKind] = kind.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithObligation(id, nextDue, interval string) LogFields {
	f[FieldObligationID] = id
	if nextDue != "" {
		f[FieldNextDue] = nextDue
	}
	if interval != "" {
		f[FieldInterval] = interval
	}
	return f
}

// WithTotals records the four snapshot amounts as decimal strings.
func (f LogFields) WithTotals(income, expense, budget, goal string) LogFields {
	f[FieldIncome] = income
	f[FieldExpense] = expense
	f[FieldBudget] = budget
	f[FieldGoal] = goal
	return f
}

func (f LogFields) WithHTTPRequest(method, path, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
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
