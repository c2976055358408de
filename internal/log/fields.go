package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldReferer    = "referer"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldResource   = "resource"
	FieldResourceID = "resource_id"
	FieldUser       = "user"
	FieldActivityID = "activity_id"
	FieldErrorType  = "error_type"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentAuth      = "auth"
	ComponentAPI       = "api"
	ComponentBank      = "bank"
	ComponentAccount   = "bank_account"
	ComponentTx        = "transaction"
	ComponentDashboard = "dashboard"
	ComponentUpload    = "upload"
	ComponentActivity  = "activity"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentKafka     = "kafka"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentEvents    = "events"
	ComponentTemplate  = "template"
	ComponentCLI       = "cli"
)

// Operations that are not a CRUD action; CRUD failures use the journal's
// action names.
const (
	OpLogin    = "login"
	OpLogout   = "logout"
	OpRegister = "register"
	OpSync     = "sync"
	OpRender   = "render"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeUpstream      = "upstream_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields is a small builder for structured attributes.
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

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithErrorType(errorType string) LogFields {
	f[FieldErrorType] = errorType
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithResource tags the API resource a CRUD call touched.
func (f LogFields) WithResource(resource string, id int64) LogFields {
	f[FieldResource] = resource
	if id != 0 {
		f[FieldResourceID] = id
	}
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	if referer != "" {
		f[FieldReferer] = referer
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice flattens the fields for slog. The component key is left out because
// Logger adds its own.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		if k == FieldComponent {
			continue
		}
		slice = append(slice, k, v)
	}
	return slice
}
