package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldUserID     = "user_id"
	FieldStudentID  = "student_id"
	FieldRole       = "role"
	FieldExpenseID  = "expense_id"
	FieldCategory   = "category"
	FieldAmount     = "amount_cents"
	FieldAction     = "action"
)

// Components defines standard component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentAuth    = "auth"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentAudit   = "audit"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentReports = "reports"
)
