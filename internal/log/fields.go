package log

// Field names shared by structured log calls.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldTransactionID = "transaction_id"
	FieldScope         = "scope"
	FieldQueueEntry    = "queue_entry"
	FieldAction        = "action"
	FieldPending       = "pending"
	FieldSynced        = "synced"
	FieldFailed        = "failed"
	FieldReason        = "reason"
)

// Component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentBackend = "backend"
	ComponentWorker  = "worker"
)
