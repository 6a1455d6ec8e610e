package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Service
	FieldService = "service"

	// Search
	FieldQuery         = "query"
	FieldScope         = "scope"
	FieldProvider      = "provider"
	FieldHistoryID     = "history_id"
	FieldSavedSearchID = "saved_search_id"
	FieldEventType     = "event_type"
	FieldEventID       = "event_id"
	FieldChannel       = "channel"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
