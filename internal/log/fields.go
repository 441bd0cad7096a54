package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldUserID        = "user_id"
	FieldAchievementID = "achievement_id"
	FieldProgress      = "progress"
	FieldTransition    = "transition"
	FieldPoints        = "points"
	FieldBalance       = "balance"
	FieldTotalEarned   = "total_earned"
	FieldTotalRedeemed = "total_redeemed"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentEngine      = "engine"
	ComponentReconcile   = "reconcile"
	ComponentLedger      = "ledger"
	ComponentCoordinator = "coordinator"
	ComponentStorage     = "storage"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentCache       = "cache"
	ComponentBackend     = "backend"
)

// Operations defines standard operation names
const (
	OpEvaluate  = "evaluate"
	OpReconcile = "reconcile"
	OpCredit    = "credit"
	OpRedeem    = "redeem"
	OpPersist   = "persist"
	OpPublish   = "publish"
	OpConsume   = "consume"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)

// LogFields provides a builder for structured log fields
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

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithUser adds the user field
func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithAchievement adds achievement progress fields
func (f LogFields) WithAchievement(achievementID string, progress int64) LogFields {
	f[FieldAchievementID] = achievementID
	f[FieldProgress] = progress
	return f
}

// WithLedger adds ledger balance fields
func (f LogFields) WithLedger(earned, redeemed, balance int64) LogFields {
	f[FieldTotalEarned] = earned
	f[FieldTotalRedeemed] = redeemed
	f[FieldBalance] = balance
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
