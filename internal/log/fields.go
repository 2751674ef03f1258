package log

import "time"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRunID         = "run_id"
	FieldCandidate     = "candidate"
	FieldEngine        = "engine"
	FieldCommand       = "command"
	FieldPath          = "path"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldExitCode      = "exit_code"
	FieldMismatches    = "mismatches"
	FieldDivergence    = "divergence"
	FieldStatus        = "status"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldStores        = "stores"
	FieldDays          = "days"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentRunner    = "runner"
	ComponentDashboard = "dashboard"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentSheets    = "sheets"
)

// Operations defines standard operation names
const (
	OpGenerate = "generate_snapshot"
	OpCompare  = "compare_snapshot"
	OpDiff     = "diff_dashboard"
	OpPublish  = "publish"
	OpRecord   = "record"
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

// WithCandidate adds candidate field
func (f LogFields) WithCandidate(name string) LogFields {
	f[FieldCandidate] = name
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

// WithDuration adds duration fields in milliseconds and human form
func (f LogFields) WithDuration(d time.Duration) LogFields {
	f[FieldDuration] = d.Milliseconds()
	f[FieldDurationHuman] = d.String()
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
