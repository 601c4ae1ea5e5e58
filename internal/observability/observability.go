// Package observability defines the logging and metrics ports used across
// the preprocessor, along with their default adapters (a structured stdout
// logger and a Prometheus metrics collector).
package observability

// Logger is the structured logging port. Fields are variadic key-value
// pairs: Info("downloaded", "url", url, "bytes", n).
type Logger interface {
	// Debug logs detailed diagnostic information.
	Debug(msg string, fields ...interface{})

	// Info logs informational messages for normal operations.
	Info(msg string, fields ...interface{})

	// Warn logs conditions that are unexpected but don't fail an operation.
	Warn(msg string, fields ...interface{})

	// Error logs error conditions. Pass the actual error under the "error"
	// key; the implementation extracts its message.
	Error(msg string, fields ...interface{})

	// WithFields returns a new Logger with the given fields added to all
	// subsequent logs. Useful for consistent context like run_id or job.
	WithFields(fields map[string]interface{}) Logger
}

// Metrics is the metrics collection port.
type Metrics interface {
	// RecordSuccess increments the success counter for an operation type.
	RecordSuccess(operation string)

	// RecordError increments the error counter for an operation and error type.
	RecordError(operation string, errorType string)

	// RecordDuration records how long an operation took, in seconds.
	RecordDuration(operation string, seconds float64)
}
