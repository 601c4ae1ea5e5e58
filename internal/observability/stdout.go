package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLevel converts a string representation to a LogLevel.
// Unrecognized levels default to InfoLevel.
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// StdLogger implements Logger by writing structured lines to a writer,
// either as plain text or as JSON.
type StdLogger struct {
	fields map[string]interface{}
	logger *log.Logger
	level  LogLevel
	json   bool
}

// NewLogger creates a logger writing to w. format is "text" or "json".
func NewLogger(w io.Writer, level LogLevel, format string) *StdLogger {
	return &StdLogger{
		fields: make(map[string]interface{}),
		logger: log.New(w, "", 0),
		level:  level,
		json:   format == "json",
	}
}

func (l *StdLogger) Debug(msg string, fields ...interface{}) {
	l.log(DebugLevel, msg, fields...)
}

func (l *StdLogger) Info(msg string, fields ...interface{}) {
	l.log(InfoLevel, msg, fields...)
}

func (l *StdLogger) Warn(msg string, fields ...interface{}) {
	l.log(WarnLevel, msg, fields...)
}

func (l *StdLogger) Error(msg string, fields ...interface{}) {
	l.log(ErrorLevel, msg, fields...)
}

// WithFields returns a new Logger with additional persistent fields.
func (l *StdLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &StdLogger{
		fields: merged,
		logger: l.logger,
		level:  l.level,
		json:   l.json,
	}
}

func (l *StdLogger) log(level LogLevel, msg string, fields ...interface{}) {
	if level < l.level {
		return
	}
	entry := l.entry(level, msg, fields...)
	if l.json {
		l.writeJSON(entry)
	} else {
		l.writeText(entry)
	}
}

func (l *StdLogger) entry(level LogLevel, msg string, fields ...interface{}) map[string]interface{} {
	entry := make(map[string]interface{}, len(l.fields)+len(fields)/2+3)
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = level.String()
	entry["message"] = msg

	for k, v := range l.fields {
		entry[k] = v
	}

	// Variadic fields come in key, value pairs; a trailing key without a
	// value is dropped.
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if err, ok := fields[i+1].(error); ok && err != nil {
			entry[key] = err.Error()
			continue
		}
		entry[key] = fields[i+1]
	}

	return entry
}

func (l *StdLogger) writeJSON(entry map[string]interface{}) {
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("failed to marshal log entry: %v", err)
		return
	}
	l.logger.Println(string(data))
}

func (l *StdLogger) writeText(entry map[string]interface{}) {
	timestamp := entry["timestamp"]
	level := entry["level"]
	message := entry["message"]
	delete(entry, "timestamp")
	delete(entry, "level")
	delete(entry, "message")

	keys := make([]string, 0, len(entry))
	for k := range entry {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var fieldStrs []string
	for _, k := range keys {
		fieldStrs = append(fieldStrs, fmt.Sprintf("%s=%v", k, entry[k]))
	}

	line := fmt.Sprintf("%s [%s] %s", timestamp, strings.ToUpper(fmt.Sprint(level)), message)
	if len(fieldStrs) > 0 {
		line += " | " + strings.Join(fieldStrs, " ")
	}
	l.logger.Println(line)
}
