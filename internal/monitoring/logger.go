package monitoring

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// ToolOutcome classifies one tool-group invocation. Exactly one outcome is
// logged per invocation.
type ToolOutcome string

const (
	OutcomeSuccess ToolOutcome = "SUCCESS"
	OutcomeEmpty   ToolOutcome = "EMPTY"
	OutcomeTimeout ToolOutcome = "TIMEOUT"
	OutcomeError   ToolOutcome = "ERROR"
)

// Logger provides enhanced structured logging with context
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new enhanced logger
func NewLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// RequestLogger logs HTTP request details
func (l *Logger) RequestLogger(method, path, ip, userAgent string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"user_agent", userAgent,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// ToolOutcomeLogger logs the outcome of one tool-group computation.
// SUCCESS and EMPTY log at info, TIMEOUT and ERROR at warn.
func (l *Logger) ToolOutcomeLogger(projectID, sourceName string, outcome ToolOutcome, duration time.Duration, errMessage string) {
	level := slog.LevelInfo
	if outcome == OutcomeTimeout || outcome == OutcomeError {
		level = slog.LevelWarn
	}

	l.Log(context.Background(), level, "Tool Computation",
		"project", projectID,
		"source_tool", sourceName,
		"outcome", string(outcome),
		"duration_ms", duration.Milliseconds(),
		"error", errMessage,
	)
}

// EvaluationLogger logs a finished evaluation batch
func (l *Logger) EvaluationLogger(evaluationID string, projectCount, warningCount int, score, percentage float64, duration time.Duration) {
	l.Info("Evaluation Completed",
		"evaluation_id", evaluationID,
		"project_count", projectCount,
		"warning_count", warningCount,
		"score", score,
		"percentage", percentage,
		"duration_ms", duration.Milliseconds(),
	)
}

// APIErrorLogger logs API errors with context
func (l *Logger) APIErrorLogger(err error, method, path, ip string, statusCode int) {
	l.Error("API Error",
		"error", err.Error(),
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
	)
}

// CacheLogger logs cache operations
func (l *Logger) CacheLogger(operation, key string, hit bool, itemCount int) {
	l.Debug("Cache Operation",
		"operation", operation,
		"key_hash", key[:8]+"...",
		"hit", hit,
		"cache_size", itemCount,
	)
}

// SystemLogger logs system-level events
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

// PerformanceLogger logs performance metrics
func (l *Logger) PerformanceLogger(metric string, value float64, unit string) {
	l.Info("Performance Metric",
		"metric", metric,
		"value", value,
		"unit", unit,
		"timestamp", time.Now().Format(time.RFC3339),
	)
}

var startTime = time.Now()
