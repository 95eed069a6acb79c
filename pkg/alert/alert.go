// Package alert defines the transient alert sink the engine reports
// through. Rendering (toast, banner, terminal line) belongs to the host
// application; the engine only decides what to surface and when.
package alert

import "log/slog"

// Severity classifies an alert for display purposes.
type Severity int

const (
	// Info announces a new notification.
	Info Severity = iota

	// Warning reports a recoverable problem, like a failed baseline fetch.
	Warning

	// Error reports a failed acknowledgement or other degraded behavior.
	Error
)

// String returns the display name for a severity.
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Sink receives transient alerts. Implementations must not block: Show is
// called from the engine's delivery path.
type Sink interface {
	Show(message string, severity Severity)
}

// LogSink writes alerts to a structured logger. It is the default sink
// when the host application does not install its own.
type LogSink struct {
	Logger *slog.Logger
}

// NewLogSink creates a LogSink, defaulting to slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{Logger: logger}
}

// Show logs the alert at a level matching its severity.
func (s *LogSink) Show(message string, severity Severity) {
	switch severity {
	case Warning:
		s.Logger.Warn("alert", "message", message)
	case Error:
		s.Logger.Error("alert", "message", message)
	default:
		s.Logger.Info("alert", "message", message)
	}
}

// Verify that LogSink implements the Sink interface at compile time
var _ Sink = (*LogSink)(nil)
