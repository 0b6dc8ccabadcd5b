// Package observability provides structured logging, metrics and tracing
// helpers for eventipc agents.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds agent context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "client", id)
//	enriched.Info("emitting") // includes component, role, agent_id
func EnrichLogger(logger *slog.Logger, role, agentID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("component", "eventipc"),
		slog.String("role", role),
		slog.String("agent_id", agentID),
	)
}

// LogConnected logs a completed connect or serve.
func LogConnected(logger *slog.Logger, broadcastAddr, requestAddr string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("transport handles open",
		slog.String("broadcast_addr", broadcastAddr),
		slog.String("request_addr", requestAddr),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDialRetry logs a failed dial that will be attempted again.
func LogDialRetry(logger *slog.Logger, handle, addr string, attempt int, err error, delay time.Duration) {
	if logger == nil {
		return
	}
	logger.Warn("dial failed, retrying",
		slog.String("handle", handle),
		slog.String("addr", addr),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
		slog.Duration("retry_in", delay),
	)
}

// LogConnectFailed logs a connect or serve that exhausted its retries.
func LogConnectFailed(logger *slog.Logger, addr string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("connect failed",
		slog.String("addr", addr),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogTampered logs a frame dropped because it failed authentication.
func LogTampered(logger *slog.Logger, handle string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Warn("dropped frame that failed authentication",
		slog.String("handle", handle),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogMalformed logs a frame dropped because it did not parse.
func LogMalformed(logger *slog.Logger, handle string, sizeBytes int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("dropped malformed frame",
		slog.String("handle", handle),
		slog.Int("size_bytes", sizeBytes),
		slog.String("error", err.Error()),
	)
}

// LogHandlerError logs a handler failure. The receive loop continues.
func LogHandlerError(logger *slog.Logger, event string, err error) {
	if logger == nil {
		return
	}
	logger.Error("handler failed",
		slog.String("event", event),
		slog.String("error", err.Error()),
	)
}

// LogUnhandled logs an event that arrived with no handler registered.
func LogUnhandled(logger *slog.Logger, event string) {
	if logger == nil {
		return
	}
	logger.Debug("no handler for event",
		slog.String("event", event),
	)
}

// LogJournalError logs an incident that could not be recorded (non-fatal).
func LogJournalError(logger *slog.Logger, kind string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal write failed",
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
}

// LogShutdown logs a completed shutdown.
func LogShutdown(logger *slog.Logger, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("shut down",
		slog.Float64("duration_ms", durationMs),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
