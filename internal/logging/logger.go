package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithOperation returns a logger with memory-operation context fields attached.
// Use this for all logging within a coordinator operation.
func WithOperation(operation, userID, agentID string) *slog.Logger {
	return slog.With(
		"operation", operation,
		"user_id", userID,
		"agent_id", agentID,
	)
}

// WithTier returns a logger scoped to a specific storage tier.
func WithTier(logger *slog.Logger, tier string) *slog.Logger {
	return logger.With("tier", tier)
}
