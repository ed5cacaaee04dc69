// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
)

// RepoLogger provides structured logging for repository operations.
type RepoLogger struct {
	table  string
	logger *slog.Logger
}

// NewRepoLogger creates a RepoLogger for the given table. A nil logger
// falls back to slog.Default.
func NewRepoLogger(table string, logger *slog.Logger) *RepoLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &RepoLogger{table: table, logger: logger}
}

// LogError logs a failed store operation along with its classified code.
func (l *RepoLogger) LogError(ctx context.Context, operation, code string, err error) {
	l.logger.ErrorContext(ctx, "repository error",
		slog.String("table", l.table),
		slog.String("operation", operation),
		slog.String("code", code),
		slog.String("error", err.Error()),
	)
}

// LogRetry records that an operation is being retried after a conflict.
func (l *RepoLogger) LogRetry(ctx context.Context, operation string, attempt int, err error) {
	l.logger.WarnContext(ctx, "repository retry",
		slog.String("table", l.table),
		slog.String("operation", operation),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
	)
}
