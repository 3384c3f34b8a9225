package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/web-archiver/internal/archive"
)

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	logger    *zap.Logger
	verbosity Verbosity
}

// NewLogNotifier returns a LogNotifier.
func NewLogNotifier(logger *zap.Logger, verbosity Verbosity) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger, verbosity: verbosity}
}

// Notify implements archive.Notifier.
func (l *LogNotifier) Notify(_ context.Context, n archive.Notification) error {
	text, ok := l.verbosity.Select(n)
	if !ok {
		return nil
	}
	fields := []zap.Field{
		zap.String("kind", string(n.Kind)),
		zap.String("record_id", n.RecordID),
		zap.String("provider", n.Provider),
	}
	if n.Kind == archive.NotifyError {
		l.logger.Warn(text, append(fields, zap.Int("error_code", n.Code))...)
		return nil
	}
	l.logger.Info(text, fields...)
	return nil
}
