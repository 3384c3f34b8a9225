package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/web-archiver/internal/events"
)

// LogSink emits one structured log line per transition.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("record_id", evt.RecordID),
			zap.String("url", evt.URL),
			zap.String("provider", evt.Provider),
			zap.String("from", string(evt.From)),
			zap.String("to", string(evt.To)),
		}
		if evt.Location != "" {
			fields = append(fields, zap.String("location", evt.Location))
		}
		if evt.ErrorCode != 0 {
			fields = append(fields, zap.Int("error_code", evt.ErrorCode))
		}
		s.logger.Info("archive transition", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
