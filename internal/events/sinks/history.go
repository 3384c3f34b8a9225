package sinks

import (
	"context"
	"fmt"

	"github.com/JakeFAU/web-archiver/internal/events"
)

// HistoryRecorder persists individual transitions.
type HistoryRecorder interface {
	RecordTransition(ctx context.Context, evt events.Event) error
}

// HistorySink appends every transition to a HistoryRecorder, typically
// postgres.HistoryStore.
type HistorySink struct {
	recorder HistoryRecorder
}

// NewHistorySink constructs a HistorySink for the provided recorder.
func NewHistorySink(recorder HistoryRecorder) *HistorySink {
	return &HistorySink{recorder: recorder}
}

// Consume writes events in order and stops at the first failure.
func (s *HistorySink) Consume(ctx context.Context, batch []events.Event) error {
	if s == nil || s.recorder == nil {
		return nil
	}
	for i, evt := range batch {
		if err := s.recorder.RecordTransition(ctx, evt); err != nil {
			return fmt.Errorf("record transition %d/%d: %w", i+1, len(batch), err)
		}
	}
	return nil
}

// Close implements the Sink interface; the recorder's lifetime is owned by the caller.
func (s *HistorySink) Close(context.Context) error {
	return nil
}
