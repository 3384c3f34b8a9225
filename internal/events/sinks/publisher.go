package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/web-archiver/internal/events"
)

// Publisher sends a JSON-encodable payload with string attributes to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any, attrs map[string]string) (string, error)
}

// PublisherSink publishes each transition as its own message.
type PublisherSink struct {
	publisher Publisher
	topic     string
}

// NewPublisherSink constructs a PublisherSink targeting topic.
func NewPublisherSink(publisher Publisher, topic string) *PublisherSink {
	return &PublisherSink{publisher: publisher, topic: topic}
}

// Consume publishes every event and reports all failures together.
func (s *PublisherSink) Consume(ctx context.Context, batch []events.Event) error {
	if s == nil || s.publisher == nil {
		return nil
	}
	var errs []error
	for _, evt := range batch {
		if _, err := s.publisher.Publish(ctx, s.topic, evt, evt.Attributes()); err != nil {
			errs = append(errs, fmt.Errorf("publish %s/%s: %w", evt.RecordID, evt.Provider, err))
		}
	}
	return errors.Join(errs...)
}

// Close implements the Sink interface; it performs no action.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}
