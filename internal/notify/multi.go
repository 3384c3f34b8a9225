package notify

import (
	"context"
	"errors"

	"github.com/JakeFAU/web-archiver/internal/archive"
)

// Multi fans a notification out to every wrapped notifier.
type Multi []archive.Notifier

// Notify implements archive.Notifier; every notifier is attempted.
func (m Multi) Notify(ctx context.Context, n archive.Notification) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop discards notifications.
type Noop struct{}

// Notify implements archive.Notifier.
func (Noop) Notify(context.Context, archive.Notification) error { return nil }
