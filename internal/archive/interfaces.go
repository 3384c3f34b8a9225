package archive

import (
	"context"
	"time"
)

// Driver speaks the check-then-request protocol against one archiving
// backend. CheckExisting returns ErrSnapshotNotFound when the provider has no
// snapshot yet; any other error is a *ProviderError.
type Driver interface {
	Name() string
	DisplayName() string
	CheckExisting(ctx context.Context, url string) (string, error)
	RequestSnapshot(ctx context.Context, url string) (string, error)
	PlaceholderLocation(url string) string
}

// Transport performs HTTP calls on behalf of drivers. Responses with a status
// of 400 or above are returned together with a *HTTPStatusError.
type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// Notifier receives human-readable status messages.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// IDGenerator produces record identifiers absent from existing.
type IDGenerator interface {
	Generate(existing map[string]struct{}) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
