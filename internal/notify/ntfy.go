package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/web-archiver/internal/archive"
)

const userAgent = "web-archiver/1.0"

// NtfyNotifier pushes notifications to an ntfy topic URL.
type NtfyNotifier struct {
	endpoint  string
	client    *http.Client
	verbosity Verbosity
}

// NewNtfy builds an ntfy-backed notifier. When topic is empty a Noop is
// returned.
func NewNtfy(topic string, timeout time.Duration, verbosity Verbosity) archive.Notifier {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Noop{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NtfyNotifier{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		verbosity: verbosity,
	}
}

// Notify implements archive.Notifier.
func (n *NtfyNotifier) Notify(ctx context.Context, note archive.Notification) error {
	text, ok := n.verbosity.Select(note)
	if !ok {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", titleFor(note.Kind))
	req.Header.Set("Tags", strings.Join([]string{"web-archiver", note.Provider, string(note.Kind)}, ","))
	if note.Kind == archive.NotifyError {
		req.Header.Set("Priority", "high")
	}
	if note.Location != "" {
		req.Header.Set("Click", note.Location)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func titleFor(kind archive.NotificationKind) string {
	switch kind {
	case archive.NotifyQueued:
		return "Web Archiver - Requested"
	case archive.NotifyArchived:
		return "Web Archiver - Archived"
	case archive.NotifyError:
		return "Web Archiver - Error"
	default:
		return "Web Archiver"
	}
}
