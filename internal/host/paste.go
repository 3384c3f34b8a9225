package host

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/web-archiver/internal/archive"
	"github.com/JakeFAU/web-archiver/internal/orchestrator"
)

// DefaultLinkText is shown for inserted links when none is configured.
const DefaultLinkText = "(📁)"

var archivableURL = regexp.MustCompile(
	`^https?://(?:www\.)?[-a-zA-Z0-9@:%._\+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b(?:[-a-zA-Z0-9()@:%_\+.~#?&/=]*)$`)

// IsArchivableURL reports whether pasted text is exactly one web URL.
func IsArchivableURL(text string) bool {
	return archivableURL.MatchString(text)
}

// FormatLink renders the markdown link inserted after a pasted URL.
func FormatLink(text, location string) string {
	if text == "" {
		text = DefaultLinkText
	}
	return fmt.Sprintf(" [%s](%s)", text, location)
}

// Archiver is the orchestrator surface used by PasteHandler.
type Archiver interface {
	Archive(ctx context.Context, url string) (string, error)
	ArchiveSync(ctx context.Context, url string) (archive.Record, error)
	Links(recordID string) ([]orchestrator.ProviderLink, error)
}

// PasteHandler archives pasted URLs and links their snapshots.
type PasteHandler struct {
	archiver Archiver
	linkText string
	wait     time.Duration
	logger   *zap.Logger
}

// PasteOption configures a PasteHandler.
type PasteOption func(*PasteHandler)

// WithLinkText sets the visible text of inserted links.
func WithLinkText(text string) PasteOption {
	return func(h *PasteHandler) {
		if strings.TrimSpace(text) != "" {
			h.linkText = text
		}
	}
}

// WithWait makes HandlePaste wait up to d for providers to resolve so that
// links point at real snapshots instead of placeholders.
func WithWait(d time.Duration) PasteOption {
	return func(h *PasteHandler) { h.wait = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) PasteOption {
	return func(h *PasteHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewPasteHandler returns a PasteHandler backed by archiver.
func NewPasteHandler(archiver Archiver, opts ...PasteOption) *PasteHandler {
	h := &PasteHandler{archiver: archiver, linkText: DefaultLinkText, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandlePaste inspects pasted text that the host has already inserted before
// the cursor. When it is an archivable URL, the URL is archived and one link
// per enabled provider is inserted at the cursor. It reports whether links
// were inserted.
func (h *PasteHandler) HandlePaste(ctx context.Context, editor Editor, pasted string) (bool, error) {
	if !IsArchivableURL(pasted) {
		return false, nil
	}

	recordID, err := h.archive(ctx, pasted)
	if err != nil {
		return false, err
	}
	links, err := h.archiver.Links(recordID)
	if err != nil {
		return false, fmt.Errorf("resolve links for %s: %w", recordID, err)
	}
	for _, l := range links {
		text := FormatLink(h.linkText, l.Location)
		editor.InsertAtCursor(text)
		editor.MoveCursor(utf8.RuneCountInString(text))
	}
	return len(links) > 0, nil
}

func (h *PasteHandler) archive(ctx context.Context, pasted string) (string, error) {
	if h.wait <= 0 {
		return h.archiver.Archive(ctx, pasted)
	}
	waitCtx, cancel := context.WithTimeout(ctx, h.wait)
	defer cancel()
	rec, err := h.archiver.ArchiveSync(waitCtx, pasted)
	if err == nil {
		return rec.ID, nil
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	h.logger.Info("providers still running, inserting placeholder links", zap.String("url", pasted))
	return h.archiver.Archive(ctx, pasted)
}
