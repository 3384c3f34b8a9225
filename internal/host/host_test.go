package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/web-archiver/internal/archive"
	"github.com/JakeFAU/web-archiver/internal/orchestrator"
)

func TestIsArchivableURL(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"https://example.com":                           true,
		"http://www.example.org/path?q=1&x=y#frag":      true,
		"https://sub.domain.co.uk/a/b/c.html":           true,
		"https://example.com/with space":                false,
		"ftp://example.com":                             false,
		"see https://example.com":                       false,
		"https://localhost":                             false,
		"example.com":                                   false,
		"":                                              false,
		"https://example.com/\nhttps://example.org/":    false,
		"https://user@example.com:8443/path_(thing)~ok": true,
	}
	for in, want := range tests {
		assert.Equal(t, want, IsArchivableURL(in), in)
	}
}

func TestFormatLink(t *testing.T) {
	t.Parallel()

	assert.Equal(t, " [(📁)](https://web.archive.org/web/https://a.b)", FormatLink("", "https://web.archive.org/web/https://a.b"))
	assert.Equal(t, " [archived](https://archive.ph/x)", FormatLink("archived", "https://archive.ph/x"))
}

func TestTextBuffer(t *testing.T) {
	t.Parallel()

	b := NewTextBuffer("héllo")
	assert.Equal(t, 5, b.Cursor())
	b.MoveCursor(-3)
	b.InsertAtCursor("XY")
	assert.Equal(t, "héXYllo", b.String())
	assert.Equal(t, 2, b.Cursor())

	b.MoveCursor(-100)
	assert.Equal(t, 0, b.Cursor())
	b.MoveCursor(100)
	assert.Equal(t, 7, b.Cursor())

	b.Paste("!")
	assert.Equal(t, "héXYllo!", b.String())
	assert.Equal(t, 8, b.Cursor())
}

type fakeArchiver struct {
	archived  []string
	synced    []string
	links     []orchestrator.ProviderLink
	syncErr   error
	archiveID string
}

func (f *fakeArchiver) Archive(_ context.Context, url string) (string, error) {
	f.archived = append(f.archived, url)
	return f.archiveID, nil
}

func (f *fakeArchiver) ArchiveSync(ctx context.Context, url string) (archive.Record, error) {
	f.synced = append(f.synced, url)
	if f.syncErr != nil {
		return archive.Record{}, f.syncErr
	}
	return archive.Record{ID: f.archiveID, URL: url}, ctx.Err()
}

func (f *fakeArchiver) Links(string) ([]orchestrator.ProviderLink, error) {
	return f.links, nil
}

func TestHandlePasteInsertsOneLinkPerProvider(t *testing.T) {
	t.Parallel()

	arch := &fakeArchiver{archiveID: "Ab12Cd", links: []orchestrator.ProviderLink{
		{Provider: "wayback", Location: "https://web.archive.org/web/https://example.com/a"},
		{Provider: "archivetoday", Location: "https://archive.ph/newest/https://example.com/a", Placeholder: true},
	}}
	h := NewPasteHandler(arch, WithLinkText("[arch]"))

	buf := NewTextBuffer("see ")
	buf.Paste("https://example.com/a")
	inserted, err := h.HandlePaste(context.Background(), buf, "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t,
		"see https://example.com/a [[arch]](https://web.archive.org/web/https://example.com/a) [[arch]](https://archive.ph/newest/https://example.com/a)",
		buf.String())
	assert.Equal(t, []string{"https://example.com/a"}, arch.archived)
	assert.Empty(t, arch.synced)
}

func TestHandlePasteIgnoresNonURLs(t *testing.T) {
	t.Parallel()

	arch := &fakeArchiver{}
	buf := NewTextBuffer("")
	inserted, err := NewPasteHandler(arch).HandlePaste(context.Background(), buf, "just some text")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Empty(t, arch.archived)
	assert.Empty(t, buf.String())
}

func TestHandlePasteWaitFallsBackOnDeadline(t *testing.T) {
	t.Parallel()

	arch := &fakeArchiver{archiveID: "Zz99Yy", syncErr: context.DeadlineExceeded,
		links: []orchestrator.ProviderLink{{Provider: "wayback", Location: "https://web.archive.org/web/https://example.com/b"}}}
	h := NewPasteHandler(arch, WithWait(10*time.Millisecond))

	buf := NewTextBuffer("")
	inserted, err := h.HandlePaste(context.Background(), buf, "https://example.com/b")
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, []string{"https://example.com/b"}, arch.synced)
	assert.Equal(t, []string{"https://example.com/b"}, arch.archived)
	assert.Equal(t, " [(📁)](https://web.archive.org/web/https://example.com/b)", buf.String())
}

func TestHandlePastePropagatesArchiveErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("store unavailable")
	arch := &fakeArchiver{syncErr: boom}
	h := NewPasteHandler(arch, WithWait(time.Second))

	_, err := h.HandlePaste(context.Background(), NewTextBuffer(""), "https://example.com/c")
	require.ErrorIs(t, err, boom)
}
