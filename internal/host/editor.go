// Package host adapts the orchestrator to text-editing surfaces: it spots
// pasted URLs and inserts links to their archived copies next to them.
package host

import (
	"sync"
	"unicode/utf8"
)

// Editor is the text insertion surface links are written to. Offsets are in
// runes.
type Editor interface {
	// InsertAtCursor inserts text at the cursor without moving it.
	InsertAtCursor(text string)
	// MoveCursor moves the cursor by offset, clamped to the document.
	MoveCursor(offset int)
}

// TextBuffer is an in-memory Editor.
type TextBuffer struct {
	mu     sync.Mutex
	text   []rune
	cursor int
}

// NewTextBuffer returns a buffer holding text with the cursor at its end.
func NewTextBuffer(text string) *TextBuffer {
	r := []rune(text)
	return &TextBuffer{text: r, cursor: len(r)}
}

// InsertAtCursor implements Editor.
func (b *TextBuffer) InsertAtCursor(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ins := []rune(text)
	out := make([]rune, 0, len(b.text)+len(ins))
	out = append(out, b.text[:b.cursor]...)
	out = append(out, ins...)
	b.text = append(out, b.text[b.cursor:]...)
}

// MoveCursor implements Editor.
func (b *TextBuffer) MoveCursor(offset int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursor = min(max(b.cursor+offset, 0), len(b.text))
}

// Paste inserts text the way an editor's native paste does, leaving the
// cursor after it.
func (b *TextBuffer) Paste(text string) {
	b.InsertAtCursor(text)
	b.MoveCursor(utf8.RuneCountInString(text))
}

// Cursor returns the cursor offset.
func (b *TextBuffer) Cursor() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

// String returns the buffer contents.
func (b *TextBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.text)
}
