package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/JakeFAU/web-archiver/internal/archive"
)

// ArchiveBox drives a self-hosted ArchiveBox instance.
type ArchiveBox struct {
	caller
	base string
}

// NewArchiveBox returns an ArchiveBox driver. The instance base URL is required.
func NewArchiveBox(transport archive.Transport, base string) (*ArchiveBox, error) {
	base = trimBase(base)
	if base == "" {
		return nil, fmt.Errorf("%s: endpoint is required", ArchiveBoxName)
	}
	if u, err := url.Parse(base); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%s: invalid endpoint %q", ArchiveBoxName, base)
	}
	return &ArchiveBox{caller: caller{name: ArchiveBoxName, transport: transport}, base: base}, nil
}

// Name implements archive.Driver.
func (b *ArchiveBox) Name() string { return ArchiveBoxName }

// DisplayName implements archive.Driver.
func (b *ArchiveBox) DisplayName() string { return "ArchiveBox" }

// CheckExisting probes the snapshot page for target.
func (b *ArchiveBox) CheckExisting(ctx context.Context, target string) (string, error) {
	loc := b.PlaceholderLocation(target)
	if _, err := b.do(ctx, phaseCheck, archive.Request{Method: http.MethodGet, URL: loc}); err != nil {
		return "", b.classify(err)
	}
	return loc, nil
}

// RequestSnapshot submits target through the add form with depth 0.
func (b *ArchiveBox) RequestSnapshot(ctx context.Context, target string) (string, error) {
	form := url.Values{"url": {target}, "depth": {"0"}}
	_, err := b.do(ctx, phaseRequest, archive.Request{
		Method: http.MethodPost,
		URL:    b.base + "/add/",
		Header: http.Header{"Content-Type": {"application/x-www-form-urlencoded"}},
		Body:   []byte(form.Encode()),
	})
	if err != nil {
		return "", b.fail(err)
	}
	return b.PlaceholderLocation(target), nil
}

// PlaceholderLocation is the instance's snapshot page for target.
func (b *ArchiveBox) PlaceholderLocation(target string) string {
	return b.base + "/archive/" + target
}
