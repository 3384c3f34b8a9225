package provider

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/JakeFAU/web-archiver/internal/archive"
)

const (
	defaultArchiveTodayBase = "https://archive.ph"
	noResultsMarker         = "No results"
)

// ArchiveToday drives archive.today and its mirrors.
type ArchiveToday struct {
	caller
	base string
}

// NewArchiveToday returns an ArchiveToday driver.
func NewArchiveToday(transport archive.Transport, base string) *ArchiveToday {
	if base = trimBase(base); base == "" {
		base = defaultArchiveTodayBase
	}
	return &ArchiveToday{caller: caller{name: ArchiveTodayName, transport: transport}, base: base}
}

// Name implements archive.Driver.
func (a *ArchiveToday) Name() string { return ArchiveTodayName }

// DisplayName implements archive.Driver.
func (a *ArchiveToday) DisplayName() string { return "archive.today" }

// CheckExisting looks up the newest snapshot. archive.today reports absence
// either with a 404 or with a 200 page that says "No results".
func (a *ArchiveToday) CheckExisting(ctx context.Context, target string) (string, error) {
	lookup := a.PlaceholderLocation(target)
	resp, err := a.do(ctx, phaseCheck, archive.Request{Method: http.MethodGet, URL: lookup})
	if err != nil {
		return "", a.classify(err)
	}
	if hasNoResults(resp.Body) {
		return "", archive.ErrSnapshotNotFound
	}
	if resp.URL != "" && resp.URL != lookup {
		return resp.URL, nil
	}
	return lookup, nil
}

// RequestSnapshot submits target for capture. The snapshot location comes
// from the Refresh or Location header, or the final redirect URL.
func (a *ArchiveToday) RequestSnapshot(ctx context.Context, target string) (string, error) {
	submit := a.base + "/submit/?url=" + url.QueryEscape(target)
	resp, err := a.do(ctx, phaseRequest, archive.Request{Method: http.MethodGet, URL: submit})
	if err != nil {
		return "", a.fail(err)
	}
	if loc := resolve(a.base, refreshTarget(resp.Header.Get("Refresh"))); loc != "" {
		return loc, nil
	}
	if loc := resolve(a.base, resp.Header.Get("Location")); loc != "" {
		return loc, nil
	}
	if resp.URL != "" && !strings.Contains(resp.URL, "/submit/") {
		return resp.URL, nil
	}
	return a.PlaceholderLocation(target), nil
}

// PlaceholderLocation points at the newest-snapshot redirect for target.
func (a *ArchiveToday) PlaceholderLocation(target string) string {
	return a.base + "/newest/" + target
}

// hasNoResults reports whether the page's visible text carries the
// "No results" marker.
func hasNoResults(body []byte) bool {
	z := html.NewTokenizer(bytes.NewReader(body))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken:
			if name, _ := z.TagName(); isHiddenTag(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isHiddenTag(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 && strings.Contains(string(z.Text()), noResultsMarker) {
				return true
			}
		}
	}
}

func isHiddenTag(name []byte) bool {
	switch string(name) {
	case "script", "style":
		return true
	default:
		return false
	}
}
