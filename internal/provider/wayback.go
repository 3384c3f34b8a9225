package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JakeFAU/web-archiver/internal/archive"
)

const (
	defaultWaybackWeb = "https://web.archive.org"
	defaultWaybackAPI = "https://archive.org"
)

// Wayback drives the Internet Archive Wayback Machine.
type Wayback struct {
	caller
	web string
	api string
}

// NewWayback returns a Wayback driver. Empty bases fall back to the public
// endpoints.
func NewWayback(transport archive.Transport, webBase, apiBase string) *Wayback {
	if webBase = trimBase(webBase); webBase == "" {
		webBase = defaultWaybackWeb
	}
	if apiBase = trimBase(apiBase); apiBase == "" {
		apiBase = defaultWaybackAPI
	}
	return &Wayback{caller: caller{name: WaybackName, transport: transport}, web: webBase, api: apiBase}
}

// Name implements archive.Driver.
func (w *Wayback) Name() string { return WaybackName }

// DisplayName implements archive.Driver.
func (w *Wayback) DisplayName() string { return "Internet Archive" }

type availability struct {
	ArchivedSnapshots struct {
		Closest *struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Status    string `json:"status"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

// CheckExisting queries the availability API. The API answers 200 with an
// empty archived_snapshots object when nothing is archived.
func (w *Wayback) CheckExisting(ctx context.Context, target string) (string, error) {
	resp, err := w.do(ctx, phaseCheck, archive.Request{
		Method: http.MethodGet,
		URL:    w.api + "/wayback/available?url=" + url.QueryEscape(target),
		Header: http.Header{"Accept": {"application/json"}},
	})
	if err != nil {
		return "", w.classify(err)
	}
	var body availability
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", &archive.ProviderError{
			Provider: WaybackName,
			Code:     archive.CodeUnreachable,
			Err:      fmt.Errorf("decode availability response: %w", err),
		}
	}
	closest := body.ArchivedSnapshots.Closest
	if closest == nil || !closest.Available || closest.URL == "" {
		return "", archive.ErrSnapshotNotFound
	}
	return strings.Replace(closest.URL, "http://", "https://", 1), nil
}

// RequestSnapshot triggers Save Page Now.
func (w *Wayback) RequestSnapshot(ctx context.Context, target string) (string, error) {
	saveURL := w.web + "/save/" + target
	resp, err := w.do(ctx, phaseRequest, archive.Request{Method: http.MethodGet, URL: saveURL})
	if err != nil {
		return "", w.fail(err)
	}
	if loc := resolve(w.web, resp.Header.Get("Content-Location")); loc != "" {
		return loc, nil
	}
	if resp.URL != "" && resp.URL != saveURL && strings.Contains(resp.URL, "/web/") {
		return resp.URL, nil
	}
	return w.PlaceholderLocation(target), nil
}

// PlaceholderLocation points at the Wayback calendar for target, which
// resolves to the newest snapshot once one exists.
func (w *Wayback) PlaceholderLocation(target string) string {
	return w.web + "/web/" + target
}
