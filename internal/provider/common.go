package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/web-archiver/internal/archive"
	"github.com/JakeFAU/web-archiver/internal/metrics"
)

const (
	phaseCheck   = "check"
	phaseRequest = "request"
)

// caller wraps a transport with per-provider metrics.
type caller struct {
	name      string
	transport archive.Transport
}

func (c caller) do(ctx context.Context, phase string, req archive.Request) (archive.Response, error) {
	start := time.Now()
	resp, err := c.transport.Do(ctx, req)
	metrics.ObserveProviderCall(c.name, phase, outcome(phase, err), time.Since(start))
	return resp, err
}

// classify maps a failed check to ErrSnapshotNotFound on 404 and to a
// *archive.ProviderError otherwise.
func (c caller) classify(err error) error {
	var se *archive.HTTPStatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return archive.ErrSnapshotNotFound
	}
	return archive.NewProviderError(c.name, err)
}

func (c caller) fail(err error) error {
	return archive.NewProviderError(c.name, err)
}

func outcome(phase string, err error) string {
	if err == nil {
		return "ok"
	}
	var se *archive.HTTPStatusError
	if phase == phaseCheck && errors.As(err, &se) && se.Code == http.StatusNotFound {
		return "not_found"
	}
	return "error"
}

func trimBase(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}

// resolve returns ref resolved against base, or "" when ref is empty or invalid.
func resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return b.ResolveReference(r).String()
}

// refreshTarget extracts the URL from a Refresh header such as "0;url=https://...".
func refreshTarget(header string) string {
	_, target, ok := strings.Cut(header, ";")
	if !ok {
		return ""
	}
	target = strings.TrimSpace(target)
	if len(target) >= 4 && strings.EqualFold(target[:4], "url=") {
		target = target[4:]
	}
	return strings.Trim(target, `"' `)
}
