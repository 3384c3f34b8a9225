// Package collyfetcher implements archive.Transport using gocolly.
package collyfetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/web-archiver/internal/archive"
)

const defaultTimeout = 30 * time.Second

// Waiter throttles outbound requests per URL.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Limiter is optional; nil disables throttling.
	Limiter Waiter
	// Transport overrides the pooled HTTP transport (tests).
	Transport http.RoundTripper
}

// Transport performs provider calls through a Colly collector.
type Transport struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Transport. Clones share the base collector's HTTP client, so
// the timeout and round tripper are configured once here.
func New(cfg Config) *Transport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	rt := cfg.Transport
	if rt == nil {
		rt = newHTTPTransport()
	}
	c.WithTransport(rt)
	c.SetRequestTimeout(cfg.Timeout)

	return &Transport{cfg: cfg, baseCollector: c}
}

// Do executes one request. Responses with status 400 or above are returned
// together with an *archive.HTTPStatusError.
func (t *Transport) Do(ctx context.Context, req archive.Request) (archive.Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if t.cfg.Limiter != nil {
		if err := t.cfg.Limiter.Wait(ctx, req.URL); err != nil {
			return archive.Response{}, err
		}
	}

	var (
		result   archive.Response
		fetchErr error
	)
	collector := t.baseCollector.Clone()
	collector.Context = ctx
	t.configureCollectorHooks(collector, req, &result, &fetchErr)

	if err := t.runCollector(ctx, collector, req, &fetchErr); err != nil {
		return archive.Response{}, err
	}
	if result.StatusCode >= http.StatusBadRequest {
		return result, &archive.HTTPStatusError{Code: result.StatusCode, URL: req.URL}
	}
	return result, nil
}

func (t *Transport) configureCollectorHooks(
	hooks collectorHooks,
	req archive.Request,
	result *archive.Response,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		copyHeaders(req.Header, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = archive.Response{
			StatusCode: r.StatusCode,
			URL:        r.Request.URL.String(),
			Body:       append([]byte(nil), r.Body...),
		}
		if r.Headers != nil {
			result.Header = r.Headers.Clone()
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		*fetchErr = err
	})
}

func (t *Transport) runCollector(ctx context.Context, collector *colly.Collector, req archive.Request, fetchErr *error) error {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	done := make(chan error, 1)
	go func() {
		done <- collector.Request(req.Method, req.URL, body, nil, nil)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly %s %s canceled: %w", req.Method, req.URL, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly %s %s failed: %w", req.Method, req.URL, err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func copyHeaders(h http.Header, r *colly.Request) {
	for key, values := range h {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
