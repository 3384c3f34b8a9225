// Package orchestrator drives every enabled provider through the
// check-then-request protocol for each archived URL and records the outcome
// in the store.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/web-archiver/internal/archive"
	"github.com/JakeFAU/web-archiver/internal/events"
	"github.com/JakeFAU/web-archiver/internal/id"
	"github.com/JakeFAU/web-archiver/internal/metrics"
)

const defaultCallTimeout = 30 * time.Second

// ErrClosed is returned by Archive after Close has been called.
var ErrClosed = errors.New("orchestrator closed")

// Store is the subset of store.Store the orchestrator needs.
type Store interface {
	GetOrCreate(url string) (archive.Record, bool, error)
	SetStatus(id, provider string, state archive.ProviderState) (archive.ProviderState, error)
	Get(id string) (archive.Record, error)
	Reconcile() int
	Flush(ctx context.Context) error
}

// Config wires optional collaborators. Zero values fall back to no-ops.
type Config struct {
	// CallTimeout bounds each individual provider call.
	CallTimeout time.Duration
	Notifier    archive.Notifier
	Events      events.Emitter
	Clock       archive.Clock
	Logger      *zap.Logger
}

// Orchestrator schedules provider tasks. It is safe for concurrent use.
type Orchestrator struct {
	store    Store
	drivers  []archive.Driver
	byName   map[string]archive.Driver
	notifier archive.Notifier
	events   events.Emitter
	clock    archive.Clock
	logger   *zap.Logger
	timeout  time.Duration

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	inflight map[taskKey]chan struct{}
}

type taskKey struct {
	recordID string
	provider string
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, archive.Notification) error { return nil }

// New builds an Orchestrator over store and drivers.
func New(store Store, drivers []archive.Driver, cfg Config) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("orchestrator requires a store")
	}
	if len(drivers) == 0 {
		return nil, errors.New("orchestrator requires at least one provider")
	}
	byName := make(map[string]archive.Driver, len(drivers))
	for _, d := range drivers {
		if _, dup := byName[d.Name()]; dup {
			return nil, fmt.Errorf("provider %q registered twice", d.Name())
		}
		byName[d.Name()] = d
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.Notifier == nil {
		cfg.Notifier = noopNotifier{}
	}
	if cfg.Events == nil {
		cfg.Events = events.Discard
	}
	if cfg.Clock == nil {
		cfg.Clock = wallClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:    store,
		drivers:  drivers,
		byName:   byName,
		notifier: cfg.Notifier,
		events:   cfg.Events,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		timeout:  cfg.CallTimeout,
		base:     base,
		cancel:   cancel,
		inflight: make(map[taskKey]chan struct{}),
	}, nil
}

// Drivers returns the enabled drivers in configuration order.
func (o *Orchestrator) Drivers() []archive.Driver {
	return append([]archive.Driver(nil), o.drivers...)
}

// Archive registers rawURL and starts one background task per provider that
// is not yet archived. It returns as soon as the record exists; provider
// work outlives ctx and is bounded only by the per-call timeout.
func (o *Orchestrator) Archive(ctx context.Context, rawURL string) (string, error) {
	rec, _, err := o.start(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// ArchiveSync is Archive followed by waiting for that record's provider
// tasks, or ctx, whichever finishes first. Tasks keep running if ctx ends.
func (o *Orchestrator) ArchiveSync(ctx context.Context, rawURL string) (archive.Record, error) {
	rec, done, err := o.start(ctx, rawURL)
	if err != nil {
		return archive.Record{}, err
	}
	for _, ch := range done {
		select {
		case <-ch:
		case <-ctx.Done():
			return archive.Record{}, ctx.Err()
		}
	}
	return o.store.Get(rec.ID)
}

// Result is the outcome of one URL in ArchiveAll.
type Result struct {
	URL    string
	Record archive.Record
	Err    error
}

// ArchiveAll runs ArchiveSync for every URL with at most limit URLs in
// flight. Per-URL failures are reported in the results; the returned error
// is only set when ctx ends first.
func (o *Orchestrator) ArchiveAll(ctx context.Context, urls []string, limit int) ([]Result, error) {
	results := make([]Result, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, u := range urls {
		g.Go(func() error {
			rec, err := o.ArchiveSync(gctx, u)
			results[i] = Result{URL: u, Record: rec, Err: err}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}
	return results, g.Wait()
}

// Wait blocks until every scheduled provider task has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close stops accepting work, waits for running tasks until ctx expires,
// aborts whatever is left and flushes the store.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		o.logger.Warn("aborting in-flight provider calls", zap.Error(ctx.Err()))
		o.cancel()
		<-done
	}
	o.cancel()

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()
	return o.store.Flush(flushCtx)
}

// Reconcile resets interrupted provider states and persists the result. It
// must run before any task is scheduled.
func (o *Orchestrator) Reconcile(ctx context.Context) (int, error) {
	n := o.store.Reconcile()
	if n > 0 {
		o.logger.Info("reset interrupted provider states", zap.Int("count", n))
	}
	if err := o.store.Flush(ctx); err != nil {
		return n, fmt.Errorf("reconcile: %w", err)
	}
	return n, nil
}

// Link returns the location to show for a provider of a record: the stored
// snapshot when archived, the provider's placeholder otherwise.
func (o *Orchestrator) Link(recordID, provider string) (string, error) {
	d, ok := o.byName[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", archive.ErrUnknownProvider, provider)
	}
	rec, err := o.store.Get(recordID)
	if err != nil {
		return "", err
	}
	return linkFor(rec, d), nil
}

// ProviderLink describes one provider's view of a record.
type ProviderLink struct {
	Provider    string         `json:"provider"`
	DisplayName string         `json:"displayName"`
	Status      archive.Status `json:"status"`
	Location    string         `json:"location"`
	Placeholder bool           `json:"placeholder"`
	ErrorCode   int            `json:"errorCode,omitempty"`
}

// Links returns one entry per enabled provider, in configuration order.
func (o *Orchestrator) Links(recordID string) ([]ProviderLink, error) {
	rec, err := o.store.Get(recordID)
	if err != nil {
		return nil, err
	}
	out := make([]ProviderLink, 0, len(o.drivers))
	for _, d := range o.drivers {
		st := rec.State(d.Name())
		out = append(out, ProviderLink{
			Provider:    d.Name(),
			DisplayName: d.DisplayName(),
			Status:      st.Status,
			Location:    linkFor(rec, d),
			Placeholder: st.Status != archive.StatusArchived || st.Location == "",
			ErrorCode:   st.ErrorCode,
		})
	}
	return out, nil
}

func linkFor(rec archive.Record, d archive.Driver) string {
	st := rec.State(d.Name())
	if st.Status == archive.StatusArchived && st.Location != "" {
		return st.Location
	}
	return d.PlaceholderLocation(rec.URL)
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", archive.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", archive.ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", archive.ErrInvalidURL)
	}
	return trimmed, nil
}

// start creates the record and schedules its tasks. The returned channels
// close when each pending provider task for the record finishes.
func (o *Orchestrator) start(ctx context.Context, rawURL string) (archive.Record, []chan struct{}, error) {
	if err := ctx.Err(); err != nil {
		return archive.Record{}, nil, err
	}
	target, err := ValidateURL(rawURL)
	if err != nil {
		return archive.Record{}, nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return archive.Record{}, nil, ErrClosed
	}

	rec, created, err := o.store.GetOrCreate(target)
	if err != nil {
		return archive.Record{}, nil, fmt.Errorf("register %s: %w", target, err)
	}
	runID, err := id.NewRunID()
	if err != nil {
		return archive.Record{}, nil, err
	}
	logger := o.logger.With(zap.String("run_id", runID), zap.String("record_id", rec.ID))
	logger.Info("archive requested", zap.String("url", target), zap.Bool("created", created))

	var done []chan struct{}
	for _, d := range o.drivers {
		key := taskKey{recordID: rec.ID, provider: d.Name()}
		if ch, running := o.inflight[key]; running {
			done = append(done, ch)
			continue
		}
		if rec.State(d.Name()).Status == archive.StatusArchived {
			continue
		}
		ch := make(chan struct{})
		o.inflight[key] = ch
		done = append(done, ch)

		o.wg.Add(1)
		metrics.IncInFlight()
		go func(d archive.Driver) {
			defer func() {
				o.mu.Lock()
				delete(o.inflight, key)
				o.mu.Unlock()
				close(ch)
				metrics.DecInFlight()
				o.wg.Done()
			}()
			o.run(runID, rec, d, logger.With(zap.String("provider", d.Name())))
		}(d)
	}
	return rec, done, nil
}

// run executes the check-then-request protocol for one (record, provider)
// pair.
func (o *Orchestrator) run(runID string, rec archive.Record, d archive.Driver, logger *zap.Logger) {
	location, err := o.call(d.CheckExisting, rec.URL)
	switch {
	case err == nil:
		logger.Debug("existing snapshot found")
		o.succeed(runID, rec, d, location)
		return
	case o.base.Err() != nil:
		logger.Warn("availability check aborted by shutdown", zap.Error(err))
		return
	case !errors.Is(err, archive.ErrSnapshotNotFound):
		logger.Warn("availability check failed", zap.Error(err))
		o.fail(runID, rec, d, err)
		return
	}

	o.transition(runID, rec, d.Name(), archive.ProviderState{Status: archive.StatusRequested})
	o.notify(queuedNotification(rec, d))

	location, err = o.call(d.RequestSnapshot, rec.URL)
	if err != nil && o.base.Err() != nil {
		// The state stays requested so the next startup reconciles it.
		logger.Warn("snapshot request aborted by shutdown", zap.Error(err))
		return
	}
	if err != nil {
		logger.Warn("snapshot request failed", zap.Error(err))
		o.fail(runID, rec, d, err)
		return
	}
	logger.Info("snapshot requested", zap.String("location", location))
	o.succeed(runID, rec, d, location)
}

func (o *Orchestrator) call(fn func(context.Context, string) (string, error), target string) (string, error) {
	ctx, cancel := context.WithTimeout(o.base, o.timeout)
	defer cancel()
	return fn(ctx, target)
}

func (o *Orchestrator) succeed(runID string, rec archive.Record, d archive.Driver, location string) {
	if location == "" {
		location = d.PlaceholderLocation(rec.URL)
	}
	o.transition(runID, rec, d.Name(), archive.ProviderState{Status: archive.StatusArchived, Location: location})
	o.notify(archivedNotification(rec, d, location))
}

func (o *Orchestrator) fail(runID string, rec archive.Record, d archive.Driver, err error) {
	code := archive.FailureCode(err)
	o.transition(runID, rec, d.Name(), archive.ProviderState{Status: archive.StatusError, ErrorCode: code})
	o.notify(errorNotification(rec, d, code))
}

func (o *Orchestrator) transition(runID string, rec archive.Record, provider string, state archive.ProviderState) {
	prev, err := o.store.SetStatus(rec.ID, provider, state)
	if err != nil {
		o.logger.Error("record provider state",
			zap.String("record_id", rec.ID), zap.String("provider", provider), zap.Error(err))
		return
	}
	state = state.Normalize()
	o.events.Emit(events.Event{
		RunID:     runID,
		RecordID:  rec.ID,
		URL:       rec.URL,
		Provider:  provider,
		From:      prev.Status,
		To:        state.Status,
		Location:  state.Location,
		ErrorCode: state.ErrorCode,
		TS:        o.clock.Now().UTC(),
	})
}

func (o *Orchestrator) notify(n archive.Notification) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(o.base), o.timeout)
	defer cancel()
	if err := o.notifier.Notify(ctx, n); err != nil {
		o.logger.Warn("notification failed",
			zap.String("record_id", n.RecordID), zap.String("provider", n.Provider), zap.Error(err))
	}
}
