package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/web-archiver/internal/archive"
	"github.com/JakeFAU/web-archiver/internal/metrics"
)

const (
	defaultDebounce     = 300 * time.Millisecond
	defaultFlushTimeout = 30 * time.Second
)

// Backend persists the encoded store document. Read must return an error
// wrapping fs.ErrNotExist when nothing has been written yet.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// Config controls Store behavior.
type Config struct {
	// Providers lists the providers every record must carry state for.
	Providers []string
	// Debounce is the quiescence window before a background flush.
	Debounce time.Duration
	// FlushTimeout bounds background flushes triggered by the debounce timer.
	FlushTimeout time.Duration
}

// Store is the sole owner of the archive record map. It is safe for
// concurrent use.
type Store struct {
	backend Backend
	ids     archive.IDGenerator
	clock   archive.Clock
	cfg     Config
	logger  *zap.Logger

	mu      sync.Mutex
	records map[string]*archive.Record
	byURL   map[string]string
	taken   map[string]struct{}
	version uint64
	timer   *time.Timer
	closed  bool

	flushMu sync.Mutex
	written uint64
}

// New constructs an empty Store. Call Load to read existing records.
func New(backend Backend, ids archive.IDGenerator, clock archive.Clock, cfg Config, logger *zap.Logger) *Store {
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaultFlushTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		ids:     ids,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
		records: make(map[string]*archive.Record),
		byURL:   make(map[string]string),
		taken:   make(map[string]struct{}),
	}
}

// Load replaces the in-memory state with the backend document. A missing
// document yields an empty store; an unparsable one fails with
// archive.ErrCorruptStore and leaves the current state untouched.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.backend.Read(ctx)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		data = nil
	case err != nil:
		return fmt.Errorf("read store: %w", err)
	}
	records, err := Decode(data)
	if err != nil {
		return err
	}

	byID := make(map[string]*archive.Record, len(records))
	byURL := make(map[string]string, len(records))
	taken := make(map[string]struct{}, len(records))
	for i := range records {
		rec := records[i]
		if other, dup := byURL[rec.URL]; dup {
			return fmt.Errorf("%w: records %s and %s share url %q", archive.ErrCorruptStore, other, rec.ID, rec.URL)
		}
		s.fillProviders(&rec)
		byID[rec.ID] = &rec
		byURL[rec.URL] = rec.ID
		taken[rec.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records, s.byURL, s.taken = byID, byURL, taken
	metrics.SetStoredRecords(len(byID))
	s.logger.Info("archive store loaded", zap.Int("records", len(byID)))
	return nil
}

// GetOrCreate returns the record for url, creating it with every configured
// provider in NotStarted when absent. The boolean reports creation.
func (s *Store) GetOrCreate(url string) (archive.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byURL[url]; ok {
		rec := s.records[id]
		if s.fillProviders(rec) {
			s.touchLocked()
		}
		return rec.Clone(), false, nil
	}

	id, err := s.ids.Generate(s.taken)
	if err != nil {
		return archive.Record{}, false, fmt.Errorf("generate record id: %w", err)
	}
	rec := &archive.Record{
		ID:        id,
		URL:       url,
		CreatedAt: s.clock.Now().UTC(),
		Providers: make(map[string]archive.ProviderState, len(s.cfg.Providers)),
	}
	s.fillProviders(rec)
	s.records[id] = rec
	s.byURL[url] = id
	s.taken[id] = struct{}{}
	s.touchLocked()
	metrics.SetStoredRecords(len(s.records))
	return rec.Clone(), true, nil
}

// SetStatus replaces one provider state and returns the previous one. The
// error code is cleared unless the status is Error, the location unless it
// is Archived.
func (s *Store) SetStatus(id, provider string, state archive.ProviderState) (archive.ProviderState, error) {
	if !state.Status.Valid() {
		return archive.ProviderState{}, fmt.Errorf("set status: unknown status %q", state.Status)
	}
	state = state.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return archive.ProviderState{}, fmt.Errorf("set status %s: %w", id, archive.ErrRecordNotFound)
	}
	prev := rec.State(provider)
	if existing, ok := rec.Providers[provider]; ok && existing == state {
		return prev, nil
	}
	rec.Providers[provider] = state
	s.touchLocked()
	return prev, nil
}

// Reconcile resets every Requested or Error provider state to NotStarted and
// returns how many were reset.
func (s *Store) Reconcile() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	reset := 0
	for _, rec := range s.records {
		for name, st := range rec.Providers {
			if st.Status == archive.StatusRequested || st.Status == archive.StatusError {
				rec.Providers[name] = archive.ProviderState{Status: archive.StatusNotStarted}
				reset++
			}
		}
	}
	if reset > 0 {
		s.touchLocked()
	}
	return reset
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(id string) (archive.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return archive.Record{}, fmt.Errorf("get %s: %w", id, archive.ErrRecordNotFound)
	}
	return rec.Clone(), nil
}

// List returns copies of all records ordered by creation time.
func (s *Store) List() []archive.Record {
	s.mu.Lock()
	out := s.snapshotLocked()
	s.mu.Unlock()
	sortRecords(out)
	return out
}

// Stats counts provider states by status across all records.
func (s *Store) Stats() map[archive.Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[archive.Status]int{}
	for _, rec := range s.records {
		for _, st := range rec.Providers {
			out[st.Status]++
		}
	}
	return out
}

// Flush writes the current state immediately, superseding any pending
// debounce timer. Flushes are serialized and a flush with no mutations since
// the last successful write does nothing.
func (s *Store) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	version := s.version
	if version == s.written {
		s.mu.Unlock()
		return nil
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	start := time.Now()
	data, err := Encode(snapshot)
	if err == nil {
		err = s.backend.Write(ctx, data)
	}
	if err != nil {
		metrics.ObserveStoreFlush("error", time.Since(start))
		return fmt.Errorf("flush store: %w", err)
	}
	metrics.ObserveStoreFlush("ok", time.Since(start))
	s.written = version
	s.logger.Debug("archive store flushed", zap.Int("records", len(snapshot)), zap.Int("bytes", len(data)))
	return nil
}

// Close flushes pending mutations and stops the debounce timer.
func (s *Store) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	return err
}

// touchLocked records a mutation and re-arms the debounce timer. Callers
// must hold s.mu so the reset is atomic with the mutation.
func (s *Store) touchLocked() {
	s.version++
	if s.timer == nil {
		s.timer = time.AfterFunc(s.cfg.Debounce, s.debouncedFlush)
		return
	}
	s.timer.Reset(s.cfg.Debounce)
}

func (s *Store) debouncedFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FlushTimeout)
	defer cancel()
	err := s.Flush(ctx)
	if err == nil {
		return
	}
	s.logger.Error("debounced flush failed; retrying", zap.Error(err), zap.Duration("retry_in", s.cfg.Debounce))

	// A failed flush leaves the mutations pending, so re-arm the timer even
	// when nothing else touches the store.
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && s.timer != nil {
		s.timer.Reset(s.cfg.Debounce)
	}
}

func (s *Store) snapshotLocked() []archive.Record {
	out := make([]archive.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out
}

// fillProviders adds NotStarted entries for configured providers the record
// lacks and reports whether anything was added.
func (s *Store) fillProviders(rec *archive.Record) bool {
	if rec.Providers == nil {
		rec.Providers = make(map[string]archive.ProviderState, len(s.cfg.Providers))
	}
	added := false
	for _, name := range s.cfg.Providers {
		if _, ok := rec.Providers[name]; !ok {
			rec.Providers[name] = archive.ProviderState{Status: archive.StatusNotStarted}
			added = true
		}
	}
	return added
}

// ProviderNames returns the sorted provider keys present on rec.
func ProviderNames(rec archive.Record) []string {
	names := make([]string, 0, len(rec.Providers))
	for name := range rec.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
