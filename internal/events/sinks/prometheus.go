package sinks

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/web-archiver/internal/archive"
	"github.com/JakeFAU/web-archiver/internal/events"
)

// PrometheusSink exports transition metrics via Prometheus.
type PrometheusSink struct {
	transitions    *prometheus.CounterVec
	providerErrors *prometheus.CounterVec
	pending        *prometheus.GaugeVec

	tracker *pendingTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_transitions_total",
			Help: "Provider state transitions partitioned by provider and target status.",
		}, []string{"provider", "to"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_provider_errors_total",
			Help: "Provider failures partitioned by provider and failure code.",
		}, []string{"provider", "code"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "archiver_snapshots_pending",
			Help: "Snapshot requests sent and not yet resolved, per provider.",
		}, []string{"provider"}),
		tracker: newPendingTracker(),
	}
	for _, collector := range []prometheus.Collector{s.transitions, s.providerErrors, s.pending} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register transition collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. It is safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		s.transitions.WithLabelValues(evt.Provider, string(evt.To)).Inc()
		if evt.To == archive.StatusError {
			s.providerErrors.WithLabelValues(evt.Provider, strconv.Itoa(evt.ErrorCode)).Inc()
		}
		key := pendingKey{record: evt.RecordID, provider: evt.Provider}
		if evt.To == archive.StatusRequested {
			if s.tracker.start(key) {
				s.pending.WithLabelValues(evt.Provider).Inc()
			}
			continue
		}
		if s.tracker.complete(key) {
			s.pending.WithLabelValues(evt.Provider).Dec()
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type pendingKey struct {
	record   string
	provider string
}

type pendingTracker struct {
	mu      sync.Mutex
	pending map[pendingKey]struct{}
}

func newPendingTracker() *pendingTracker {
	return &pendingTracker{pending: make(map[pendingKey]struct{})}
}

func (t *pendingTracker) start(key pendingKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[key]; ok {
		return false
	}
	t.pending[key] = struct{}{}
	return true
}

func (t *pendingTracker) complete(key pendingKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[key]; !ok {
		return false
	}
	delete(t.pending, key)
	return true
}
