// Package events carries provider state transitions from the orchestrator to
// pluggable sinks. A non-blocking hub batches events on a background goroutine
// and fans them out to logs, Prometheus, Postgres history or Pub/Sub.
package events
