// Package sinks contains events.Sink implementations: structured logs,
// Prometheus counters, Postgres history and message publishing.
package sinks
