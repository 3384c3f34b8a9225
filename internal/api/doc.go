// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/archives to archive a URL with every enabled provider.
//   - GET /v1/archives, /v1/archives/{id} and /v1/archives/{id}/links to
//     inspect records and the links to show for them.
//   - GET /v1/archives/{id}/history for the transition log kept by the
//     HistoryReader, when one is configured.
package api
