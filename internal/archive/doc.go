// Package archive defines the record model, provider driver contracts, and
// error taxonomy shared by the store, the provider drivers, and the
// orchestrator.
package archive
