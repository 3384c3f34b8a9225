// Package notify delivers human-readable archive status messages. Each
// notification arrives with verbose, terse and icon-only renderings; sinks
// pick one according to their configured verbosity.
package notify
