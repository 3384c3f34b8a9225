package events

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/JakeFAU/web-archiver/internal/archive"
)

// Event records one provider state transition for a record.
type Event struct {
	// RunID correlates every transition produced by one Archive call.
	RunID string `json:"runId"`
	// RecordID is the six-character store identifier.
	RecordID string `json:"recordId"`
	// URL is the archived source URL.
	URL string `json:"url"`
	// Provider names the driver that moved.
	Provider string `json:"provider"`
	// From is the state before the transition.
	From archive.Status `json:"from"`
	// To is the state after the transition.
	To archive.Status `json:"to"`
	// Location is set when To is archived.
	Location string `json:"location,omitempty"`
	// ErrorCode is set when To is error.
	ErrorCode int `json:"errorCode,omitempty"`
	// TS is the UTC time the transition was applied.
	TS time.Time `json:"ts"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RecordID == "" {
		return errors.New("record id is required")
	}
	if e.Provider == "" {
		return errors.New("provider is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if !e.To.Valid() {
		return fmt.Errorf("unknown target status %q", e.To)
	}
	if e.From != "" && !e.From.Valid() {
		return fmt.Errorf("unknown source status %q", e.From)
	}
	if e.ErrorCode != 0 && e.To != archive.StatusError {
		return errors.New("error code requires error status")
	}
	return nil
}

// Attributes flattens the routing fields of the event for message metadata.
func (e Event) Attributes() map[string]string {
	attrs := map[string]string{
		"record_id": e.RecordID,
		"provider":  e.Provider,
		"to":        string(e.To),
	}
	if e.RunID != "" {
		attrs["run_id"] = e.RunID
	}
	if e.ErrorCode != 0 {
		attrs["error_code"] = strconv.Itoa(e.ErrorCode)
	}
	return attrs
}
