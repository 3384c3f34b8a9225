package archive

import (
	"fmt"
	"maps"
	"net/http"
	"time"
)

// Status is the lifecycle state of one (record, provider) pair.
type Status string

// Provider states. Error and Requested are reset to NotStarted on restart.
const (
	StatusNotStarted Status = "not_started"
	StatusRequested  Status = "requested"
	StatusArchived   Status = "archived"
	StatusError      Status = "error"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusRequested, StatusArchived, StatusError:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown status %q", string(s))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler and rejects unknown states.
func (s *Status) UnmarshalText(text []byte) error {
	v := Status(text)
	if !v.Valid() {
		return fmt.Errorf("unknown status %q", string(text))
	}
	*s = v
	return nil
}

// ProviderState tracks one provider's progress for a record.
type ProviderState struct {
	Status    Status `json:"status"`
	Location  string `json:"location,omitempty"`
	ErrorCode int    `json:"errorCode,omitempty"`
}

// Normalize clears fields that are meaningless for the current status.
func (p ProviderState) Normalize() ProviderState {
	if p.Status != StatusError {
		p.ErrorCode = 0
	}
	if p.Status != StatusArchived {
		p.Location = ""
	}
	return p
}

// Record is the unit of archival tracking for one source URL.
type Record struct {
	ID        string                   `json:"-"`
	URL       string                   `json:"url"`
	CreatedAt time.Time                `json:"createdAt"`
	Providers map[string]ProviderState `json:"providers"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	cp := r
	cp.Providers = maps.Clone(r.Providers)
	if cp.Providers == nil {
		cp.Providers = map[string]ProviderState{}
	}
	return cp
}

// State returns the provider state, defaulting to NotStarted.
func (r Record) State(provider string) ProviderState {
	if st, ok := r.Providers[provider]; ok {
		return st
	}
	return ProviderState{Status: StatusNotStarted}
}

// Request is a single outbound provider call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the transport's view of a completed provider call. URL holds
// the final URL after redirects.
type Response struct {
	StatusCode int
	URL        string
	Header     http.Header
	Body       []byte
}

// NotificationKind identifies which transition produced a notification.
type NotificationKind string

// Notification kinds. Queued is sent when a snapshot is requested; the others
// are terminal.
const (
	NotifyQueued   NotificationKind = "queued"
	NotifyArchived NotificationKind = "archived"
	NotifyError    NotificationKind = "error"
)

// Notification carries the three pre-rendered variants of one status
// message. Sinks pick the variant matching their verbosity.
type Notification struct {
	Kind     NotificationKind
	RecordID string
	URL      string
	Provider string
	Location string
	Code     int
	Verbose  string
	Terse    string
	Icon     string
}
