package provider

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/web-archiver/internal/archive"
)

// Provider names used as record keys and configuration values.
const (
	WaybackName      = "wayback"
	ArchiveTodayName = "archivetoday"
	ArchiveBoxName   = "archivebox"

	// WaybackAPIEndpoint is the endpoints key overriding the availability API base.
	WaybackAPIEndpoint = "wayback_api"
)

// Names lists every supported provider.
func Names() []string {
	return []string{WaybackName, ArchiveTodayName, ArchiveBoxName}
}

// Known reports whether name is a supported provider.
func Known(name string) bool {
	for _, n := range Names() {
		if n == name {
			return true
		}
	}
	return false
}

// New constructs the driver called name. endpoints maps provider names to
// base URL overrides.
func New(name string, endpoints map[string]string, transport archive.Transport) (archive.Driver, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case WaybackName:
		return NewWayback(transport, endpoints[WaybackName], endpoints[WaybackAPIEndpoint]), nil
	case ArchiveTodayName:
		return NewArchiveToday(transport, endpoints[ArchiveTodayName]), nil
	case ArchiveBoxName:
		return NewArchiveBox(transport, endpoints[ArchiveBoxName])
	default:
		return nil, fmt.Errorf("%w: %q", archive.ErrUnknownProvider, name)
	}
}

// Build constructs drivers for every enabled provider, in order, rejecting
// duplicates.
func Build(enabled []string, endpoints map[string]string, transport archive.Transport) ([]archive.Driver, error) {
	seen := make(map[string]struct{}, len(enabled))
	drivers := make([]archive.Driver, 0, len(enabled))
	for _, name := range enabled {
		d, err := New(name, endpoints, transport)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[d.Name()]; dup {
			return nil, fmt.Errorf("provider %q enabled twice", d.Name())
		}
		seen[d.Name()] = struct{}{}
		drivers = append(drivers, d)
	}
	return drivers, nil
}
