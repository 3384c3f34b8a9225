package notify

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/web-archiver/internal/archive"
)

// Verbosity selects which rendering of a notification is delivered.
type Verbosity string

// Supported verbosity levels.
const (
	Verbose   Verbosity = "verbose"
	Terse     Verbosity = "terse"
	IconsOnly Verbosity = "icons"
	Silent    Verbosity = "silent"
)

// ParseVerbosity parses a configuration value. Empty means Verbose.
func ParseVerbosity(s string) (Verbosity, error) {
	switch v := Verbosity(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return Verbose, nil
	case Verbose, Terse, IconsOnly, Silent:
		return v, nil
	default:
		return "", fmt.Errorf("unknown notification verbosity %q", s)
	}
}

// Select returns the rendering for v and false when nothing should be shown.
func (v Verbosity) Select(n archive.Notification) (string, bool) {
	var text string
	switch v {
	case Silent:
		return "", false
	case Terse:
		text = n.Terse
	case IconsOnly:
		text = n.Icon
	default:
		text = n.Verbose
	}
	return text, text != ""
}
