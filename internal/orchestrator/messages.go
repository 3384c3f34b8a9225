package orchestrator

import (
	"fmt"

	"github.com/JakeFAU/web-archiver/internal/archive"
)

const noticePrefix = "📁 Web Archiver: "

func queuedNotification(rec archive.Record, d archive.Driver) archive.Notification {
	return archive.Notification{
		Kind:     archive.NotifyQueued,
		RecordID: rec.ID,
		URL:      rec.URL,
		Provider: d.Name(),
		Verbose: noticePrefix + fmt.Sprintf(
			"Archiving request sent to %s. The content may take some time to be available.", d.DisplayName()),
		Terse: fmt.Sprintf("📁 Archiving requested (%s)", d.DisplayName()),
		Icon:  "📁 ⏳",
	}
}

func archivedNotification(rec archive.Record, d archive.Driver, location string) archive.Notification {
	return archive.Notification{
		Kind:     archive.NotifyArchived,
		RecordID: rec.ID,
		URL:      rec.URL,
		Provider: d.Name(),
		Location: location,
		Verbose:  noticePrefix + fmt.Sprintf("%s is archived on %s: %s", rec.URL, d.DisplayName(), location),
		Terse:    fmt.Sprintf("📁 Archived (%s)", d.DisplayName()),
		Icon:     "📁 ✅",
	}
}

func errorNotification(rec archive.Record, d archive.Driver, code int) archive.Notification {
	return archive.Notification{
		Kind:     archive.NotifyError,
		RecordID: rec.ID,
		URL:      rec.URL,
		Provider: d.Name(),
		Code:     code,
		Verbose: noticePrefix + fmt.Sprintf(
			"Archiving request to %s returned a %d error. Please ensure the archiving provider is joinable.",
			d.DisplayName(), code),
		Terse: fmt.Sprintf("📁 Archiving failed with %d (%s)", code, d.DisplayName()),
		Icon:  "📁 ❌",
	}
}
