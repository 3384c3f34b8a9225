package notify_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/web-archiver/internal/archive"
	"github.com/JakeFAU/web-archiver/internal/notify"
)

func sample(kind archive.NotificationKind) archive.Notification {
	return archive.Notification{
		Kind:     kind,
		RecordID: "Ab12Cd",
		URL:      "https://example.com",
		Provider: "wayback",
		Code:     503,
		Verbose:  "📁 Web Archiver: verbose text",
		Terse:    "terse text",
		Icon:     "❌",
	}
}

func TestParseVerbosity(t *testing.T) {
	for in, want := range map[string]notify.Verbosity{
		"":        notify.Verbose,
		"Verbose": notify.Verbose,
		"terse":   notify.Terse,
		" icons ": notify.IconsOnly,
		"silent":  notify.Silent,
	} {
		got, err := notify.ParseVerbosity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := notify.ParseVerbosity("loud")
	require.Error(t, err)
}

func TestSelect(t *testing.T) {
	n := sample(archive.NotifyError)
	text, ok := notify.Verbose.Select(n)
	assert.True(t, ok)
	assert.Equal(t, n.Verbose, text)
	text, _ = notify.Terse.Select(n)
	assert.Equal(t, n.Terse, text)
	text, _ = notify.IconsOnly.Select(n)
	assert.Equal(t, n.Icon, text)
	_, ok = notify.Silent.Select(n)
	assert.False(t, ok)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := notify.NewLogNotifier(zap.New(core), notify.Terse)

	require.NoError(t, n.Notify(context.Background(), sample(archive.NotifyError)))
	require.NoError(t, n.Notify(context.Background(), sample(archive.NotifyArchived)))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "terse text", entries[0].Message)
	assert.EqualValues(t, 503, entries[0].ContextMap()["error_code"])
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)

	silent := notify.NewLogNotifier(zap.New(core), notify.Silent)
	require.NoError(t, silent.Notify(context.Background(), sample(archive.NotifyArchived)))
	assert.Len(t, logs.All(), 2)
}

func TestNewNtfyReturnsNoopWhenTopicMissing(t *testing.T) {
	n := notify.NewNtfy("  ", time.Second, notify.Verbose)
	_, isNoop := n.(notify.Noop)
	assert.True(t, isNoop)
	require.NoError(t, n.Notify(context.Background(), sample(archive.NotifyArchived)))
}

func TestNtfyNotifierFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		kind           archive.NotificationKind
		verbosity      notify.Verbosity
		expectTitle    string
		expectBody     string
		expectPriority string
	}{
		{"error verbose", archive.NotifyError, notify.Verbose, "Web Archiver - Error", "📁 Web Archiver: verbose text", "high"},
		{"archived icons", archive.NotifyArchived, notify.IconsOnly, "Web Archiver - Archived", "❌", ""},
		{"queued terse", archive.NotifyQueued, notify.Terse, "Web Archiver - Requested", "terse text", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				gotTitle, gotTags, gotPriority, gotUA string
				gotBody                               []byte
			)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotTitle = r.Header.Get("Title")
				gotTags = r.Header.Get("Tags")
				gotPriority = r.Header.Get("Priority")
				gotUA = r.Header.Get("User-Agent")
				gotBody, _ = io.ReadAll(r.Body)
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			n := notify.NewNtfy(srv.URL+"/archiver", time.Second, tt.verbosity)
			require.NoError(t, n.Notify(context.Background(), sample(tt.kind)))
			assert.Equal(t, tt.expectTitle, gotTitle)
			assert.Equal(t, "web-archiver,wayback,"+string(tt.kind), gotTags)
			assert.Equal(t, tt.expectPriority, gotPriority)
			assert.Equal(t, tt.expectBody, string(gotBody))
			assert.Contains(t, gotUA, "web-archiver")
		})
	}
}

func TestNtfyNotifierReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "topic reserved")
	}))
	defer srv.Close()

	n := notify.NewNtfy(srv.URL, time.Second, notify.Verbose)
	err := n.Notify(context.Background(), sample(archive.NotifyArchived))
	require.ErrorContains(t, err, "ntfy returned 403: topic reserved")
}

type failing struct{ calls int }

func (f *failing) Notify(context.Context, archive.Notification) error {
	f.calls++
	return errors.New("down")
}

func TestMultiAttemptsAll(t *testing.T) {
	a, b := &failing{}, &failing{}
	err := notify.Multi{a, nil, notify.Noop{}, b}.Notify(context.Background(), sample(archive.NotifyQueued))
	require.Error(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}
