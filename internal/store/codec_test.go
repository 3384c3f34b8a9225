package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/web-archiver/internal/archive"
)

func sampleRecords() []archive.Record {
	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	return []archive.Record{
		{
			ID:        "Zz9Yy8",
			URL:       "https://example.com/b?x=1&y=<2>",
			CreatedAt: base.Add(time.Minute),
			Providers: map[string]archive.ProviderState{
				"wayback":      {Status: archive.StatusError, ErrorCode: 503},
				"archivetoday": {Status: archive.StatusRequested},
			},
		},
		{
			ID:        "Ab12Cd",
			URL:       "https://example.com/a",
			CreatedAt: base,
			Providers: map[string]archive.ProviderState{
				"wayback": {Status: archive.StatusArchived, Location: "https://web.archive.org/web/1/https://example.com/a"},
			},
		},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name    string
		records []archive.Record
	}{
		{name: "empty", records: nil},
		{name: "several", records: sampleRecords()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			data, err := Encode(tc.records)
			require.NoError(t, err)
			got, err := Decode(data)
			require.NoError(t, err)

			want := append([]archive.Record(nil), tc.records...)
			sortRecords(want)
			require.Len(t, got, len(want))
			for i := range want {
				assert.Equal(t, want[i].ID, got[i].ID)
				assert.Equal(t, want[i].URL, got[i].URL)
				assert.True(t, want[i].CreatedAt.Equal(got[i].CreatedAt))
				assert.Equal(t, want[i].Providers, got[i].Providers)
			}
		})
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	t.Parallel()

	recs := sampleRecords()
	first, err := Encode(recs)
	require.NoError(t, err)
	recs[0], recs[1] = recs[1], recs[0]
	second, err := Encode(recs)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Contains(t, string(first), "\n## Ab12Cd\n{\n")
	assert.Contains(t, string(first), "x=1&y=<2>")
}

func TestDecodeHandWrittenDocument(t *testing.T) {
	t.Parallel()

	doc := "# Web Archiver\r\n" +
		"<!-- notes -->\r\n" +
		"\r\n" +
		"## Ab12Cd\r\n" +
		"{\"url\": \"https://example.com/a\",\r\n" +
		"  \"createdAt\": \"2026-10-19T10:00:00Z\",\r\n" +
		"  \"providers\": {\"wayback\": {\"status\": \"not_started\", \"errorCode\": 7}}}\r\n"
	got, err := Decode([]byte(doc))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ab12Cd", got[0].ID)
	assert.Equal(t, archive.ProviderState{Status: archive.StatusNotStarted}, got[0].Providers["wayback"])
}

func TestDecodeCorrupt(t *testing.T) {
	t.Parallel()

	body := `{"url":"https://a","createdAt":"2026-10-19T10:00:00Z","providers":{}}`
	tests := []struct {
		name string
		doc  string
	}{
		{"stray text", "hello\n## Ab12Cd\n" + body},
		{"bad id", "## short\n" + body},
		{"duplicate id", "## Ab12Cd\n" + body + "\n## Ab12Cd\n" + body},
		{"empty body", "## Ab12Cd\n\n## Ef34Gh\n" + body},
		{"invalid json", "## Ab12Cd\n{\"url\":"},
		{"unknown status", "## Ab12Cd\n" + `{"url":"https://a","providers":{"w":{"status":"pasted"}}}`},
		{"missing status", "## Ab12Cd\n" + `{"url":"https://a","providers":{"archivebox":{}}}`},
		{"empty status", "## Ab12Cd\n" + `{"url":"https://a","providers":{"wayback":{"status":""}}}`},
		{"missing url", "## Ab12Cd\n" + `{"providers":{}}`},
		{"trailing data", "## Ab12Cd\n" + body + body},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode([]byte(tt.doc))
			require.ErrorIs(t, err, archive.ErrCorruptStore)
		})
	}
}
