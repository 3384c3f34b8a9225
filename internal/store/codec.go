package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/JakeFAU/web-archiver/internal/archive"
)

const (
	documentTitle   = "# Web Archiver"
	documentComment = "<!-- managed by web-archiver; manual edits are overwritten -->"
	delimiterPrefix = "## "
)

var (
	delimiterLine = regexp.MustCompile(`^##\s+(\S+)\s*$`)
	validID       = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)
)

// ValidID reports whether id has the shape of a record identifier.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

type recordBody struct {
	URL       string                           `json:"url"`
	CreatedAt time.Time                        `json:"createdAt"`
	Providers map[string]archive.ProviderState `json:"providers"`
}

// Encode renders records in the durable text format. Records are ordered by
// creation time then identifier so output is deterministic.
func Encode(records []archive.Record) ([]byte, error) {
	sorted := append([]archive.Record(nil), records...)
	sortRecords(sorted)

	var buf bytes.Buffer
	buf.WriteString(documentTitle + "\n")
	buf.WriteString(documentComment + "\n")
	for _, rec := range sorted {
		body := recordBody{
			URL:       rec.URL,
			CreatedAt: rec.CreatedAt.UTC(),
			Providers: rec.Providers,
		}
		if body.Providers == nil {
			body.Providers = map[string]archive.ProviderState{}
		}
		buf.WriteString("\n" + delimiterPrefix + rec.ID + "\n")
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(body); err != nil {
			return nil, fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
	}
	return buf.Bytes(), nil
}

// Decode parses the durable text format. Any structural problem is reported
// as archive.ErrCorruptStore.
func Decode(data []byte) ([]archive.Record, error) {
	var (
		records []archive.Record
		seen    = map[string]struct{}{}
		current string
		startAt int
		body    strings.Builder
		inBody  bool
	)
	finish := func() error {
		if !inBody {
			return nil
		}
		rec, err := decodeBody(current, body.String())
		if err != nil {
			return corruptf(startAt, "record %s: %v", current, err)
		}
		records = append(records, rec)
		body.Reset()
		return nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if m := delimiterLine.FindStringSubmatch(line); m != nil {
			if err := finish(); err != nil {
				return nil, err
			}
			id := m[1]
			if !validID.MatchString(id) {
				return nil, corruptf(lineNo, "invalid identifier %q", id)
			}
			if _, dup := seen[id]; dup {
				return nil, corruptf(lineNo, "duplicate identifier %q", id)
			}
			seen[id] = struct{}{}
			current, startAt, inBody = id, lineNo, true
			continue
		}
		if inBody {
			body.WriteString(line)
			continue
		}
		if !isPreamble(line) {
			return nil, corruptf(lineNo, "unexpected content before first record")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, corruptf(lineNo, "%v", err)
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return records, nil
}

func decodeBody(id, raw string) (archive.Record, error) {
	if strings.TrimSpace(raw) == "" {
		return archive.Record{}, fmt.Errorf("empty body")
	}
	var body recordBody
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&body); err != nil {
		return archive.Record{}, err
	}
	if dec.More() {
		return archive.Record{}, fmt.Errorf("trailing data after record body")
	}
	if body.URL == "" {
		return archive.Record{}, fmt.Errorf("missing url")
	}
	rec := archive.Record{
		ID:        id,
		URL:       body.URL,
		CreatedAt: body.CreatedAt,
		Providers: make(map[string]archive.ProviderState, len(body.Providers)),
	}
	for name, st := range body.Providers {
		if !st.Status.Valid() {
			return archive.Record{}, fmt.Errorf("provider %q: missing or unknown status %q", name, st.Status)
		}
		rec.Providers[name] = st.Normalize()
	}
	return rec, nil
}

func isPreamble(line string) bool {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return true
	case strings.HasPrefix(trimmed, "# "), trimmed == "#":
		return true
	case strings.HasPrefix(trimmed, "<!--") && strings.HasSuffix(trimmed, "-->"):
		return true
	default:
		return false
	}
}

func corruptf(line int, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", archive.ErrCorruptStore, line, fmt.Sprintf(format, args...))
}

func sortRecords(records []archive.Record) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}
