package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusJSONRejectsUnknown(t *testing.T) {
	t.Parallel()

	var st ProviderState
	require.NoError(t, json.Unmarshal([]byte(`{"status":"archived","location":"https://a/b"}`), &st))
	assert.Equal(t, StatusArchived, st.Status)

	err := json.Unmarshal([]byte(`{"status":"pasted"}`), &st)
	require.Error(t, err)
}

func TestProviderStateNormalize(t *testing.T) {
	t.Parallel()

	got := ProviderState{Status: StatusNotStarted, Location: "x", ErrorCode: 503}.Normalize()
	assert.Equal(t, ProviderState{Status: StatusNotStarted}, got)

	got = ProviderState{Status: StatusError, Location: "x", ErrorCode: 503}.Normalize()
	assert.Equal(t, ProviderState{Status: StatusError, ErrorCode: 503}, got)

	got = ProviderState{Status: StatusArchived, Location: "x", ErrorCode: 503}.Normalize()
	assert.Equal(t, ProviderState{Status: StatusArchived, Location: "x"}, got)
}

func TestRecordCloneIsDeep(t *testing.T) {
	t.Parallel()

	rec := Record{ID: "abcdef", Providers: map[string]ProviderState{"wayback": {Status: StatusNotStarted}}}
	cp := rec.Clone()
	cp.Providers["wayback"] = ProviderState{Status: StatusArchived}
	assert.Equal(t, StatusNotStarted, rec.Providers["wayback"].Status)
	assert.Equal(t, StatusNotStarted, Record{}.State("missing").Status)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestFailureCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"status", fmt.Errorf("wrap: %w", &HTTPStatusError{Code: 503, URL: "u"}), 503},
		{"provider", &ProviderError{Provider: "p", Code: 429}, 429},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), CodeTimeout},
		{"net timeout", timeoutErr{}, CodeTimeout},
		{"other", errors.New("connection refused"), CodeUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FailureCode(tt.err))
		})
	}
}

func TestProviderErrorUnwraps(t *testing.T) {
	t.Parallel()

	inner := &HTTPStatusError{Code: 500, URL: "https://p"}
	err := NewProviderError("wayback", inner)
	assert.Equal(t, 500, err.Code)
	var se *HTTPStatusError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, err.Error(), "failure code 500")
}
