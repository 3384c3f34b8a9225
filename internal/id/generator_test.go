package id

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDefaultShape(t *testing.T) {
	t.Parallel()

	g, err := New()
	require.NoError(t, err)
	seen := map[string]struct{}{}
	for range 500 {
		v, err := g.Generate(seen)
		require.NoError(t, err)
		require.Len(t, v, DefaultLength)
		for _, r := range v {
			require.True(t, strings.ContainsRune(DefaultAlphabet, r), "unexpected rune %q", r)
		}
		_, dup := seen[v]
		require.False(t, dup)
		seen[v] = struct{}{}
	}
}

func TestGenerateRejectsBiasedTail(t *testing.T) {
	t.Parallel()

	// 248 is the first byte above the largest multiple of 62 and must be
	// discarded; 0 maps to 'A', 61 maps to '9', 62 wraps back to 'A'.
	src := bytes.NewReader([]byte{248, 255, 0, 61, 62, 1, 250, 2, 3, 0, 0, 0})
	g, err := New(WithSource(src))
	require.NoError(t, err)

	v, err := g.Generate(nil)
	require.NoError(t, err)
	assert.Equal(t, "A9ABCD", v)
}

func TestGenerateRetriesCollisions(t *testing.T) {
	t.Parallel()

	src := bytes.NewReader([]byte{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1})
	g, err := New(WithSource(src))
	require.NoError(t, err)

	v, err := g.Generate(map[string]struct{}{"AAAAAA": {}})
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", v)
}

func TestGenerateExhausted(t *testing.T) {
	t.Parallel()

	g, err := New(WithAlphabet("x"), WithLength(1), WithMaxAttempts(3))
	require.NoError(t, err)

	_, err = g.Generate(map[string]struct{}{"x": {}})
	require.ErrorIs(t, err, ErrExhausted)
}

func TestGenerateSurfacesSourceErrors(t *testing.T) {
	t.Parallel()

	g, err := New(WithSource(bytes.NewReader(nil)))
	require.NoError(t, err)
	_, err = g.Generate(nil)
	require.Error(t, err)
}

func TestNewValidatesOptions(t *testing.T) {
	t.Parallel()

	_, err := New(WithAlphabet(""))
	require.Error(t, err)
	_, err = New(WithLength(0))
	require.Error(t, err)
}

func TestNewRunIDIsUUIDv7(t *testing.T) {
	t.Parallel()

	v, err := NewRunID()
	require.NoError(t, err)
	parsed, err := uuid.Parse(v)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}
