// Package id generates short record identifiers and run correlation IDs.
package id

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

const (
	// DefaultAlphabet is the character set record identifiers are drawn from.
	DefaultAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// DefaultLength is the number of characters in a record identifier.
	DefaultLength      = 6
	defaultMaxAttempts = 1000
)

// ErrExhausted is returned when no free identifier was found within the
// attempt budget.
var ErrExhausted = errors.New("identifier space exhausted")

// Generator draws fixed-length identifiers uniformly from an alphabet.
type Generator struct {
	alphabet    string
	length      int
	maxAttempts int
	source      io.Reader
}

// Option customizes a Generator.
type Option func(*Generator)

// WithAlphabet overrides the alphabet (1 to 256 distinct bytes).
func WithAlphabet(alphabet string) Option {
	return func(g *Generator) { g.alphabet = alphabet }
}

// WithLength overrides the identifier length.
func WithLength(n int) Option {
	return func(g *Generator) { g.length = n }
}

// WithSource replaces crypto/rand as the byte source.
func WithSource(r io.Reader) Option {
	return func(g *Generator) { g.source = r }
}

// WithMaxAttempts bounds the number of whole-identifier draws.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) { g.maxAttempts = n }
}

// New builds a Generator using crypto/rand and the default alphabet.
func New(opts ...Option) (*Generator, error) {
	g := &Generator{
		alphabet:    DefaultAlphabet,
		length:      DefaultLength,
		maxAttempts: defaultMaxAttempts,
		source:      rand.Reader,
	}
	for _, opt := range opts {
		opt(g)
	}
	if n := len(g.alphabet); n == 0 || n > 256 {
		return nil, fmt.Errorf("alphabet size must be between 1 and 256, got %d", n)
	}
	if g.length <= 0 {
		return nil, fmt.Errorf("identifier length must be > 0")
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = defaultMaxAttempts
	}
	return g, nil
}

// Generate returns an identifier not present in existing. Collisions are
// retried with a fresh draw.
func (g *Generator) Generate(existing map[string]struct{}) (string, error) {
	for range g.maxAttempts {
		candidate, err := g.draw()
		if err != nil {
			return "", err
		}
		if _, taken := existing[candidate]; !taken {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

// draw picks each character by rejection sampling: bytes at or above the
// largest multiple of the alphabet size are discarded so every character is
// equally likely.
func (g *Generator) draw() (string, error) {
	size := len(g.alphabet)
	limit := 256 / size * size
	out := make([]byte, 0, g.length)
	buf := make([]byte, g.length)
	for len(out) < g.length {
		if _, err := io.ReadFull(g.source, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, g.alphabet[int(b)%size])
			if len(out) == g.length {
				break
			}
		}
	}
	return string(out), nil
}

// NewRunID returns a UUIDv7 used to correlate the logs and events of one
// archive run.
func NewRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
