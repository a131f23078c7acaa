// Package sanitize cleans free-text answers before they enter a session.
package sanitize

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultMaxInputSize is 4KB (conservative default).
const DefaultMaxInputSize = 4096

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Sanitizer enforces size limits, validates UTF-8, strips dangerous control
// characters and removes HTML markup from answers.
type Sanitizer struct {
	maxSize int
	policy  *bluemonday.Policy
}

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithMaxSize overrides the per-value byte limit. Non-positive sizes are ignored.
func WithMaxSize(n int) Option {
	return func(s *Sanitizer) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// New creates a Sanitizer with a strict markup policy.
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{
		maxSize: DefaultMaxInputSize,
		policy:  bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Text cleans a single string answer.
func (s *Sanitizer) Text(input string) (string, error) {
	// Reject rather than truncate so the stored answer is exactly what was accepted.
	if len(input) > s.maxSize {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), s.maxSize)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	cleaned := stripControl(input)
	if strings.ContainsAny(cleaned, "<>") {
		// StrictPolicy escapes entities; answers are stored as plain text.
		cleaned = html.UnescapeString(s.policy.Sanitize(cleaned))
	}
	return cleaned, nil
}

// Value cleans an answer of any supported shape. Strings and string lists are
// cleaned element by element; other values pass through.
func (s *Sanitizer) Value(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return s.Text(val)
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			cleaned, err := s.Text(item)
			if err != nil {
				return nil, err
			}
			out[i] = cleaned
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			str, ok := item.(string)
			if !ok {
				return v, nil
			}
			cleaned, err := s.Text(str)
			if err != nil {
				return nil, err
			}
			out = append(out, cleaned)
		}
		return out, nil
	}
	return v, nil
}

// stripControl removes control characters other than newline, tab and carriage return.
// This prevents log poisoning and terminal corruption.
func stripControl(input string) string {
	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}
