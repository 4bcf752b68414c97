package phone

import (
	"errors"
	"fmt"
	"strings"
)

// Normalizer canonicalizes raw phone number input into dialable E.164-style
// strings. It is a pure value type and safe for concurrent use.
//
// Rules:
// - whitespace, hyphens and parentheses are stripped
// - any alphabetic character rejects the input
// - numbers without a leading + get the configured default country code
// - output always matches ^\+[0-9]+$
type Normalizer struct {
	// DefaultCountryCode must start with "+" (e.g. "+91").
	DefaultCountryCode string
}

var ErrInvalidFormat = errors.New("phone: invalid format")

// Normalize canonicalizes raw into a dialable number or fails with
// ErrInvalidFormat.
func (n Normalizer) Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidFormat)
	}

	var b strings.Builder
	b.Grow(len(trimmed) + len(n.DefaultCountryCode))

	for i, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+':
			// A plus is only meaningful as the first character.
			if i != 0 {
				return "", fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
			}
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '-' || r == '(' || r == ')':
			// separators are dropped
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
		}
	}

	out := b.String()
	if !strings.HasPrefix(out, "+") {
		out = n.DefaultCountryCode + out
	}
	if len(out) < 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}
	return out, nil
}

// SplitBulk splits pasted free text into candidate entries. Entries are
// separated by newlines or commas; blanks are dropped.
func SplitBulk(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
