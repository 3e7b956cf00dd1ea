// Package checksum computes the SHA-256 digests that decide whether a local
// artifact matches the manifest.
//
// Scripts are hashed after line-ending normalization so CRLF and LF checkouts
// compare equal; executables are hashed byte-for-byte. Digests are uppercase
// hex and compared case-insensitively.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrMismatch indicates a computed digest differs from the expected one.
var ErrMismatch = errors.New("checksum mismatch")

// Func computes a digest over artifact content.
type Func func(data []byte) string

// Error reports a digest mismatch for a named artifact.
// It wraps ErrMismatch so callers can use errors.Is.
type Error struct {
	Name     string
	Expected string
	Got      string
}

// Error returns both digests for debugging.
func (e *Error) Error() string {
	return fmt.Sprintf("checksum verification failed for %s: expected %s, got %s", e.Name, e.Expected, e.Got)
}

// Unwrap returns ErrMismatch.
func (e *Error) Unwrap() error { return ErrMismatch }

// Text returns the uppercase hex SHA-256 of data decoded as UTF-8 text with
// every line terminator removed.
func Text(data []byte) string {
	h := sha256.New()

	s := string(data)
	start := 0

	for i, r := range s {
		if !isLineBreak(r) {
			continue
		}

		h.Write([]byte(s[start:i]))
		start = i + utf8.RuneLen(r)
	}

	h.Write([]byte(s[start:]))

	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

// Binary returns the uppercase hex SHA-256 of the raw bytes.
func Binary(data []byte) string {
	sum := sha256.Sum256(data)

	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Equal compares two hex digests case-insensitively.
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Verify hashes data with sum and returns an *Error when it differs from expected.
func Verify(name string, data []byte, expected string, sum Func) error {
	got := sum(data)
	if Equal(got, expected) {
		return nil
	}

	return &Error{
		Name:     name,
		Expected: strings.ToUpper(expected),
		Got:      got,
	}
}

// isLineBreak reports the universal newline separators, Unicode line and
// paragraph separators included.
func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	default:
		return false
	}
}
