// Package lines re-assembles raw output chunks into complete lines.
package lines

import (
	"bytes"
	"unicode/utf8"
)

// Splitter buffers a trailing partial line between Feed calls. Lines are
// split on '\n'; a '\r' right before the newline is dropped. Bytes are never
// re-encoded, so multi-byte characters split across chunks come out intact.
//
// A Splitter is not safe for concurrent use; a runner owns one per stream.
type Splitter struct {
	pending []byte
	max     int
}

// New returns a Splitter. When max > 0 every line longer than max bytes is
// emitted as several lines of at most max bytes, cut on rune boundaries.
// The cuts only depend on the line, not on how it was chunked.
func New(max int) *Splitter {
	return &Splitter{max: max}
}

// Feed consumes chunk and returns the lines it completed.
func (s *Splitter) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	var out []string
	for {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			break
		}
		var line []byte
		if len(s.pending) > 0 {
			s.pending = append(s.pending, chunk[:i]...)
			line = s.pending
		} else {
			line = chunk[:i]
		}
		var rest []byte
		out, rest = s.cut(out, bytes.TrimSuffix(line, []byte{'\r'}))
		out = append(out, string(rest))
		s.pending = s.pending[:0]
		chunk = chunk[i+1:]
	}
	s.pending = append(s.pending, chunk...)

	var rest []byte
	out, rest = s.cut(out, s.pending)
	s.pending = append(s.pending[:0], rest...)
	return out
}

// Flush returns the retained partial line, if any, and resets the Splitter.
func (s *Splitter) Flush() (string, bool) {
	if len(s.pending) == 0 {
		return "", false
	}
	line := string(s.pending)
	s.pending = s.pending[:0]
	return line, true
}

// Pending reports the number of buffered bytes. With max > 0 it never
// exceeds max+1: a trailing '\r' is held back until the next byte tells
// whether it ends the line.
func (s *Splitter) Pending() int {
	return len(s.pending)
}

// cut appends max sized pieces of b to out and returns what is left.
func (s *Splitter) cut(out []string, b []byte) ([]string, []byte) {
	if s.max <= 0 {
		return out, b
	}
	for contentLen(b) > s.max {
		n := runeBoundary(b, s.max)
		out = append(out, string(b[:n]))
		b = b[n:]
	}
	return out, b
}

// contentLen is len(b) without a trailing '\r', which is dropped if a
// newline follows.
func contentLen(b []byte) int {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return n - 1
	}
	return len(b)
}

// runeBoundary returns the largest n <= max which does not split a UTF-8
// sequence. Invalid bytes count as single runes.
func runeBoundary(b []byte, max int) int {
	n := max
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	if n == 0 {
		return max
	}
	return n
}
