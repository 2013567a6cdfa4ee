package core

// streaming.go cleans up uploaded table bytes before they reach the CSV reader.
//
// Spreadsheet exports from Windows tools often start with a UTF-8 BOM and can
// carry stray Latin-1 bytes. Both would otherwise leak into the first header
// name or into address values.

import (
	"bufio"
	"io"
	"unicode/utf8"
)

// utf8BOM is the byte order mark some editors prepend to UTF-8 files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewBOMSkippingReader returns a reader that drops a leading UTF-8 BOM.
func NewBOMSkippingReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil &&
		head[0] == utf8BOM[0] && head[1] == utf8BOM[1] && head[2] == utf8BOM[2] {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// UTF8Sanitizer replaces each invalid UTF-8 byte with U+FFFD while streaming.
// The marker survives into parsed cells, so an address that carried a stray
// Latin-1 byte fails validation instead of being stored rewritten.
// A multi-byte sequence split across two reads is carried over to the next call.
type UTF8Sanitizer struct {
	r       io.Reader
	chunk   []byte
	pending []byte // incomplete rune from the previous read
	out     []byte // sanitized bytes not yet returned
	err     error
}

// NewUTF8Sanitizer wraps r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{r: r, chunk: make([]byte, 4096)}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// fill reads one chunk from the source and appends its sanitized form to out.
func (s *UTF8Sanitizer) fill() {
	n, err := s.r.Read(s.chunk)
	if err != nil {
		s.err = err
	}

	data := make([]byte, 0, len(s.pending)+n)
	data = append(append(data, s.pending...), s.chunk[:n]...)
	s.pending = s.pending[:0]
	atEOF := s.err != nil

	s.out = s.out[:0]
	for i := 0; i < len(data); {
		c := data[i]
		if c < utf8.RuneSelf {
			s.out = append(s.out, c)
			i++
			continue
		}
		if !atEOF && !utf8.FullRune(data[i:]) {
			s.pending = append(s.pending, data[i:]...)
			break
		}
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			s.out = utf8.AppendRune(s.out, utf8.RuneError)
			i++
			continue
		}
		s.out = append(s.out, data[i:i+size]...)
		i += size
	}
}

// WrapForParsing applies BOM stripping then UTF-8 sanitization.
func WrapForParsing(r io.Reader) io.Reader {
	return NewUTF8Sanitizer(NewBOMSkippingReader(r))
}
