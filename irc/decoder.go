package irc

import (
	"strings"
	"unicode/utf8"
)

const DefaultMaxLineLength = 8192

// lineBreaks ends a line: CR, LF, VT, FF, NEL and the Unicode line and
// paragraph separators.
const lineBreaks = "\r\n\v\f\u0085\u2028\u2029"

// LineDecoder frames a stream of byte chunks into complete lines. Servers may
// deliver several lines per read and split a line across reads; the decoder
// carries the unterminated tail of each chunk into the next one.
//
// A LineDecoder is not safe for concurrent use.
type LineDecoder struct {
	maxPartial int

	partial  string
	runeTail []byte // incomplete utf-8 sequence at the end of the last chunk
	discard  bool   // dropping an overlong line until its terminator
}

// NewLineDecoder returns a decoder that buffers at most maxPartial bytes of an
// unterminated line. A maxPartial of 0 disables the limit.
func NewLineDecoder(maxPartial int) *LineDecoder {
	return &LineDecoder{maxPartial: maxPartial}
}

// Feed decodes chunk and returns the lines completed by it, in order, without
// terminators and skipping empty lines.
//
// A chunk that is not valid UTF-8 is dropped and ErrDecode is returned. When the
// buffered partial line grows beyond the limit, it is discarded and
// ErrLineTooLong is returned together with the lines completed before it.
func (d *LineDecoder) Feed(chunk []byte) ([]string, error) {
	data := chunk
	if len(d.runeTail) > 0 {
		data = make([]byte, 0, len(d.runeTail)+len(chunk))
		data = append(data, d.runeTail...)
		data = append(data, chunk...)
	}

	cut := incompleteRuneSuffix(data)
	body := data[:len(data)-cut]

	if !utf8.Valid(body) {
		d.runeTail = nil
		return nil, ErrDecode
	}

	d.runeTail = append(d.runeTail[:0:0], data[len(data)-cut:]...)

	text := string(body)

	if d.discard {
		i := strings.IndexAny(text, lineBreaks)
		if i < 0 {
			return nil, nil
		}

		d.discard = false
		text = text[i+breakLen(text[i:]):]
	}

	text = d.partial + text
	d.partial = ""

	var ready string
	if i := strings.LastIndexAny(text, lineBreaks); i < 0 {
		d.partial = text
	} else {
		end := i + breakLen(text[i:])
		ready = text[:end]
		d.partial = text[end:]
	}

	lines := splitLines(ready)

	if d.maxPartial > 0 && len(d.partial) > d.maxPartial {
		d.partial = ""
		d.discard = true
		return lines, ErrLineTooLong
	}

	return lines, nil
}

// Pending returns the buffered unterminated line, if any.
func (d *LineDecoder) Pending() (string, bool) {
	return d.partial, d.partial != ""
}

func (d *LineDecoder) Reset() {
	d.partial = ""
	d.runeTail = nil
	d.discard = false
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	return strings.FieldsFunc(text, isLineBreak)
}

func isLineBreak(r rune) bool {
	return strings.ContainsRune(lineBreaks, r)
}

// breakLen is the byte length of the line break s starts with.
func breakLen(s string) int {
	_, size := utf8.DecodeRuneInString(s)
	return size
}

// incompleteRuneSuffix returns the length of a truncated multi-byte sequence at
// the end of b, or 0.
func incompleteRuneSuffix(b []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(b); i++ {
		if !utf8.RuneStart(b[len(b)-i]) {
			continue
		}

		if utf8.FullRune(b[len(b)-i:]) {
			return 0
		}

		return i
	}

	return 0
}
