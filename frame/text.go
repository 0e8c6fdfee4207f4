package frame

import (
	"bytes"
	"fmt"

	"github.com/pithecene-io/tlink/types"
)

// TextDecoder reassembles newline-delimited records.
//
// Bytes are buffered rather than decoded text: '\n' never occurs inside a
// multi-byte UTF-8 sequence, so splitting on the byte keeps code points that
// straddle two chunks intact.
type TextDecoder struct {
	buf     []byte
	maxSize int
}

// NewTextDecoder creates a text decoder. maxLineSize caps an unterminated
// line; zero or negative selects DefaultMaxLineSize.
func NewTextDecoder(maxLineSize int) *TextDecoder {
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}
	return &TextDecoder{maxSize: maxLineSize}
}

// Feed appends chunk and emits every complete line without its delimiter.
// Empty lines are emitted as empty records.
func (d *TextDecoder) Feed(chunk []byte, emit EmitFunc) error {
	d.buf = append(d.buf, chunk...)

	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := string(d.buf[:i])
		rest := copy(d.buf, d.buf[i+1:])
		d.buf = d.buf[:rest]

		if err := emit(types.Frame{Protocol: types.ProtocolText, Line: line}); err != nil {
			return err
		}
	}

	if len(d.buf) > d.maxSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("unterminated line of %d bytes exceeds maximum %d", len(d.buf), d.maxSize),
		}
	}
	return nil
}

// Buffered returns the number of bytes held for an incomplete line.
func (d *TextDecoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any buffered bytes.
func (d *TextDecoder) Reset() {
	d.buf = d.buf[:0]
}

var _ Decoder = (*TextDecoder)(nil)
