package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/pithecene-io/tlink/types"
)

// BinaryDecoder reassembles length-prefixed frames.
type BinaryDecoder struct {
	buf     []byte
	maxSize int
}

// NewBinaryDecoder creates a binary decoder. maxFrameSize caps a frame
// including its prefix; zero or negative selects DefaultMaxFrameSize.
func NewBinaryDecoder(maxFrameSize int) *BinaryDecoder {
	if maxFrameSize <= LengthPrefixSize {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &BinaryDecoder{maxSize: maxFrameSize}
}

// Feed appends chunk and emits every complete frame.
//
// Zero-length frames are consumed but not emitted. A declared length above
// the cap returns a FrameErrorTooLarge instead of waiting for bytes that
// would never be accepted. If emit fails, the frames after the failing one
// stay buffered and the error is returned.
func (d *BinaryDecoder) Feed(chunk []byte, emit EmitFunc) error {
	d.buf = append(d.buf, chunk...)

	for len(d.buf) >= LengthPrefixSize {
		n := binary.BigEndian.Uint32(d.buf[:LengthPrefixSize])
		if uint64(n)+LengthPrefixSize > uint64(d.maxSize) {
			return &FrameError{
				Kind: FrameErrorTooLarge,
				Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", n, d.maxSize-LengthPrefixSize),
			}
		}

		total := int(n) + LengthPrefixSize
		if len(d.buf) < total {
			return nil
		}

		var payload []byte
		if n > 0 {
			payload = make([]byte, n)
			copy(payload, d.buf[LengthPrefixSize:total])
		}
		d.consume(total)

		if n == 0 {
			continue
		}
		if err := emit(types.Frame{Protocol: types.ProtocolBinary, Payload: payload}); err != nil {
			return err
		}
	}
	return nil
}

// consume drops n bytes from the front of the buffer. The remaining bytes
// are moved down so the backing array does not grow without bound.
func (d *BinaryDecoder) consume(n int) {
	rest := copy(d.buf, d.buf[n:])
	d.buf = d.buf[:rest]
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *BinaryDecoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any buffered bytes.
func (d *BinaryDecoder) Reset() {
	d.buf = d.buf[:0]
}

var _ Decoder = (*BinaryDecoder)(nil)
