package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Reader reads length-prefixed frames from a blocking stream such as a
// capture file.
type Reader struct {
	reader  io.Reader
	maxSize int
}

// NewReader creates a frame reader. maxFrameSize of zero selects
// DefaultMaxFrameSize.
func NewReader(r io.Reader, maxFrameSize int) *Reader {
	if maxFrameSize <= LengthPrefixSize {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Reader{reader: r, maxSize: maxFrameSize}
}

// ReadFrame reads a single frame from the stream and returns its payload.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (r *Reader) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(r.reader, lengthBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if uint64(payloadSize)+LengthPrefixSize > uint64(r.maxSize) {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, r.maxSize-LengthPrefixSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(r.reader, payload); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}
