// Package frame reassembles protocol frames from arbitrarily chunked streams.
//
// Two wire formats are supported:
//   - binary: 4-byte big-endian payload length N followed by N payload bytes
//   - text: UTF-8 records terminated by '\n'
//
// Decoders are push-style: the caller appends each inbound chunk with Feed and
// receives every complete frame through an emit callback. A trailing partial
// frame stays buffered until the next chunk arrives.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pithecene-io/tlink/types"
)

// Frame size constants.
const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
	// DefaultMaxFrameSize is the default cap on a binary frame (16 MiB),
	// including the length prefix.
	DefaultMaxFrameSize = 16 * 1024 * 1024
	// DefaultMaxLineSize is the default cap on a buffered text line (1 MiB).
	DefaultMaxLineSize = 1024 * 1024
)

// Keep-alive payloads written by the heartbeat scheduler. The binary marker
// travels outside the framing and is never a valid frame on its own.
var (
	binaryHeartbeat = [...]byte{6, 3, 5, 4}
	textPing        = [...]byte{'p', 'i', 'n', 'g', '\n'}
)

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame at end of stream.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a declared frame exceeding the size cap.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a payload decoding error.
	FrameErrorDecode
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorPartial:
		return "partial"
	case FrameErrorTooLarge:
		return "too_large"
	case FrameErrorDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// FrameError represents a frame decoding error.
// Every FrameError matches types.ErrProtocol via errors.Is.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Is reports whether target is types.ErrProtocol.
func (e *FrameError) Is(target error) bool {
	return target == types.ErrProtocol
}

// IsFatal returns true if the stream cannot continue after this error.
// Partial and oversized frames are fatal.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// EmitFunc receives one decoded frame. A non-nil return aborts decoding and
// is returned from Feed unchanged.
type EmitFunc func(types.Frame) error

// Decoder reassembles frames from a chunked stream.
// Implementations are not safe for concurrent use; they are driven from the
// event loop only.
type Decoder interface {
	// Feed appends chunk and emits every complete frame now buffered.
	Feed(chunk []byte, emit EmitFunc) error
	// Buffered returns the number of bytes held for an incomplete frame.
	Buffered() int
	// Reset discards any buffered bytes.
	Reset()
}

// NewDecoder returns the decoder for a protocol family.
// maxSize caps a binary frame or text line; zero selects the default.
func NewDecoder(p types.Protocol, maxSize int) (Decoder, error) {
	switch p {
	case types.ProtocolBinary:
		return NewBinaryDecoder(maxSize), nil
	case types.ProtocolText:
		return NewTextDecoder(maxSize), nil
	default:
		return nil, fmt.Errorf("no decoder for protocol %q", p)
	}
}

// Encode prefixes payload with its 4-byte big-endian length.
func Encode(payload []byte) []byte {
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf
}

// Heartbeat returns a fresh copy of the keep-alive payload for a protocol
// family.
func Heartbeat(p types.Protocol) []byte {
	switch p {
	case types.ProtocolBinary:
		b := binaryHeartbeat
		return b[:]
	case types.ProtocolText:
		b := textPing
		return b[:]
	default:
		return nil
	}
}
