// Package capture records forwarded live frames to a file and reads them back.
//
// A capture file is a sequence of length-prefixed frames whose payloads are
// msgpack-encoded Entry values. Files whose name ends in ".zst" are zstd
// compressed.
package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/tlink/frame"
	"github.com/pithecene-io/tlink/iox"
	"github.com/pithecene-io/tlink/types"
)

// CompressedSuffix selects zstd compression.
const CompressedSuffix = ".zst"

// Entry is one captured frame.
type Entry struct {
	Seq        uint64         `msgpack:"seq"`
	Protocol   types.Protocol `msgpack:"protocol"`
	ConsumerID string         `msgpack:"consumer_id"`
	ReceivedAt int64          `msgpack:"received_at"`
	Payload    []byte         `msgpack:"payload,omitempty"`
	Line       string         `msgpack:"line,omitempty"`
}

// Time returns ReceivedAt as a time.
func (e Entry) Time() time.Time {
	return time.Unix(0, e.ReceivedAt)
}

// Frame returns the captured frame.
func (e Entry) Frame() types.Frame {
	return types.Frame{Protocol: e.Protocol, Payload: e.Payload, Line: e.Line}
}

// Writer appends entries to a capture file. Not safe for concurrent use.
type Writer struct {
	file *os.File
	buf  *bufio.Writer
	zw   *zstd.Encoder
	seq  uint64
}

// Create creates or truncates a capture file at path.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture: %w", err)
	}
	w := &Writer{file: f}

	var out io.Writer = f
	if strings.HasSuffix(path, CompressedSuffix) {
		zw, err := zstd.NewWriter(f)
		if err != nil {
			iox.DiscardClose(f)
			return nil, fmt.Errorf("create capture: %w", err)
		}
		w.zw = zw
		out = zw
	}
	w.buf = bufio.NewWriter(out)
	return w, nil
}

// Append writes one frame received for consumerID at time at.
func (w *Writer) Append(consumerID string, f types.Frame, at time.Time) error {
	w.seq++
	payload, err := msgpack.Marshal(&Entry{
		Seq:        w.seq,
		Protocol:   f.Protocol,
		ConsumerID: consumerID,
		ReceivedAt: at.UnixNano(),
		Payload:    f.Payload,
		Line:       f.Line,
	})
	if err != nil {
		return fmt.Errorf("encode capture entry: %w", err)
	}
	if _, err := w.buf.Write(frame.Encode(payload)); err != nil {
		return fmt.Errorf("write capture entry: %w", err)
	}
	return nil
}

// Count returns the number of entries written.
func (w *Writer) Count() uint64 {
	return w.seq
}

// Close flushes buffered entries and closes the file.
func (w *Writer) Close() error {
	errs := []error{w.buf.Flush()}
	if w.zw != nil {
		errs = append(errs, w.zw.Close())
	}
	errs = append(errs, w.file.Close())
	return errors.Join(errs...)
}

// Reader reads entries from a capture file.
type Reader struct {
	file   *os.File
	zr     *zstd.Decoder
	frames *frame.Reader
}

// Open opens a capture file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	r := &Reader{file: f}

	var in io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, CompressedSuffix) {
		zr, err := zstd.NewReader(in)
		if err != nil {
			iox.DiscardClose(f)
			return nil, fmt.Errorf("open capture: %w", err)
		}
		r.zr = zr
		in = zr
	}
	r.frames = frame.NewReader(in, 0)
	return r, nil
}

// Next returns the next entry, or io.EOF at the end of the file.
func (r *Reader) Next() (Entry, error) {
	payload, err := r.frames.ReadFrame()
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := msgpack.Unmarshal(payload, &e); err != nil {
		return Entry{}, &frame.FrameError{
			Kind: frame.FrameErrorDecode,
			Msg:  "failed to decode capture entry",
			Err:  err,
		}
	}
	return e, nil
}

// Close releases the file.
func (r *Reader) Close() error {
	if r.zr != nil {
		r.zr.Close()
	}
	return r.file.Close()
}

// Stats summarizes a capture file.
type Stats struct {
	Entries    int            `json:"entries" yaml:"entries"`
	Bytes      int64          `json:"bytes" yaml:"bytes"`
	ByConsumer map[string]int `json:"by_consumer" yaml:"by_consumer"`
	ByProtocol map[string]int `json:"by_protocol" yaml:"by_protocol"`
	First      time.Time      `json:"first" yaml:"first"`
	Last       time.Time      `json:"last" yaml:"last"`
}

// Duration returns the time spanned by the capture.
func (s Stats) Duration() time.Duration {
	if s.Entries == 0 {
		return 0
	}
	return s.Last.Sub(s.First)
}

// Inspect reads a whole capture file and summarizes it. A truncated tail is
// reported as an error along with the stats read so far.
func Inspect(path string) (Stats, error) {
	stats := Stats{
		ByConsumer: make(map[string]int),
		ByProtocol: make(map[string]int),
	}
	r, err := Open(path)
	if err != nil {
		return stats, err
	}
	defer iox.DiscardClose(r)

	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		at := e.Time()
		if stats.Entries == 0 || at.Before(stats.First) {
			stats.First = at
		}
		if at.After(stats.Last) {
			stats.Last = at
		}
		stats.Entries++
		stats.Bytes += int64(e.Frame().Size())
		stats.ByConsumer[e.ConsumerID]++
		stats.ByProtocol[string(e.Protocol)]++
	}
}
