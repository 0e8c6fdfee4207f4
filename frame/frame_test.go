package frame

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/pithecene-io/tlink/types"
)

// collectBinary feeds chunks into a fresh decoder and returns emitted payloads.
func collectBinary(t *testing.T, chunks [][]byte) []string {
	t.Helper()
	d := NewBinaryDecoder(0)
	var got []string
	for _, c := range chunks {
		err := d.Feed(c, func(f types.Frame) error {
			got = append(got, string(f.Payload))
			return nil
		})
		if err != nil {
			t.Fatalf("Feed failed: %v", err)
		}
	}
	if d.Buffered() != 0 {
		t.Errorf("Buffered = %d after complete stream, want 0", d.Buffered())
	}
	return got
}

// splitAt cuts stream at the given offsets (sorted, within bounds).
func splitAt(stream []byte, cuts []int) [][]byte {
	var chunks [][]byte
	prev := 0
	for _, c := range cuts {
		chunks = append(chunks, stream[prev:c])
		prev = c
	}
	return append(chunks, stream[prev:])
}

func TestBinaryDecoder_Example(t *testing.T) {
	stream := []byte{0, 0, 0, 3, 'A', 'B', 'C', 0, 0, 0, 2, 'X', 'Y'}
	want := []string{"ABC", "XY"}

	tests := []struct {
		name   string
		chunks [][]byte
	}{
		{"one chunk", [][]byte{stream}},
		{"split inside header", splitAt(stream, []int{2})},
		{"split inside payload", splitAt(stream, []int{5})},
		{"split at frame boundary", splitAt(stream, []int{7})},
		{"split inside second header", splitAt(stream, []int{7, 9})},
		{"empty chunks interleaved", [][]byte{{}, stream[:4], {}, stream[4:], {}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectBinary(t, tt.chunks)
			if strings.Join(got, ",") != strings.Join(want, ",") {
				t.Errorf("payloads = %q, want %q", got, want)
			}
		})
	}
}

func TestBinaryDecoder_ByteAtATime(t *testing.T) {
	payloads := []string{"ABC", "XY", strings.Repeat("z", 300), "1"}
	var stream []byte
	for _, p := range payloads {
		stream = append(stream, Encode([]byte(p))...)
	}

	var chunks [][]byte
	for i := range stream {
		chunks = append(chunks, stream[i:i+1])
	}

	got := collectBinary(t, chunks)
	if strings.Join(got, ",") != strings.Join(payloads, ",") {
		t.Errorf("payloads = %q, want %q", got, payloads)
	}
}

func TestBinaryDecoder_RandomChunking(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		n := 1 + rng.Intn(20)
		payloads := make([]string, n)
		var stream []byte
		for i := range payloads {
			b := make([]byte, 1+rng.Intn(64))
			rng.Read(b)
			payloads[i] = string(b)
			stream = append(stream, Encode(b)...)
		}

		var cuts []int
		for pos := rng.Intn(8); pos < len(stream); pos += 1 + rng.Intn(16) {
			if pos > 0 {
				cuts = append(cuts, pos)
			}
		}

		got := collectBinary(t, splitAt(stream, cuts))
		if len(got) != len(payloads) {
			t.Fatalf("iter %d: got %d payloads, want %d", iter, len(got), len(payloads))
		}
		for i := range payloads {
			if got[i] != payloads[i] {
				t.Fatalf("iter %d: payload[%d] mismatch", iter, i)
			}
		}
	}
}

func TestBinaryDecoder_ZeroLengthNotForwarded(t *testing.T) {
	stream := append(Encode(nil), Encode([]byte("ok"))...)
	got := collectBinary(t, [][]byte{stream})
	if len(got) != 1 || got[0] != "ok" {
		t.Errorf("payloads = %q, want [ok]", got)
	}
}

func TestBinaryDecoder_PartialStaysBuffered(t *testing.T) {
	d := NewBinaryDecoder(0)
	frame := Encode([]byte("hello"))

	emitted := 0
	if err := d.Feed(frame[:6], func(types.Frame) error { emitted++; return nil }); err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if emitted != 0 {
		t.Errorf("emitted %d frames from partial input, want 0", emitted)
	}
	if d.Buffered() != 6 {
		t.Errorf("Buffered = %d, want 6", d.Buffered())
	}

	d.Reset()
	if d.Buffered() != 0 {
		t.Errorf("Buffered after Reset = %d, want 0", d.Buffered())
	}
}

func TestBinaryDecoder_TooLarge(t *testing.T) {
	d := NewBinaryDecoder(64)

	header := []byte{0x7f, 0xff, 0xff, 0xff}
	err := d.Feed(header, func(types.Frame) error {
		t.Fatal("emit called for oversized frame")
		return nil
	})

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("expected *FrameError, got %T: %v", err, err)
	}
	if frameErr.Kind != FrameErrorTooLarge {
		t.Errorf("Kind = %v, want too_large", frameErr.Kind)
	}
	if !errors.Is(err, types.ErrProtocol) {
		t.Error("expected errors.Is(err, types.ErrProtocol)")
	}
	if !IsFatalFrameError(err) {
		t.Error("oversized frame should be fatal")
	}
}

func TestBinaryDecoder_AtCap(t *testing.T) {
	d := NewBinaryDecoder(LengthPrefixSize + 8)
	var got []byte
	err := d.Feed(Encode([]byte("12345678")), func(f types.Frame) error {
		got = f.Payload
		return nil
	})
	if err != nil {
		t.Fatalf("frame exactly at cap rejected: %v", err)
	}
	if string(got) != "12345678" {
		t.Errorf("payload = %q, want 12345678", got)
	}
}

func TestBinaryDecoder_EmitErrorStops(t *testing.T) {
	d := NewBinaryDecoder(0)
	stream := append(Encode([]byte("a")), Encode([]byte("b"))...)
	gone := errors.New("window closed")

	calls := 0
	err := d.Feed(stream, func(types.Frame) error {
		calls++
		return gone
	})
	if !errors.Is(err, gone) {
		t.Fatalf("err = %v, want %v", err, gone)
	}
	if calls != 1 {
		t.Errorf("emit called %d times, want 1", calls)
	}
}

// collectText feeds chunks into a fresh text decoder.
func collectText(t *testing.T, chunks []string) []string {
	t.Helper()
	d := NewTextDecoder(0)
	var got []string
	for _, c := range chunks {
		err := d.Feed([]byte(c), func(f types.Frame) error {
			got = append(got, f.Line)
			return nil
		})
		if err != nil {
			t.Fatalf("Feed failed: %v", err)
		}
	}
	return got
}

func TestTextDecoder_Chunking(t *testing.T) {
	want := []string{"{\"pose\":[1,2,3]}", "", "path active", "héllo wörld"}
	stream := strings.Join(want, "\n") + "\n"

	tests := []struct {
		name   string
		chunks []string
	}{
		{"one chunk", []string{stream}},
		{"split before delimiter", []string{stream[:16], stream[16:]}},
		{"split after delimiter", []string{stream[:17], stream[17:]}},
		{"split inside record", []string{stream[:5], stream[5:20], stream[20:]}},
	}

	// Byte-at-a-time splits multi-byte runes too.
	var bytewise []string
	for i := 0; i < len(stream); i++ {
		bytewise = append(bytewise, stream[i:i+1])
	}
	tests = append(tests, struct {
		name   string
		chunks []string
	}{"byte at a time", bytewise})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectText(t, tt.chunks)
			if len(got) != len(want) {
				t.Fatalf("got %d lines %q, want %d", len(got), got, len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("line[%d] = %q, want %q", i, got[i], want[i])
				}
			}
		})
	}
}

func TestTextDecoder_KeepsRemainder(t *testing.T) {
	d := NewTextDecoder(0)
	var got []string
	emit := func(f types.Frame) error { got = append(got, f.Line); return nil }

	if err := d.Feed([]byte("one\ntw"), emit); err != nil {
		t.Fatal(err)
	}
	if d.Buffered() != 2 {
		t.Errorf("Buffered = %d, want 2", d.Buffered())
	}
	if err := d.Feed([]byte("o\n"), emit); err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "one,two" {
		t.Errorf("lines = %q, want [one two]", got)
	}
}

func TestTextDecoder_TooLarge(t *testing.T) {
	d := NewTextDecoder(8)
	err := d.Feed([]byte("0123456789"), func(types.Frame) error { return nil })
	if !errors.Is(err, types.ErrProtocol) {
		t.Fatalf("err = %v, want protocol error", err)
	}
}

func TestNewDecoder(t *testing.T) {
	if _, ok := mustDecoder(t, types.ProtocolBinary).(*BinaryDecoder); !ok {
		t.Error("binary protocol should return *BinaryDecoder")
	}
	if _, ok := mustDecoder(t, types.ProtocolText).(*TextDecoder); !ok {
		t.Error("text protocol should return *TextDecoder")
	}
	if _, err := NewDecoder("nt4", 0); err == nil {
		t.Error("expected error for unknown protocol")
	}
}

func mustDecoder(t *testing.T, p types.Protocol) Decoder {
	t.Helper()
	d, err := NewDecoder(p, 0)
	if err != nil {
		t.Fatalf("NewDecoder(%q) failed: %v", p, err)
	}
	return d
}

func TestHeartbeat(t *testing.T) {
	if !bytes.Equal(Heartbeat(types.ProtocolBinary), []byte{6, 3, 5, 4}) {
		t.Errorf("binary heartbeat = %v", Heartbeat(types.ProtocolBinary))
	}
	if string(Heartbeat(types.ProtocolText)) != "ping\n" {
		t.Errorf("text ping = %q", Heartbeat(types.ProtocolText))
	}
	if Heartbeat("other") != nil {
		t.Error("unknown protocol should have no heartbeat")
	}

	// Callers own the returned slice.
	Heartbeat(types.ProtocolBinary)[0] = 0xff
	if got := Heartbeat(types.ProtocolBinary); got[0] != 6 {
		t.Errorf("binary heartbeat after caller write = %v, want [6 3 5 4]", got)
	}
}

func TestReader_MultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	for _, p := range []string{"first", "second", "third"} {
		buf.Write(Encode([]byte(p)))
	}

	r := NewReader(&buf, 0)
	var got []string
	for {
		payload, err := r.ReadFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		got = append(got, string(payload))
	}
	if strings.Join(got, ",") != "first,second,third" {
		t.Errorf("frames = %q", got)
	}
}

func TestReader_Truncated(t *testing.T) {
	frame := Encode([]byte("truncated"))
	r := NewReader(bytes.NewReader(frame[:7]), 0)

	_, err := r.ReadFrame()
	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorPartial {
		t.Fatalf("err = %v, want partial frame error", err)
	}
}

func TestReader_PartialPrefix(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0, 0}), 0)
	_, err := r.ReadFrame()
	if !IsFatalFrameError(err) {
		t.Fatalf("err = %v, want fatal partial error", err)
	}
}

func TestReader_TooLarge(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff}), 1024)
	_, err := r.ReadFrame()
	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorTooLarge {
		t.Fatalf("err = %v, want too_large", err)
	}
}
