package heartbeat

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/pithecene-io/tlink/loop/looptest"
	"github.com/pithecene-io/tlink/metrics"
	"github.com/pithecene-io/tlink/registry"
	"github.com/pithecene-io/tlink/types"
)

type fakeTransport struct {
	writes [][]byte
	err    error
}

func (f *fakeTransport) Write(p []byte) error {
	f.writes = append(f.writes, p)
	return f.err
}

func (f *fakeTransport) Close() error { return nil }

func TestTick_NoSessions(t *testing.T) {
	_, l := looptest.New(t)
	s := New(l, registry.New(), Config{Protocol: types.ProtocolBinary})

	if n := s.Tick(); n != 0 {
		t.Errorf("Tick = %d, want 0", n)
	}
}

func TestTick_WritesOnlyMatchingProtocol(t *testing.T) {
	_, l := looptest.New(t)
	reg := registry.New()
	bin1 := &fakeTransport{}
	bin2 := &fakeTransport{err: errors.New("broken pipe")}
	txt := &fakeTransport{}
	reg.Install(types.SessionKey{ConsumerID: "a", Protocol: types.ProtocolBinary}, bin1)
	reg.Install(types.SessionKey{ConsumerID: "b", Protocol: types.ProtocolBinary}, bin2)
	reg.Install(types.SessionKey{ConsumerID: "a", Protocol: types.ProtocolText}, txt)

	collector := metrics.NewCollector()
	s := New(l, reg, Config{Protocol: types.ProtocolBinary, Metrics: collector})

	if n := s.Tick(); n != 2 {
		t.Errorf("Tick = %d, want 2", n)
	}
	if len(bin1.writes) != 1 || !bytes.Equal(bin1.writes[0], []byte{6, 3, 5, 4}) {
		t.Errorf("bin1 writes = %v", bin1.writes)
	}
	if len(bin2.writes) != 1 {
		t.Errorf("bin2 writes = %d, want 1", len(bin2.writes))
	}
	if len(txt.writes) != 0 {
		t.Errorf("text session got %d binary heartbeats", len(txt.writes))
	}
	if got := collector.Snapshot().HeartbeatsSent; got != 2 {
		t.Errorf("HeartbeatsSent = %d, want 2", got)
	}
}

func TestScheduler_TextPingInterval(t *testing.T) {
	clock, l := looptest.New(t)
	reg := registry.New()
	tr := &fakeTransport{}
	reg.Install(types.SessionKey{ConsumerID: "w", Protocol: types.ProtocolText}, tr)

	s := New(l, reg, Config{Protocol: types.ProtocolText})
	s.Start()
	s.Start()

	looptest.Advance(t, clock, l, time.Second)
	if len(tr.writes) != 4 {
		t.Errorf("writes = %d, want 4", len(tr.writes))
	}
	if string(tr.writes[0]) != "ping\n" {
		t.Errorf("payload = %q, want ping", tr.writes[0])
	}

	s.Stop()
	s.Stop()
	looptest.Advance(t, clock, l, time.Second)
	if len(tr.writes) != 4 {
		t.Errorf("writes after Stop = %d, want 4", len(tr.writes))
	}
	if l.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", l.Pending())
	}
}

func TestDefaultInterval(t *testing.T) {
	if got := DefaultInterval(types.ProtocolBinary); got != time.Second {
		t.Errorf("binary = %v, want 1s", got)
	}
	if got := DefaultInterval(types.ProtocolText); got != 250*time.Millisecond {
		t.Errorf("text = %v, want 250ms", got)
	}
}
