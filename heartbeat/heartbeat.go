// Package heartbeat writes keep-alive payloads to every live session of one
// protocol family on a fixed interval.
package heartbeat

import (
	"time"

	"github.com/pithecene-io/tlink/frame"
	"github.com/pithecene-io/tlink/log"
	"github.com/pithecene-io/tlink/loop"
	"github.com/pithecene-io/tlink/metrics"
	"github.com/pithecene-io/tlink/registry"
	"github.com/pithecene-io/tlink/types"
)

// Default intervals per protocol family.
const (
	DefaultBinaryInterval = time.Second
	DefaultTextInterval   = 250 * time.Millisecond
)

// DefaultInterval returns the heartbeat interval for a protocol family.
func DefaultInterval(p types.Protocol) time.Duration {
	if p == types.ProtocolText {
		return DefaultTextInterval
	}
	return DefaultBinaryInterval
}

// Scheduler owns one periodic timer for a protocol family.
// Start, Stop and Tick must be called on the loop.
type Scheduler struct {
	loop     *loop.Loop
	registry *registry.Registry
	protocol types.Protocol
	payload  []byte
	interval time.Duration
	logger   *log.Logger
	metrics  *metrics.Collector

	timer *loop.Timer
}

// Config configures a Scheduler. Zero Interval and nil Payload select the
// protocol defaults.
type Config struct {
	Protocol types.Protocol
	Payload  []byte
	Interval time.Duration
	Logger   *log.Logger
	Metrics  *metrics.Collector
}

// New creates a scheduler writing into the sessions held by reg.
func New(l *loop.Loop, reg *registry.Registry, cfg Config) *Scheduler {
	payload := cfg.Payload
	if payload == nil {
		payload = frame.Heartbeat(cfg.Protocol)
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval(cfg.Protocol)
	}
	return &Scheduler{
		loop:     l,
		registry: reg,
		protocol: cfg.Protocol,
		payload:  payload,
		interval: interval,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// Start arms the periodic timer. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start() {
	if s.timer.Active() {
		return
	}
	s.timer = s.loop.Every(s.interval, func() { s.Tick() })
}

// Stop disarms the timer. Idempotent.
func (s *Scheduler) Stop() {
	s.timer.Stop()
	s.timer = nil
}

// Running reports whether the timer is armed.
func (s *Scheduler) Running() bool {
	return s.timer.Active()
}

// Tick writes the payload to every installed session of the protocol and
// returns the number of writes attempted. Write failures are ignored; a
// broken connection surfaces through its own close path.
func (s *Scheduler) Tick() int {
	n := 0
	s.registry.Each(s.protocol, func(key types.SessionKey, t registry.Transport) {
		n++
		if err := t.Write(s.payload); err != nil {
			s.logger.Debug("heartbeat write failed", map[string]any{
				"consumer_id": key.ConsumerID,
				"protocol":    string(key.Protocol),
				"error":       err.Error(),
			})
		}
	})
	s.metrics.IncHeartbeats(n)
	return n
}
