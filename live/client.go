// Package live maintains streaming telemetry sessions to a robot.
//
// A Client serves one protocol family. Each consumer has at most one
// session; starting again replaces it. A session fails at most once, on
// connect timeout, data silence, a transport error, an oversized frame or
// an unreachable consumer, and is never retried here. Callers that want
// reconnection issue Start again after a failure.
//
// All methods must be called on the event loop.
package live

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/tlink/frame"
	"github.com/pithecene-io/tlink/log"
	"github.com/pithecene-io/tlink/loop"
	"github.com/pithecene-io/tlink/metrics"
	"github.com/pithecene-io/tlink/registry"
	"github.com/pithecene-io/tlink/transport"
	"github.com/pithecene-io/tlink/types"
)

// Default timeouts.
const (
	DefaultConnectTimeout = time.Second
	DefaultDataTimeout    = 3 * time.Second
)

// Consumer receives decoded frames and failure reports.
type Consumer interface {
	// Record delivers one frame. An error means the consumer is gone and
	// the session is torn down.
	Record(consumerID string, f types.Frame) error
	// Failure reports the single terminal error of a session.
	Failure(consumerID string, err error)
}

// Config configures a Client.
type Config struct {
	Protocol       types.Protocol
	ConnectTimeout time.Duration
	DataTimeout    time.Duration
	// MaxFrameSize caps a binary frame or text line; zero selects the
	// decoder default.
	MaxFrameSize int
	Logger       *log.Logger
	Metrics      *metrics.Collector
}

// Client manages the sessions of one protocol family.
type Client struct {
	cfg       Config
	loop      *loop.Loop
	registry  *registry.Registry
	connector transport.Connector
	consumer  Consumer
	logger    *log.Logger
	metrics   *metrics.Collector

	sessions map[string]*session
}

type session struct {
	id         string
	consumerID string
	target     string
	key        types.SessionKey
	transport  registry.Transport
	decoder    frame.Decoder

	connectTimer *loop.Timer
	dataTimer    *loop.Timer

	connected bool
	reported  bool
	done      bool
}

// NewClient creates a client. reg is shared with the heartbeat scheduler of
// the same protocol.
func NewClient(cfg Config, l *loop.Loop, reg *registry.Registry, conn transport.Connector, consumer Consumer) (*Client, error) {
	if _, err := frame.NewDecoder(cfg.Protocol, cfg.MaxFrameSize); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.DataTimeout <= 0 {
		cfg.DataTimeout = DefaultDataTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		cfg:       cfg,
		loop:      l,
		registry:  reg,
		connector: conn,
		consumer:  consumer,
		logger:    logger.With(map[string]any{"protocol": string(cfg.Protocol)}),
		metrics:   cfg.Metrics,
		sessions:  make(map[string]*session),
	}, nil
}

// Protocol returns the protocol family served by the client.
func (c *Client) Protocol() types.Protocol {
	return c.cfg.Protocol
}

// Start opens a session for consumerID to address:port, replacing any
// session the consumer already has. Port 0 selects the protocol default.
func (c *Client) Start(consumerID, address string, port int) {
	if port <= 0 {
		port = c.cfg.Protocol.DefaultPort()
	}
	if old, ok := c.sessions[consumerID]; ok {
		c.teardown(old)
	}

	decoder, _ := frame.NewDecoder(c.cfg.Protocol, c.cfg.MaxFrameSize)
	s := &session{
		id:         uuid.NewString(),
		consumerID: consumerID,
		target:     net.JoinHostPort(address, strconv.Itoa(port)),
		key:        types.SessionKey{ConsumerID: consumerID, Protocol: c.cfg.Protocol},
		decoder:    decoder,
	}
	c.sessions[consumerID] = s

	s.transport = c.connector.Connect(address, port, &handler{client: c, session: s})
	c.registry.Install(s.key, s.transport)
	s.connectTimer = c.loop.AfterFunc(c.cfg.ConnectTimeout, func() { c.connectTimedOut(s) })

	c.metrics.IncSessionStarted()
	c.logger.Info("session starting", map[string]any{
		"consumer_id": consumerID,
		"session_id":  s.id,
		"address":     s.target,
	})
}

// Stop tears down the consumer's session without reporting a failure.
// Stopping an absent session is a no-op.
func (c *Client) Stop(consumerID string) {
	s, ok := c.sessions[consumerID]
	if !ok {
		return
	}
	c.teardown(s)
	c.metrics.IncSessionStopped()
	c.logger.Info("session stopped", map[string]any{
		"consumer_id": consumerID,
		"session_id":  s.id,
	})
}

// CloseConsumer releases everything held for a consumer that went away.
func (c *Client) CloseConsumer(consumerID string) {
	c.Stop(consumerID)
}

// Active reports whether the consumer has a session that has not failed.
func (c *Client) Active(consumerID string) bool {
	s, ok := c.sessions[consumerID]
	return ok && !s.reported
}

// Connected reports whether the consumer's session is established.
func (c *Client) Connected(consumerID string) bool {
	s, ok := c.sessions[consumerID]
	return ok && s.connected && !s.reported
}

// Shutdown stops every session.
func (c *Client) Shutdown() {
	for id := range c.sessions {
		c.Stop(id)
	}
}

func (c *Client) current(s *session) bool {
	return !s.done && c.sessions[s.consumerID] == s
}

func (c *Client) stopTimers(s *session) {
	s.connectTimer.Stop()
	s.dataTimer.Stop()
	s.connectTimer = nil
	s.dataTimer = nil
}

func (c *Client) teardown(s *session) {
	if s.done {
		return
	}
	s.done = true
	c.stopTimers(s)
	s.decoder.Reset()
	if c.sessions[s.consumerID] == s {
		delete(c.sessions, s.consumerID)
	}
	if t, ok := c.registry.Get(s.key); ok && t == s.transport {
		c.registry.Remove(s.key)
	} else {
		_ = s.transport.Close()
	}
}

// fail tears the session down and reports err unless a failure was already
// reported for it.
func (c *Client) fail(s *session, err error) {
	if s.done {
		return
	}
	c.teardown(s)
	c.report(s, err)
}

func (c *Client) report(s *session, err error) {
	if s.reported {
		return
	}
	s.reported = true
	c.metrics.IncSessionFailed(types.KindName(err))
	c.logger.Warn("session failed", map[string]any{
		"consumer_id": s.consumerID,
		"session_id":  s.id,
		"address":     s.target,
		"error":       err.Error(),
	})
	c.consumer.Failure(s.consumerID, err)
}

// connectTimedOut reports the failure once. The transport stays up until its
// own error path runs; if it connects later it is torn down silently.
func (c *Client) connectTimedOut(s *session) {
	if !c.current(s) || s.connected {
		return
	}
	s.connectTimer = nil
	c.report(s, types.NewLinkError(types.ErrConnect, "connect", s.target,
		fmt.Errorf("timed out after %s", c.cfg.ConnectTimeout)))
}

func (c *Client) dataTimedOut(s *session) {
	if !c.current(s) {
		return
	}
	s.dataTimer = nil
	c.fail(s, types.NewLinkError(types.ErrTimeout, "read", s.target, nil))
}

func (c *Client) connected(s *session) {
	if !c.current(s) {
		return
	}
	if s.reported {
		c.teardown(s)
		return
	}
	s.connectTimer.Stop()
	s.connectTimer = nil
	s.connected = true
	s.dataTimer = c.loop.AfterFunc(c.cfg.DataTimeout, func() { c.dataTimedOut(s) })
	c.logger.Info("session connected", map[string]any{
		"consumer_id": s.consumerID,
		"session_id":  s.id,
		"address":     s.target,
	})
}

func (c *Client) received(s *session, chunk []byte) {
	if !c.current(s) || s.reported {
		return
	}
	c.metrics.AddBytesReceived(len(chunk))
	s.dataTimer.Reset(c.cfg.DataTimeout)

	err := s.decoder.Feed(chunk, func(f types.Frame) error {
		if err := c.consumer.Record(s.consumerID, f); err != nil {
			return types.NewLinkError(types.ErrForward, "forward", s.consumerID, err)
		}
		c.metrics.IncFrameForwarded()
		return nil
	})
	if err == nil {
		return
	}

	var frameErr *frame.FrameError
	if errors.As(err, &frameErr) {
		err = types.NewLinkError(types.ErrProtocol, "decode", s.target, frameErr)
	}
	c.fail(s, err)
}

func (c *Client) closed(s *session, err error) {
	if !c.current(s) {
		return
	}
	if err == nil {
		err = types.NewLinkError(types.ErrClosed, "read", s.target, nil)
	}
	c.fail(s, err)
}

// handler adapts transport events to one session.
type handler struct {
	client  *Client
	session *session
}

func (h *handler) OnConnect()        { h.client.connected(h.session) }
func (h *handler) OnData(p []byte)   { h.client.received(h.session, p) }
func (h *handler) OnClose(err error) { h.client.closed(h.session, err) }
