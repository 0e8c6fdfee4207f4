// Package transport provides TCP connections whose lifecycle events are
// delivered on the event loop.
//
// Connect returns immediately. Dialing, reading and writing happen on worker
// goroutines; every connect, data and close event is posted to the loop and
// suppressed once the connection has been closed locally. Writes are queued
// in a bounded outbox so the loop never blocks on a socket.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/tlink/loop"
	"github.com/pithecene-io/tlink/registry"
	"github.com/pithecene-io/tlink/types"
)

// Defaults for TCP connections.
const (
	DefaultOutboxSize     = 64
	DefaultReadBufferSize = 32 * 1024
	DefaultWriteTimeout   = 5 * time.Second
)

// ErrOutboxFull is returned by Write when the outbox cannot take another
// payload. The payload is dropped.
var ErrOutboxFull = errors.New("transport outbox full")

// Handler receives connection events on the loop.
type Handler interface {
	// OnConnect is called once when the connection is established.
	OnConnect()
	// OnData is called for each inbound chunk. The slice is owned by the
	// handler.
	OnData(p []byte)
	// OnClose is called at most once when the connection fails or the peer
	// closes it. It is not called after a local Close.
	OnClose(err error)
}

// Connector opens connections.
type Connector interface {
	Connect(address string, port int, h Handler) registry.Transport
}

// TCPConnector dials TCP connections.
type TCPConnector struct {
	Loop           *loop.Loop
	Dialer         *net.Dialer
	OutboxSize     int
	ReadBufferSize int
	WriteTimeout   time.Duration
}

// NewTCPConnector creates a TCP connector posting events to l.
func NewTCPConnector(l *loop.Loop) *TCPConnector {
	return &TCPConnector{
		Loop:           l,
		Dialer:         &net.Dialer{KeepAlive: 15 * time.Second},
		OutboxSize:     DefaultOutboxSize,
		ReadBufferSize: DefaultReadBufferSize,
		WriteTimeout:   DefaultWriteTimeout,
	}
}

// Connect starts dialing address:port and returns the connection at once.
func (c *TCPConnector) Connect(address string, port int, h Handler) registry.Transport {
	outbox := c.OutboxSize
	if outbox <= 0 {
		outbox = DefaultOutboxSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &TCPTransport{
		loop:   c.Loop,
		target: net.JoinHostPort(address, strconv.Itoa(port)),
		h:      h,
		outbox: make(chan []byte, outbox),
		ctx:    ctx,
		cancel: cancel,
	}
	dialer := c.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	readSize := c.ReadBufferSize
	if readSize <= 0 {
		readSize = DefaultReadBufferSize
	}
	writeTimeout := c.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	go t.dial(dialer, readSize, writeTimeout)
	return t
}

// TCPTransport is a connection created by TCPConnector.
type TCPTransport struct {
	loop   *loop.Loop
	target string
	h      Handler
	outbox chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	mu   sync.Mutex
	conn net.Conn

	failOnce sync.Once
}

// Target returns the host:port being dialed.
func (t *TCPTransport) Target() string {
	return t.target
}

func (t *TCPTransport) dial(d *net.Dialer, readSize int, writeTimeout time.Duration) {
	conn, err := d.DialContext(t.ctx, "tcp", t.target)
	if err != nil {
		t.fail(types.NewLinkError(types.ErrConnect, "dial", t.target, err))
		return
	}

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	t.conn = conn
	t.mu.Unlock()

	t.post(t.h.OnConnect)
	go t.writeLoop(conn, writeTimeout)
	t.readLoop(conn, readSize)
}

func (t *TCPTransport) readLoop(conn net.Conn, size int) {
	buf := make([]byte, size)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			t.post(func() { t.h.OnData(chunk) })
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				t.fail(types.NewLinkError(types.ErrClosed, "read", t.target, nil))
			} else {
				t.fail(types.NewLinkError(types.ErrClosed, "read", t.target, err))
			}
			return
		}
	}
}

func (t *TCPTransport) writeLoop(conn net.Conn, timeout time.Duration) {
	for {
		select {
		case <-t.ctx.Done():
			return
		case p := <-t.outbox:
			_ = conn.SetWriteDeadline(time.Now().Add(timeout))
			if _, err := conn.Write(p); err != nil {
				t.fail(types.NewLinkError(types.ErrClosed, "write", t.target, err))
				_ = conn.Close()
				return
			}
		}
	}
}

// post delivers an event unless the transport was closed locally. The
// closed check runs on the loop, so no event follows a Close made there.
func (t *TCPTransport) post(fn func()) {
	t.loop.Post(func() {
		if t.closed.Load() {
			return
		}
		fn()
	})
}

func (t *TCPTransport) fail(err error) {
	t.failOnce.Do(func() {
		t.post(func() { t.h.OnClose(err) })
	})
}

// Write queues p for delivery without blocking. Payloads written before the
// connection is established are sent once it is.
func (t *TCPTransport) Write(p []byte) error {
	if t.closed.Load() {
		return types.NewLinkError(types.ErrClosed, "write", t.target, nil)
	}
	select {
	case t.outbox <- p:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Close tears the connection down and suppresses further events. Idempotent.
func (t *TCPTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.cancel()
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	return nil
}

var _ registry.Transport = (*TCPTransport)(nil)
