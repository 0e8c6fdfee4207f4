package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for connectivity failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrConnect indicates a transport-level connect or authentication
	// failure, including a connect timeout.
	ErrConnect = errors.New("connect failed")

	// ErrTimeout indicates data silence on an established live session.
	ErrTimeout = errors.New("data timeout")

	// ErrTransfer indicates an individual remote file transfer failed.
	ErrTransfer = errors.New("transfer failed")

	// ErrFileSystem indicates a local file-system check failed.
	ErrFileSystem = errors.New("file system error")

	// ErrProtocol indicates the peer violated the framing, e.g. an
	// oversized declared frame length.
	ErrProtocol = errors.New("protocol error")

	// ErrForward indicates the consumer could not accept a decoded frame.
	ErrForward = errors.New("consumer unreachable")

	// ErrClosed indicates the peer closed the stream.
	ErrClosed = errors.New("connection closed")
)

// LinkError wraps an underlying error with its classification.
// It preserves the original error in the chain for inspection via errors.As.
type LinkError struct {
	// Kind is the sentinel error for classification (e.g., ErrConnect).
	Kind error
	// Op is the operation that failed (e.g., "dial", "list", "get").
	Op string
	// Target is the address, key or path involved, if any.
	Target string
	// Err is the underlying error. May be nil for pure timeouts.
	Err error
}

func (e *LinkError) Error() string {
	msg := e.Op
	if e.Target != "" {
		msg += " " + e.Target
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Kind)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *LinkError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *LinkError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewLinkError creates a classified connectivity error.
func NewLinkError(kind error, op, target string, err error) *LinkError {
	return &LinkError{
		Kind:   kind,
		Op:     op,
		Target: target,
		Err:    err,
	}
}

// KindName returns a short label for the sentinel err matches, for metrics
// and event payloads. Unclassified errors return "unknown".
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrConnect):
		return "connect"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrTransfer):
		return "transfer"
	case errors.Is(err, ErrFileSystem):
		return "file_system"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrForward):
		return "forward"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "unknown"
	}
}
