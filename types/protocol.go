//nolint:revive // types is a common Go package naming convention
package types

import (
	"fmt"
	"strings"
)

// Protocol identifies a live telemetry protocol family.
type Protocol string

// Protocol families carried over TCP.
const (
	// ProtocolBinary is the length-prefixed binary telemetry stream.
	ProtocolBinary Protocol = "binary"
	// ProtocolText is the newline-delimited text telemetry stream.
	ProtocolText Protocol = "text"
)

// Default TCP ports per protocol family.
const (
	DefaultBinaryPort = 5800
	DefaultTextPort   = 5811
)

// DefaultPort returns the port used when a start request carries none.
func (p Protocol) DefaultPort() int {
	switch p {
	case ProtocolBinary:
		return DefaultBinaryPort
	case ProtocolText:
		return DefaultTextPort
	default:
		return 0
	}
}

// ParseProtocol parses a protocol name. Accepts "rlog" as an alias for
// binary and "lines" as an alias for text.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binary", "rlog":
		return ProtocolBinary, nil
	case "text", "lines":
		return ProtocolText, nil
	default:
		return "", fmt.Errorf("invalid protocol: %q (must be binary or text)", s)
	}
}

// SessionKey identifies a live session. At most one transport exists per key.
type SessionKey struct {
	ConsumerID string
	Protocol   Protocol
}

func (k SessionKey) String() string {
	return k.ConsumerID + "/" + string(k.Protocol)
}

// Frame is one decoded protocol unit. Payload is set for binary frames,
// Line for text frames. Frames are forwarded and then dropped.
type Frame struct {
	Protocol Protocol
	Payload  []byte
	Line     string
}

// Size returns the number of payload bytes carried by the frame.
func (f Frame) Size() int {
	if f.Protocol == ProtocolText {
		return len(f.Line)
	}
	return len(f.Payload)
}
