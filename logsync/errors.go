package logsync

import (
	"errors"
	"strings"
)

// Errors returned synchronously by Save.
var (
	// ErrNotReady indicates no connection is established.
	ErrNotReady = errors.New("sync session not connected")
	// ErrBusy indicates another save is still running.
	ErrBusy = errors.New("save already in progress")
	// ErrNoFiles indicates Save was called without names.
	ErrNoFiles = errors.New("no files requested")
)

// describeRules map substrings of raw error text to user-facing messages,
// checked in order.
var describeRules = []struct {
	substrings []string
	message    string
}{
	{[]string{"no such file", "not exist"}, "Log folder not found. Check the configured path."},
	{[]string{"no such host", "lookup "}, "Unable to resolve the robot address."},
	{[]string{"unable to authenticate", "handshake failed", "authentication"}, "Authentication with the robot failed."},
	{[]string{"timed out", "timeout", "deadline exceeded"}, "Connection to the robot timed out."},
	{[]string{"eof", "connection lost", "connection reset", "broken pipe", "closed network connection"}, "Lost connection to the robot."},
	{[]string{"connection refused"}, "The robot refused the connection."},
}

// Describe maps a sync error to a message for display. Unrecognized errors
// are shown verbatim with a generic prefix.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	raw := err.Error()
	lower := strings.ToLower(raw)
	for _, rule := range describeRules {
		for _, s := range rule.substrings {
			if strings.Contains(lower, s) {
				return rule.message
			}
		}
	}
	return "Error: " + raw
}
