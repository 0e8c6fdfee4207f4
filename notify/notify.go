// Package notify publishes status events to downstream systems.
//
// Events describe sync failures, saved logs and live stream failures.
// Publishers deliver them as JSON; the Dispatcher moves delivery off the
// event loop.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/tlink/types"
)

// Event types.
const (
	EventSyncError   = "sync_error"
	EventLogsSaved   = "logs_saved"
	EventLiveFailure = "live_failure"
)

// Event is the payload published for every status change.
type Event struct {
	ContractVersion string   `json:"contract_version"`
	EventType       string   `json:"event_type"`
	EventID         string   `json:"event_id"`
	Source          string   `json:"source"`
	Message         string   `json:"message"`
	Detail          string   `json:"detail,omitempty"`
	Kind            string   `json:"kind,omitempty"`
	Files           []string `json:"files,omitempty"`
	Saved           int      `json:"saved"`
	Skipped         int      `json:"skipped"`
	Timestamp       string   `json:"timestamp"` // RFC 3339
}

func newEvent(eventType, source string, at time.Time) *Event {
	return &Event{
		ContractVersion: types.ContractVersion,
		EventType:       eventType,
		EventID:         uuid.NewString(),
		Source:          source,
		Timestamp:       at.UTC().Format(time.RFC3339),
	}
}

// SyncError builds an event for a sync session failure.
// message is the user-facing description; err is kept as detail.
func SyncError(source, message string, err error, at time.Time) *Event {
	e := newEvent(EventSyncError, source, at)
	e.Message = message
	if err != nil {
		e.Detail = err.Error()
		e.Kind = types.KindName(err)
	}
	return e
}

// LogsSaved builds an event for a completed save.
func LogsSaved(source string, files []string, summary types.SaveSummary, at time.Time) *Event {
	e := newEvent(EventLogsSaved, source, at)
	e.Message = summary.String()
	e.Files = files
	e.Saved = summary.Saved
	e.Skipped = summary.Skipped
	return e
}

// LiveFailure builds an event for a terminal live session failure.
func LiveFailure(source, consumerID string, err error, at time.Time) *Event {
	e := newEvent(EventLiveFailure, source, at)
	e.Message = consumerID + " stream failed"
	if err != nil {
		e.Detail = err.Error()
		e.Kind = types.KindName(err)
	}
	return e
}

// Publisher delivers events to a downstream system.
type Publisher interface {
	// Publish sends one event. Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *Event) error

	// Close releases publisher resources.
	Close() error
}
