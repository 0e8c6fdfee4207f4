package types

import "fmt"

// RemoteFileEntry is one log file from the most recent remote listing.
type RemoteFileEntry struct {
	Name       string `json:"name" yaml:"name"`
	Size       int64  `json:"size" yaml:"size" render:"bytes"`
	Randomized bool   `json:"randomized" yaml:"randomized"`
}

// Progress reports transfer progress to the consumer.
//
// Exactly one form is meaningful per value:
//   - Indeterminate: no size information is available
//   - Total > 0 with Current: a single-file {current,total} pair
//   - Fraction in [0,1]: aggregate progress of a batch
type Progress struct {
	Fraction      float64 `json:"fraction"`
	Current       int64   `json:"current,omitempty"`
	Total         int64   `json:"total,omitempty"`
	Indeterminate bool    `json:"indeterminate,omitempty"`
}

// IndeterminateProgress returns a progress value with no known size.
func IndeterminateProgress() Progress {
	return Progress{Indeterminate: true}
}

// BytesProgress returns a {current,total} progress value. A zero total is
// reported as indeterminate.
func BytesProgress(current, total int64) Progress {
	if total <= 0 {
		return IndeterminateProgress()
	}
	return Progress{
		Fraction: clampFraction(float64(current) / float64(total)),
		Current:  current,
		Total:    total,
	}
}

// FractionProgress returns an aggregate fraction clamped to [0,1].
func FractionProgress(f float64) Progress {
	return Progress{Fraction: clampFraction(f)}
}

func clampFraction(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// SavedFile reports a completed file transfer. Open is set for single-file
// saves, where the consumer is offered to open the result.
type SavedFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
	Open bool   `json:"open"`
}

// SaveSummary is emitted once when every name of a batch save is terminal.
type SaveSummary struct {
	Requested int `json:"requested"`
	Saved     int `json:"saved"`
	Skipped   int `json:"skipped"`
}

// NoNewFiles reports whether every requested name already existed locally.
func (s SaveSummary) NoNewFiles() bool {
	return s.Saved == 0 && s.Skipped == s.Requested
}

// String renders the summary for display, e.g. "1 new log (1 skipped)".
func (s SaveSummary) String() string {
	if s.NoNewFiles() {
		return "No new logs found"
	}
	plural := "s"
	if s.Saved == 1 {
		plural = ""
	}
	msg := fmt.Sprintf("%d new log%s", s.Saved, plural)
	if s.Skipped > 0 {
		msg += fmt.Sprintf(" (%d skipped)", s.Skipped)
	}
	return msg
}
