package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/coder/quartz"

	"github.com/pithecene-io/tlink/archive"
	"github.com/pithecene-io/tlink/log"
	"github.com/pithecene-io/tlink/logsync"
	"github.com/pithecene-io/tlink/notify"
	"github.com/pithecene-io/tlink/types"
)

// syncSink is the logsync consumer shared by list, get and sync. It prints
// outcomes, archives saved files and publishes status events. Hooks let
// each command drive its own control flow; all run on the loop.
type syncSink struct {
	address    string
	out        io.Writer
	logger     *log.Logger
	clock      quartz.Clock
	archiver   *archive.Archiver
	dispatcher *notify.Dispatcher
	quiet      bool

	onListing func([]types.RemoteFileEntry)
	onAlert   func(error)
	onSaved   func(types.SavedFile)
	onSummary func(types.SaveSummary)

	saved    []string
	archives sync.WaitGroup
}

// Listing implements logsync.Consumer.
func (s *syncSink) Listing(entries []types.RemoteFileEntry) {
	s.logger.Debug("listing", map[string]any{"files": len(entries)})
	if s.onListing != nil {
		s.onListing(entries)
	}
}

// Alert implements logsync.Consumer.
func (s *syncSink) Alert(err error) {
	msg := logsync.Describe(err)
	s.logger.Warn(msg, map[string]any{
		"address": s.address,
		"kind":    types.KindName(err),
		"error":   err.Error(),
	})
	if s.dispatcher != nil {
		s.dispatcher.Send(notify.SyncError(s.address, msg, err, s.clock.Now()))
	}
	if s.onAlert != nil {
		s.onAlert(err)
	}
}

// Progress implements logsync.Consumer.
func (s *syncSink) Progress(p types.Progress) {
	s.logger.Debug("progress", map[string]any{
		"fraction": p.Fraction,
		"current":  p.Current,
		"total":    p.Total,
	})
}

// Saved implements logsync.Consumer.
func (s *syncSink) Saved(f types.SavedFile) {
	if !s.quiet {
		fmt.Fprintf(s.out, "saved %s\n", f.Path)
	}
	s.saved = append(s.saved, f.Name)
	s.archive(f)

	// A single-file save has no summary; publish it here.
	if f.Open && s.dispatcher != nil {
		summary := types.SaveSummary{Requested: 1, Saved: 1}
		s.dispatcher.Send(notify.LogsSaved(s.address, []string{f.Name}, summary, s.clock.Now()))
		s.saved = nil
	}
	if s.onSaved != nil {
		s.onSaved(f)
	}
}

// Summary implements logsync.Consumer.
func (s *syncSink) Summary(summary types.SaveSummary) {
	if !s.quiet {
		fmt.Fprintln(s.out, summary.String())
	}
	if s.dispatcher != nil && summary.Saved > 0 {
		s.dispatcher.Send(notify.LogsSaved(s.address, s.saved, summary, s.clock.Now()))
	}
	s.saved = nil
	if s.onSummary != nil {
		s.onSummary(summary)
	}
}

// archive copies f into the archive store off the loop.
func (s *syncSink) archive(f types.SavedFile) {
	if s.archiver == nil {
		return
	}
	at := s.clock.Now()
	s.archives.Add(1)
	go func() {
		defer s.archives.Done()
		key, written, err := s.archiver.Archive(context.Background(), s.address, f.Path, at)
		if err != nil {
			s.logger.Error("archive failed", map[string]any{"path": f.Path, "key": key, "error": err.Error()})
			return
		}
		s.logger.Info("archived", map[string]any{"key": key, "written": written})
	}()
}

// wait blocks until every archive started so far has finished.
func (s *syncSink) wait() {
	s.archives.Wait()
}

var _ logsync.Consumer = (*syncSink)(nil)
