package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/tlink/logsync"
	"github.com/pithecene-io/tlink/types"
)

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards session callbacks to a program as messages, then to Next
// if set.
type Bridge struct {
	Program Sender
	Next    logsync.Consumer
}

func (b *Bridge) send(msg tea.Msg) {
	if b.Program != nil {
		b.Program.Send(msg)
	}
}

// Listing implements logsync.Consumer.
func (b *Bridge) Listing(entries []types.RemoteFileEntry) {
	b.send(ListingMsg(append([]types.RemoteFileEntry(nil), entries...)))
	if b.Next != nil {
		b.Next.Listing(entries)
	}
}

// Alert implements logsync.Consumer.
func (b *Bridge) Alert(err error) {
	b.send(AlertMsg{Err: err})
	if b.Next != nil {
		b.Next.Alert(err)
	}
}

// Progress implements logsync.Consumer.
func (b *Bridge) Progress(p types.Progress) {
	b.send(ProgressMsg(p))
	if b.Next != nil {
		b.Next.Progress(p)
	}
}

// Saved implements logsync.Consumer.
func (b *Bridge) Saved(f types.SavedFile) {
	b.send(SavedMsg(f))
	if b.Next != nil {
		b.Next.Saved(f)
	}
}

// Summary implements logsync.Consumer.
func (b *Bridge) Summary(s types.SaveSummary) {
	b.send(SummaryMsg(s))
	if b.Next != nil {
		b.Next.Summary(s)
	}
}

var _ logsync.Consumer = (*Bridge)(nil)
