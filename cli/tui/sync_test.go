package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/tlink/types"
)

func update(t *testing.T, m SyncModel, msgs ...tea.Msg) SyncModel {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(SyncModel)
	}
	return m
}

func TestSyncModel_Listing(t *testing.T) {
	m := NewSyncModel("10.2.54.2", "/home/lvuser/logs", nil)
	if m.Status() != StatusConnecting {
		t.Errorf("initial Status = %v, want connecting", m.Status())
	}

	m = update(t, m, ListingMsg{
		{Name: "Log_02.rlog", Size: 2048},
		{Name: "TBD.wpilog", Size: 10, Randomized: true},
	})
	if m.Status() != StatusConnected {
		t.Errorf("Status = %v, want connected", m.Status())
	}
	view := m.View()
	for _, want := range []string{"Log_02.rlog", "2.0 KB", "TBD.wpilog", "10.2.54.2"} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q:\n%s", want, view)
		}
	}
}

func TestSyncModel_AlertClearsListing(t *testing.T) {
	m := NewSyncModel("r", "/logs", nil)
	m = update(t, m,
		ListingMsg{{Name: "a.wpilog"}},
		AlertMsg{Err: errors.New("dial tcp: lookup roborio: no such host")},
	)
	if m.Status() != StatusReconnecting {
		t.Errorf("Status = %v, want reconnecting", m.Status())
	}
	view := m.View()
	if !strings.Contains(view, "Unable to resolve the robot address.") {
		t.Errorf("View missing described alert:\n%s", view)
	}
	if strings.Contains(view, "a.wpilog") {
		t.Error("listing should be cleared after an alert")
	}

	m = update(t, m, ListingMsg{{Name: "b.wpilog"}})
	if strings.Contains(m.View(), "Unable to resolve") {
		t.Error("alert should clear on the next listing")
	}
}

func TestSyncModel_TransferLifecycle(t *testing.T) {
	m := NewSyncModel("r", "/logs", nil)
	m = update(t, m,
		ListingMsg{{Name: "a.wpilog", Size: 1024}},
		ProgressMsg(types.BytesProgress(512, 1024)),
	)
	if m.Status() != StatusTransferring {
		t.Errorf("Status = %v, want transferring", m.Status())
	}
	if !strings.Contains(m.View(), "512 B / 1.0 KB") {
		t.Errorf("View missing byte progress:\n%s", m.View())
	}

	// A listing during a transfer keeps the transferring status.
	m = update(t, m, ListingMsg{{Name: "a.wpilog", Size: 1024}})
	if m.Status() != StatusTransferring {
		t.Errorf("Status after listing = %v, want transferring", m.Status())
	}

	m = update(t, m,
		SavedMsg{Name: "a.wpilog", Path: "/tmp/a.wpilog"},
		SummaryMsg{Requested: 2, Saved: 1, Skipped: 1},
	)
	if m.Status() != StatusConnected {
		t.Errorf("Status = %v, want connected", m.Status())
	}
	if !strings.Contains(m.View(), "1 new log (1 skipped)") {
		t.Errorf("View missing summary:\n%s", m.View())
	}
}

func TestSyncModel_RecentBounded(t *testing.T) {
	m := NewSyncModel("r", "/logs", nil)
	for i := range 8 {
		m = update(t, m, SavedMsg{Name: string(rune('a' + i))})
	}
	if len(m.recent) != maxRecent {
		t.Fatalf("len(recent) = %d, want %d", len(m.recent), maxRecent)
	}
	if m.recent[0] != "d" || m.recent[maxRecent-1] != "h" {
		t.Errorf("recent = %v, want [d..h]", m.recent)
	}
}

func TestSyncModel_Keys(t *testing.T) {
	calls := 0
	m := NewSyncModel("r", "/logs", func() error {
		calls++
		return errors.New("not connected")
	})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	if cmd == nil {
		t.Fatal("save key should return a command")
	}
	msg := cmd()
	if calls != 1 {
		t.Errorf("saveNew called %d times, want 1", calls)
	}
	m = update(t, m, msg)
	if !strings.Contains(m.View(), "not connected") {
		t.Errorf("View missing save error notice:\n%s", m.View())
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("quit key should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit key should produce tea.QuitMsg")
	}
	if next.(SyncModel).View() != "" {
		t.Error("View after quit should be empty")
	}
}

type recordingSender struct {
	msgs []tea.Msg
}

func (s *recordingSender) Send(msg tea.Msg) { s.msgs = append(s.msgs, msg) }

type countingConsumer struct {
	listings, alerts, progress, saved, summaries int
}

func (c *countingConsumer) Listing([]types.RemoteFileEntry) { c.listings++ }
func (c *countingConsumer) Alert(error)                     { c.alerts++ }
func (c *countingConsumer) Progress(types.Progress)         { c.progress++ }
func (c *countingConsumer) Saved(types.SavedFile)           { c.saved++ }
func (c *countingConsumer) Summary(types.SaveSummary)       { c.summaries++ }

func TestBridge(t *testing.T) {
	sender := &recordingSender{}
	next := &countingConsumer{}
	b := &Bridge{Program: sender, Next: next}

	entries := []types.RemoteFileEntry{{Name: "a.wpilog"}}
	b.Listing(entries)
	b.Alert(errors.New("boom"))
	b.Progress(types.FractionProgress(0.5))
	b.Saved(types.SavedFile{Name: "a.wpilog"})
	b.Summary(types.SaveSummary{Requested: 1, Saved: 1})

	if len(sender.msgs) != 5 {
		t.Fatalf("sent %d messages, want 5", len(sender.msgs))
	}
	if _, ok := sender.msgs[0].(ListingMsg); !ok {
		t.Errorf("msgs[0] = %T, want ListingMsg", sender.msgs[0])
	}
	entries[0].Name = "mutated"
	if sender.msgs[0].(ListingMsg)[0].Name != "a.wpilog" {
		t.Error("ListingMsg should not alias the session's slice")
	}
	if next.listings != 1 || next.alerts != 1 || next.progress != 1 || next.saved != 1 || next.summaries != 1 {
		t.Errorf("next consumer counts = %+v, want one of each", *next)
	}
}
