package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/tlink/cli/render"
	"github.com/pithecene-io/tlink/logsync"
	"github.com/pithecene-io/tlink/types"
)

// Status is the monitor's view of the session.
type Status string

// Monitor statuses.
const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusTransferring Status = "transferring"
	StatusReconnecting Status = "reconnecting"
)

// maxRecent bounds the saved-file history shown under the listing.
const maxRecent = 5

// Messages forwarded from the session by Bridge.
type (
	// ListingMsg carries a directory listing.
	ListingMsg []types.RemoteFileEntry
	// AlertMsg carries an error handled by the session's backoff path.
	AlertMsg struct{ Err error }
	// ProgressMsg carries transfer progress.
	ProgressMsg types.Progress
	// SavedMsg carries one completed file.
	SavedMsg types.SavedFile
	// SummaryMsg carries the outcome of a multi-file save.
	SummaryMsg types.SaveSummary
)

type keyMap struct {
	Save key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Save: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "save new logs"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// SyncModel is a Bubble Tea model monitoring one sync session.
type SyncModel struct {
	address string
	dir     string
	saveNew func() error

	status   Status
	entries  []types.RemoteFileEntry
	alert    string
	notice   string
	fraction float64
	current  types.Progress
	recent   []string

	bar      progress.Model
	width    int
	quitting bool
}

// NewSyncModel creates a monitor. saveNew, if non-nil, is invoked from a
// command when the save key is pressed; its error is shown as a notice.
func NewSyncModel(address, dir string, saveNew func() error) SyncModel {
	return SyncModel{
		address: address,
		dir:     dir,
		saveNew: saveNew,
		status:  StatusConnecting,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// saveResultMsg reports the synchronous result of a save request.
type saveResultMsg struct{ err error }

// Init implements tea.Model.
func (m SyncModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m SyncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Save):
			if m.saveNew == nil {
				return m, nil
			}
			save := m.saveNew
			return m, func() tea.Msg { return saveResultMsg{err: save()} }
		}

	case saveResultMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
		} else {
			m.notice = ""
		}

	case ListingMsg:
		m.entries = msg
		if m.status != StatusTransferring {
			m.status = StatusConnected
		}
		m.alert = ""

	case AlertMsg:
		m.status = StatusReconnecting
		m.alert = logsync.Describe(msg.Err)
		m.entries = nil
		m.fraction = 0

	case ProgressMsg:
		m.status = StatusTransferring
		m.current = types.Progress(msg)
		m.fraction = m.current.Fraction

	case SavedMsg:
		m.recent = append(m.recent, msg.Name)
		if len(m.recent) > maxRecent {
			m.recent = m.recent[len(m.recent)-maxRecent:]
		}
		if msg.Open {
			m.status = StatusConnected
			m.notice = "Saved " + msg.Path
		}

	case SummaryMsg:
		m.status = StatusConnected
		m.notice = types.SaveSummary(msg).String()
		m.fraction = 0
	}

	return m, nil
}

// View implements tea.Model.
func (m SyncModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Robot Logs"))
	b.WriteString("\n")
	b.WriteString(m.field("Robot", m.address+":"+m.dir))
	b.WriteString(m.field("Status", StatusStyle(m.status).Render(string(m.status))))
	if m.alert != "" {
		b.WriteString(m.field("Alert", ErrorStyle.Render(m.alert)))
	}
	if m.notice != "" {
		b.WriteString(m.field("Notice", SuccessStyle.Render(m.notice)))
	}

	if m.status == StatusTransferring {
		b.WriteString("\n")
		if m.current.Indeterminate {
			b.WriteString(WarningStyle.Render("transferring..."))
		} else {
			b.WriteString(m.bar.ViewAs(m.fraction))
			if m.current.Total > 0 {
				b.WriteString(fmt.Sprintf("  %s / %s",
					render.FormatBytes(m.current.Current), render.FormatBytes(m.current.Total)))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(BoxStyle.Render(m.renderEntries()))

	if len(m.recent) > 0 {
		b.WriteString("\n")
		b.WriteString(m.field("Saved", strings.Join(m.recent, ", ")))
	}

	help := fmt.Sprintf("%s %s  •  %s %s",
		keys.Save.Help().Key, keys.Save.Help().Desc,
		keys.Quit.Help().Key, keys.Quit.Help().Desc)
	b.WriteString(HelpStyle.Render(help))
	return b.String()
}

func (m SyncModel) field(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, LabelStyle.Render(label+":"), value) + "\n"
}

func (m SyncModel) renderEntries() string {
	if len(m.entries) == 0 {
		return MutedStyle.Render("(no logs)")
	}
	rows := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		row := fmt.Sprintf("%-32s %10s", e.Name, render.FormatBytes(e.Size))
		if e.Randomized {
			row = MutedStyle.Render(row)
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

// Status returns the current monitor status.
func (m SyncModel) Status() Status {
	return m.status
}

// RunSync runs the monitor until the user quits. attach receives the
// running program so the caller can wire a Bridge before events flow.
func RunSync(model SyncModel, attach func(*tea.Program)) error {
	p := tea.NewProgram(model, tea.WithAltScreen())
	if attach != nil {
		attach(p)
	}
	_, err := p.Run()
	return err
}
