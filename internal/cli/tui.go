package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"yt-allinone/internal/download"
	"yt-allinone/internal/model"
)

// downloadControls is the part of download.Manager the TUI drives.
type downloadControls interface {
	Pause() error
	Resume() error
	Cancel(deletePartial bool) error
}

type (
	tuiStartMsg struct {
		index int
		entry model.Entry
	}
	tuiEventMsg  struct{ ev model.Event }
	tuiFinishMsg struct {
		index int
		res   download.BatchResult
	}
	tuiDoneMsg    struct{}
	tuiControlMsg struct {
		action string
		err    error
	}
)

var (
	tuiTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	tuiMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	tuiErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	tuiOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	tuiPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const tuiHistory = 8

type tuiModel struct {
	controls downloadControls
	stopAll  func()
	total    int

	index   int
	entry   model.Entry
	phase   string
	pct     float64
	speed   float64
	eta     int64
	overall float64

	bar        progress.Model
	overallBar progress.Model
	outcomes   []string
	status     string
	stopping   bool
	width      int
}

func newTUIModel(controls downloadControls, stopAll func(), total int) tuiModel {
	return tuiModel{
		controls:   controls,
		stopAll:    stopAll,
		total:      total,
		phase:      "waiting",
		bar:        progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		overallBar: progress.New(progress.WithSolidFill("62"), progress.WithWidth(40)),
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := max(msg.Width-12, 10)
		m.bar.Width = min(w, 60)
		m.overallBar.Width = min(w, 60)
		return m, nil
	case tuiStartMsg:
		m.index, m.entry = msg.index, msg.entry
		m.phase, m.pct, m.speed, m.eta = "starting", 0, 0, 0
		return m, nil
	case tuiEventMsg:
		m.apply(msg.ev)
		return m, nil
	case tuiFinishMsg:
		m.outcomes = append(m.outcomes, m.styledOutcome(msg.index, msg.res))
		if len(m.outcomes) > tuiHistory {
			m.outcomes = m.outcomes[len(m.outcomes)-tuiHistory:]
		}
		return m, nil
	case tuiDoneMsg:
		return m, tea.Quit
	case tuiControlMsg:
		if msg.err != nil {
			m.status = msg.action + ": " + msg.err.Error()
		} else {
			m.status = ""
		}
		return m, nil
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m tuiModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "p":
		return m, m.control("pause", m.controls.Pause)
	case "r":
		return m, m.control("resume", m.controls.Resume)
	case "c":
		m.status = "cancelling current item..."
		return m, m.control("cancel", func() error { return m.controls.Cancel(false) })
	case "q", "ctrl+c":
		if m.stopping {
			return m, nil
		}
		m.stopping = true
		m.status = "stopping..."
		if m.stopAll != nil {
			m.stopAll()
		}
		return m, m.control("cancel", func() error { return m.controls.Cancel(false) })
	}
	return m, nil
}

// control runs fn off the update loop; a stop can take up to the grace
// period.
func (m tuiModel) control(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return tuiControlMsg{action: action, err: fn()}
	}
}

func (m *tuiModel) apply(ev model.Event) {
	switch ev.Kind {
	case model.EventProgress:
		if p := ev.Progress; p != nil {
			m.phase = "downloading"
			if p.Status == "finished" {
				m.phase = "processing"
			}
			m.pct, m.speed, m.eta = p.Percent, p.SpeedBps, p.ETASeconds
		}
	case model.EventPaused:
		m.phase = "paused"
	case model.EventResumed:
		m.phase = "downloading"
	case model.EventCancelling:
		m.phase = "cancelling"
	case model.EventOverall:
		m.overall = ev.OverallPercent
	case model.EventDone:
		m.phase = "done"
		m.pct = 100
	case model.EventError:
		m.phase = "failed"
	}
}

func (m tuiModel) styledOutcome(index int, res download.BatchResult) string {
	line := outcomeLine(index, m.total, res)
	switch {
	case res.Err == nil:
		return tuiOKStyle.Render(line)
	case res.Cancelled():
		return tuiMutedStyle.Render(line)
	default:
		return tuiErrorStyle.Render(line)
	}
}

func (m tuiModel) View() string {
	var b strings.Builder
	b.WriteString(tuiTitleStyle.Render(fmt.Sprintf("Downloading %d/%d", min(m.index+1, m.total), m.total)))
	b.WriteString("\n")

	title := m.entry.Title
	if title == "" {
		title = m.entry.URL
	}
	panel := []string{
		truncate(title, 70),
		m.bar.ViewAs(m.pct / 100),
	}
	stats := []string{m.phase, fmt.Sprintf("%.1f%%", m.pct)}
	if s := formatRate(m.speed); s != "" {
		stats = append(stats, s)
	}
	if eta := formatETASeconds(float64(m.eta)); eta != "" {
		stats = append(stats, "ETA "+eta)
	}
	panel = append(panel, tuiMutedStyle.Render(strings.Join(stats, "  ")))
	if m.total > 1 {
		panel = append(panel, "overall "+m.overallBar.ViewAs(m.overall/100))
	}
	b.WriteString(tuiPanelStyle.Render(strings.Join(panel, "\n")))
	b.WriteString("\n")

	for _, line := range m.outcomes {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(tuiMutedStyle.Render("p pause  r resume  c cancel item  q stop all"))
	b.WriteString("\n")
	return b.String()
}
