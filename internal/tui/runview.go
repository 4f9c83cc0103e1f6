package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/prospectkeeper/keeper/internal/api"
	"github.com/prospectkeeper/keeper/internal/session"
	"github.com/prospectkeeper/keeper/internal/stream"
)

var (
	runTitleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	runContactStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	runElapsedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	runHintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	runCompletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	runErroredStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	runCancelledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Bold(true)
	runVerdictStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	runArchiveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	lineTimeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	lineThinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	lineToolStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	lineResultStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("72"))
	lineFinalStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	lineErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	runViewportStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true, false, true, false).BorderForeground(lipgloss.Color("238"))
)

// RunModel renders a live verification run: a transcript viewport under a
// header showing the contact, run state and elapsed time.
type RunModel struct {
	viewport   viewport.Model
	spinner    spinner.Model
	contact    api.Contact
	lines      []string
	state      session.State
	elapsed    string
	outcome    session.Outcome
	archivedID string
	archiveErr string
	width      int
	height     int
}

func NewRunModel() *RunModel {
	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))

	vp := viewport.New(0, 0)
	vp.SetContent("")

	return &RunModel{
		viewport: vp,
		spinner:  sp,
		state:    session.StateIdle,
	}
}

func (r *RunModel) SetSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.width = width
	r.height = height
	vpHeight := height - 7
	if vpHeight < 3 {
		vpHeight = 3
	}
	r.viewport.Width = width
	r.viewport.Height = vpHeight
	r.renderTranscript()
}

// Begin resets the view for a fresh run against the given contact.
func (r *RunModel) Begin(contact api.Contact) {
	r.contact = contact
	r.lines = nil
	r.state = session.StateRunning
	r.elapsed = "0s"
	r.outcome = session.Outcome{}
	r.archivedID = ""
	r.archiveErr = ""
	r.viewport.SetContent("")
	r.viewport.GotoTop()
}

func (r *RunModel) ContactName() string {
	return r.contact.Name
}

func (r *RunModel) SpinCmd() tea.Cmd {
	return r.spinner.Tick
}

func (r *RunModel) AppendEvent(event stream.AgentEvent) {
	r.lines = append(r.lines, transcriptLine(event, r.viewport.Width))
	r.renderTranscript()
	r.viewport.GotoBottom()
}

func (r *RunModel) SetProgress(state session.State, elapsed time.Duration) {
	r.state = state
	r.elapsed = formatElapsed(elapsed)
}

// Finish records the terminal state and verdict once the stream closes.
func (r *RunModel) Finish(state session.State, elapsed time.Duration, outcome session.Outcome) {
	r.state = state
	r.elapsed = formatElapsed(elapsed)
	r.outcome = outcome
}

func (r *RunModel) SetArchived(id string) {
	r.archivedID = id
}

func (r *RunModel) SetArchiveError(msg string) {
	r.archiveErr = strings.TrimSpace(msg)
}

func (r *RunModel) Update(msg tea.Msg) tea.Cmd {
	if tick, ok := msg.(spinner.TickMsg); ok {
		if r.state != session.StateRunning {
			return nil
		}
		var cmd tea.Cmd
		r.spinner, cmd = r.spinner.Update(tick)
		return cmd
	}

	var cmd tea.Cmd
	r.viewport, cmd = r.viewport.Update(msg)
	return cmd
}

func (r *RunModel) renderTranscript() {
	r.viewport.SetContent(strings.Join(r.lines, "\n"))
}

func (r *RunModel) View() string {
	var b strings.Builder
	b.WriteString(runTitleStyle.Render("Verification"))
	b.WriteString("\n")
	b.WriteString(r.renderHeader())
	b.WriteString("\n")
	b.WriteString(runViewportStyle.Render(r.viewport.View()))
	b.WriteString("\n")
	b.WriteString(r.renderHint())
	return b.String()
}

// renderHeader always yields three lines so the viewport does not jump
// when the run reaches a terminal state.
func (r *RunModel) renderHeader() string {
	switch r.state {
	case session.StateRunning:
		line := fmt.Sprintf("%s %s  %s", r.spinner.View(),
			runContactStyle.Render(r.contact.Name),
			runElapsedStyle.Render(r.elapsed))
		return line + "\n\n"
	case session.StateCompleted, session.StateErrored, session.StateCancelled:
		style := runCompletedStyle
		switch r.state {
		case session.StateErrored:
			style = runErroredStyle
		case session.StateCancelled:
			style = runCancelledStyle
		}
		stateLine := fmt.Sprintf("%s %s  %s", style.Render(string(r.state)),
			runContactStyle.Render(r.contact.Name),
			runElapsedStyle.Render(r.elapsed))

		verdictLine := runVerdictStyle.Render(r.outcome.Label)
		if r.outcome.Detail != "" {
			verdictLine += "  " + truncateLine(r.outcome.Detail, r.width-len(r.outcome.Label)-4)
		}

		noteLine := ""
		if r.archivedID != "" {
			noteLine = runArchiveStyle.Render("archived as " + shortRunID(r.archivedID))
		} else if r.archiveErr != "" {
			noteLine = runArchiveStyle.Render("archive failed: " + r.archiveErr)
		}
		return stateLine + "\n" + verdictLine + "\n" + noteLine
	default:
		return "\n\n"
	}
}

func (r *RunModel) renderHint() string {
	if r.state == session.StateRunning {
		return runHintStyle.Render("c: cancel  up/down: scroll")
	}
	return runHintStyle.Render("esc: back to contacts  up/down: scroll  q: quit")
}

func transcriptLine(event stream.AgentEvent, width int) string {
	ts := lineTimeStyle.Render(event.At.Local().Format("15:04:05"))
	prefix := ts + " "
	switch event.Type {
	case stream.EventStart:
		name := "contact"
		if event.Contact != nil {
			name = event.Contact.Name
		}
		return wrapWithPrefix(prefix, "verifying "+name, width)
	case stream.EventThinking:
		return wrapWithPrefix(prefix, lineThinkingStyle.Render(event.Text), width)
	case stream.EventToolCall:
		return wrapWithPrefix(prefix, lineToolStyle.Render(event.Name)+" "+compactPayload(event.Input), width)
	case stream.EventToolResult:
		style := lineResultStyle
		if event.Outcome().Failed() {
			style = lineErrorStyle
		}
		return wrapWithPrefix(prefix, style.Render(event.Name)+" "+compactPayload(event.Result), width)
	case stream.EventFinal:
		return wrapWithPrefix(prefix, lineFinalStyle.Render(event.Text), width)
	case stream.EventError:
		return wrapWithPrefix(prefix, lineErrorStyle.Render(event.Message), width)
	case stream.EventDone:
		return prefix + lineTimeStyle.Render("done")
	default:
		return prefix + string(event.Type)
	}
}

func compactPayload(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func formatElapsed(d time.Duration) string {
	return d.Truncate(time.Second).String()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
