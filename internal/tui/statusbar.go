package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	sbBaseStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("235")).Padding(0, 1)
	sbBackendStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	sbCountStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	sbIdleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	sbRunningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	sbDoneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	sbErroredStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	sbLineSepStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type StatusBarModel struct {
	Backend  string
	Contacts int
	Review   int
	RunState string
	width    int
}

func NewStatusBarModel(backend string) *StatusBarModel {
	return &StatusBarModel{
		Backend:  backend,
		RunState: "idle",
	}
}

func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

func (m *StatusBarModel) View() string {
	backendStr := sbBackendStyle.Render(fmt.Sprintf("[BACKEND: %s]", m.Backend))
	contactsStr := sbCountStyle.Render(fmt.Sprintf("[CONTACTS: %d]", m.Contacts))
	reviewStr := sbCountStyle.Render(fmt.Sprintf("[REVIEW: %d]", m.Review))

	runStyle := sbIdleStyle
	switch m.RunState {
	case "running":
		runStyle = sbRunningStyle
	case "completed":
		runStyle = sbDoneStyle
	case "errored":
		runStyle = sbErroredStyle
	}
	runStr := runStyle.Render(fmt.Sprintf("[RUN: %s]", m.RunState))

	sep := sbLineSepStyle.Render(" | ")
	s := backendStr + sep + contactsStr + sep + reviewStr + sep + runStr
	return sbBaseStyle.Width(m.width).Render(s)
}
