package config

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	itemStyle  = lipgloss.NewStyle().PaddingLeft(2)
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

type FormModel struct {
	cfg *Config
}

func NewFormModel(cfg *Config) *FormModel {
	return &FormModel{cfg: cfg}
}

func (m *FormModel) Init() tea.Cmd {
	return nil
}

func (m *FormModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *FormModel) View() string {
	s := titleStyle.Render("Keeper Configuration") + "\n\n"
	s += itemStyle.Render(fmt.Sprintf("Backend URL: %s", m.cfg.API.BaseURL)) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Request timeout: %s", m.cfg.APITimeout())) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Verification timeout: %s", m.cfg.VerifyTimeout())) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Freshness windows: fresh <%dd, idle <%dd",
		m.cfg.Scoring.FreshWithinDays, m.cfg.Scoring.IdleWithinDays)) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Confidence bases: %d/%d/%d/%d",
		m.cfg.Scoring.BaseFresh, m.cfg.Scoring.BaseIdle, m.cfg.Scoring.BaseStale, m.cfg.Scoring.BaseNever)) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Log level: %s", m.cfg.Log.Level)) + "\n"
	s += "\n" + dimStyle.Render(fmt.Sprintf("Edit %s to change values; the TUI picks changes up live.", GetConfigPath())) + "\n"
	s += "Press 'q' or 'esc' to quit.\n"
	return lipgloss.NewStyle().Padding(1, 2).Render(s)
}

func RunConfigForm(cfg *Config) error {
	p := tea.NewProgram(NewFormModel(cfg))
	_, err := p.Run()
	return err
}
