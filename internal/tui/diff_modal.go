package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/prospectkeeper/keeper/internal/api"
)

var diffModalBG = lipgloss.Color("235")

var (
	diffModalBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")).
				Background(diffModalBG).
				Padding(1, 2)
	diffModalTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Background(diffModalBG).Bold(true)
	diffModalHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Background(diffModalBG)
	diffModalBodyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(diffModalBG)
	diffModalFieldStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Background(diffModalBG).Bold(true)
	diffModalErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Background(diffModalBG)
)

// DiffModal shows the recorded LinkedIn profile change for one contact.
// It opens in a loading state while the snapshot is resolved.
type DiffModal struct {
	Visible     bool
	ContactID   string
	contactName string
	loading     bool
	summary     *api.ChangeSummary
	err         error
	width       int
}

func (m *DiffModal) Open(contactID, contactName string) {
	m.Visible = true
	m.ContactID = contactID
	m.contactName = contactName
	m.loading = true
	m.summary = nil
	m.err = nil
}

func (m *DiffModal) SetResult(summary *api.ChangeSummary, err error) {
	m.loading = false
	m.summary = summary
	m.err = err
}

func (m *DiffModal) Close() {
	m.Visible = false
	m.ContactID = ""
	m.loading = false
}

func (m *DiffModal) SetWidth(w int) {
	m.width = w
}

func (m *DiffModal) View() string {
	if !m.Visible {
		return ""
	}
	title := diffModalTitleStyle.Render("LinkedIn changes: " + m.contactName)
	body := m.renderBody()
	hint := diffModalHintStyle.Render("esc: close")
	return diffModalBoxStyle.Render(fmt.Sprintf("%s\n\n%s\n\n%s", title, body, hint))
}

func (m *DiffModal) renderBody() string {
	switch {
	case m.loading:
		return diffModalBodyStyle.Render("Checking the profile snapshot...")
	case m.err != nil:
		return diffModalErrStyle.Render("Lookup failed: " + m.err.Error())
	case m.summary == nil:
		return diffModalBodyStyle.Render("No profile change on record.")
	}

	var rows []string
	for _, fc := range m.summary.Fields() {
		rows = append(rows, fmt.Sprintf("%s %s",
			diffModalFieldStyle.Render(fmt.Sprintf("%-13s", fc.Field+":")),
			diffModalBodyStyle.Render(valueOrDash(fc.From)+"  ->  "+valueOrDash(fc.To)),
		))
	}
	if len(rows) == 0 {
		return diffModalBodyStyle.Render("A change was recorded, but no field details survived.")
	}
	return strings.Join(rows, "\n")
}
