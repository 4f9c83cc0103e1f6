package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/prospectkeeper/keeper/internal/api"
	"github.com/prospectkeeper/keeper/internal/freshness"
)

var (
	browserTitleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	browserHintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	browserErrStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	browserInsightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	browserQueryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	browserQueryHint    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	browserCursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
	tabActiveStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("45")).Bold(true).Padding(0, 1)
	tabInactiveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Background(lipgloss.Color("238")).Padding(0, 1)
)

type contactItem struct {
	contact api.Contact
	tier    freshness.Tier
	conf    int
	sync    string
}

func (i contactItem) FilterValue() string {
	return strings.TrimSpace(i.contact.Name + " " + i.contact.Organization + " " + i.contact.Email)
}

func (i contactItem) Title() string {
	title := statusGlyph(i.contact.Status) + " " + i.contact.Name
	if i.contact.NeedsHumanReview {
		title += "  [review]"
	}
	return title
}

func (i contactItem) Description() string {
	return fmt.Sprintf("%s | %s | conf %d | synced %s",
		valueOrDash(i.contact.Organization), i.tier, i.conf, i.sync)
}

func statusGlyph(status string) string {
	switch status {
	case api.StatusActive:
		return "●"
	case api.StatusInactive:
		return "○"
	case api.StatusOptedOut:
		return "⊘"
	default:
		return "◐"
	}
}

func valueOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

type browserTab int

const (
	browserTabAll browserTab = iota
	browserTabReview
)

// BrowserModel is the contact roster: a scrollable list with a review-queue
// tab and substring filtering.
type BrowserModel struct {
	list      list.Model
	items     []contactItem
	filtered  []contactItem
	query     string
	filtering bool
	activeTab browserTab
	scoring   freshness.Model
	contacts  []api.Contact
	loading   bool
	loadErr   string
	width     int
	height    int
}

func NewBrowserModel(scoring freshness.Model) *BrowserModel {
	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)

	l := list.New(nil, delegate, 72, 14)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return &BrowserModel{
		list:    l,
		scoring: scoring,
		loading: true,
	}
}

func (m *BrowserModel) SetSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width = width
	m.height = height
	listHeight := height - 7
	if listHeight < 4 {
		listHeight = 4
	}
	m.list.SetWidth(width - 2)
	m.list.SetHeight(listHeight)
}

func (m *BrowserModel) SetContacts(contacts []api.Contact) {
	m.contacts = append([]api.Contact(nil), contacts...)
	sort.SliceStable(m.contacts, func(i, j int) bool {
		return strings.ToLower(m.contacts[i].Name) < strings.ToLower(m.contacts[j].Name)
	})
	m.rebuildItems()
}

// SetScoring swaps in a new scoring model and re-scores every row. Called
// when the config file changes under a running session.
func (m *BrowserModel) SetScoring(scoring freshness.Model) {
	m.scoring = scoring
	m.rebuildItems()
}

func (m *BrowserModel) SetLoading(loading bool) {
	m.loading = loading
}

func (m *BrowserModel) SetError(msg string) {
	m.loadErr = strings.TrimSpace(msg)
}

func (m *BrowserModel) Filtering() bool {
	return m.filtering
}

func (m *BrowserModel) Selected() (api.Contact, bool) {
	item := m.list.SelectedItem()
	if item == nil {
		return api.Contact{}, false
	}
	ci, ok := item.(contactItem)
	return ci.contact, ok
}

func (m *BrowserModel) Total() int {
	return len(m.items)
}

func (m *BrowserModel) ReviewCount() int {
	count := 0
	for _, item := range m.items {
		if item.contact.NeedsHumanReview {
			count++
		}
	}
	return count
}

func (m *BrowserModel) rebuildItems() {
	now := time.Now().UTC()
	items := make([]contactItem, 0, len(m.contacts))
	for _, c := range m.contacts {
		sync := "never"
		if age, ok := freshness.Age(c, now); ok {
			sync = formatSyncAge(age)
		}
		items = append(items, contactItem{
			contact: c,
			tier:    m.scoring.Tier(c, now),
			conf:    m.scoring.Confidence(c, now),
			sync:    sync,
		})
	}
	m.items = items
	m.applyFilters(m.selectedContactID())
}

func (m *BrowserModel) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		if m.filtering {
			switch key.String() {
			case "esc":
				m.filtering = false
				m.query = ""
				m.applyFilters(m.selectedContactID())
				return nil
			case "enter":
				m.filtering = false
				return nil
			case "backspace", "ctrl+h":
				if m.query != "" {
					m.query = trimLastRune(m.query)
					m.applyFilters(m.selectedContactID())
				}
				return nil
			case "ctrl+u":
				m.query = ""
				m.applyFilters(m.selectedContactID())
				return nil
			case "up", "down":
				// Let the cursor move while the filter stays open.
			default:
				if key.Type == tea.KeyRunes && !key.Alt {
					m.query += string(key.Runes)
					m.applyFilters(m.selectedContactID())
					return nil
				}
				return nil
			}
		} else {
			switch key.String() {
			case "tab", "shift+tab":
				m.toggleTab()
				return nil
			case "/":
				m.filtering = true
				return nil
			case "esc":
				if m.query != "" {
					m.query = ""
					m.applyFilters(m.selectedContactID())
				}
				return nil
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return cmd
}

func (m *BrowserModel) toggleTab() {
	if m.activeTab == browserTabAll {
		m.activeTab = browserTabReview
	} else {
		m.activeTab = browserTabAll
	}
	m.applyFilters(m.selectedContactID())
}

func (m *BrowserModel) applyFilters(preferredID string) {
	query := strings.ToLower(strings.TrimSpace(m.query))
	filtered := make([]contactItem, 0, len(m.items))
	for _, item := range m.items {
		if m.activeTab == browserTabReview && !item.contact.NeedsHumanReview {
			continue
		}
		if query != "" {
			searchSpace := strings.ToLower(item.FilterValue() + " " + item.contact.Status)
			if !strings.Contains(searchSpace, query) {
				continue
			}
		}
		filtered = append(filtered, item)
	}

	m.filtered = filtered
	items := make([]list.Item, 0, len(filtered))
	for _, item := range filtered {
		items = append(items, item)
	}
	m.list.SetItems(items)

	if len(filtered) == 0 {
		return
	}
	if preferredID != "" {
		for idx, item := range filtered {
			if item.contact.ID == preferredID {
				m.list.Select(idx)
				return
			}
		}
	}
	if m.list.Index() < 0 || m.list.Index() >= len(filtered) {
		m.list.Select(0)
	}
}

func (m *BrowserModel) selectedContactID() string {
	contact, ok := m.Selected()
	if !ok {
		return ""
	}
	return contact.ID
}

func (m *BrowserModel) View() string {
	var b strings.Builder
	b.WriteString(browserTitleStyle.Render("ProspectKeeper"))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	b.WriteString(m.renderFilterLine())
	b.WriteString("\n")

	switch {
	case m.loadErr != "":
		b.WriteString(browserErrStyle.Render("Error: " + m.loadErr))
		b.WriteString("\n")
		b.WriteString(browserHintStyle.Render("r: retry  q: quit"))
		return b.String()
	case m.loading && len(m.items) == 0:
		b.WriteString(browserHintStyle.Render("Loading contacts..."))
		return b.String()
	case len(m.items) == 0:
		b.WriteString(browserHintStyle.Render("No contacts yet. Import some with `keeper contacts import`."))
		b.WriteString("\n")
		b.WriteString(browserHintStyle.Render("r: refresh  q: quit"))
		return b.String()
	case len(m.filtered) == 0:
		b.WriteString(browserHintStyle.Render("No contacts match the current filter."))
	default:
		b.WriteString(m.list.View())
	}
	b.WriteString("\n")
	b.WriteString(m.renderInsight())
	b.WriteString("\n")
	b.WriteString(browserHintStyle.Render("enter: verify  d: changes  r: refresh  /: filter  tab: review queue  q: quit"))
	return b.String()
}

func (m *BrowserModel) renderTabs() string {
	allLabel := fmt.Sprintf("ALL (%d)", len(m.items))
	reviewLabel := fmt.Sprintf("REVIEW (%d)", m.ReviewCount())
	if m.activeTab == browserTabAll {
		return lipgloss.JoinHorizontal(lipgloss.Left,
			tabActiveStyle.Render(allLabel), " ", tabInactiveStyle.Render(reviewLabel))
	}
	return lipgloss.JoinHorizontal(lipgloss.Left,
		tabInactiveStyle.Render(allLabel), " ", tabActiveStyle.Render(reviewLabel))
}

func (m *BrowserModel) renderFilterLine() string {
	if m.filtering {
		query := browserQueryStyle.Render(m.query)
		return "Filter: " + query + browserCursorStyle.Render("█")
	}
	if m.query != "" {
		return "Filter: " + browserQueryStyle.Render(m.query) + browserQueryHint.Render("  (esc to clear)")
	}
	return browserQueryHint.Render("Press / to filter")
}

func (m *BrowserModel) renderInsight() string {
	contact, ok := m.Selected()
	if !ok {
		return ""
	}
	insight := m.scoring.Insight(contact, time.Now().UTC())
	if insight == "" {
		return ""
	}
	return browserInsightStyle.Render(truncateLine(insight, m.width-2))
}

func formatSyncAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncateLine(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func trimLastRune(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return ""
	}
	return string(runes[:len(runes)-1])
}
