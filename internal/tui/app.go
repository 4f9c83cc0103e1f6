package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/prospectkeeper/keeper/internal/api"
	"github.com/prospectkeeper/keeper/internal/changes"
	"github.com/prospectkeeper/keeper/internal/config"
	"github.com/prospectkeeper/keeper/internal/session"
	"github.com/prospectkeeper/keeper/internal/state"
)

var appStyle = lipgloss.NewStyle().Margin(0, 0)

var newSessionController = func(opener session.StreamOpener, contactID string) *session.Controller {
	return session.NewController(opener, contactID)
}

// AppModel is the top-level console: the contact browser, the live run
// view, the change modal and a status bar, stitched over one API client.
type AppModel struct {
	cfg      *config.Config
	client   *api.Client
	db       *state.DB
	detector *changes.Detector

	browser   *BrowserModel
	runview   *RunModel
	statusbar *StatusBarModel
	diffModal *DiffModal

	ctrl      *session.Controller
	updates   <-chan session.Update
	runCancel context.CancelFunc

	cfgUpdates <-chan *config.Config

	showRun bool
	width   int
	height  int
}

// NewAppModel wires the console. db and cfgUpdates may be nil; the run
// archive and live config reload are then simply off.
func NewAppModel(cfg *config.Config, client *api.Client, db *state.DB, cfgUpdates <-chan *config.Config) *AppModel {
	return &AppModel{
		cfg:        cfg,
		client:     client,
		db:         db,
		detector:   changes.NewDetector(client),
		browser:    NewBrowserModel(cfg.ScoringModel()),
		runview:    NewRunModel(),
		statusbar:  NewStatusBarModel(cfg.API.BaseURL),
		diffModal:  &DiffModal{},
		cfgUpdates: cfgUpdates,
	}
}

func (m *AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{loadContactsCmd(m.client)}
	if m.cfgUpdates != nil {
		cmds = append(cmds, waitForConfigReload(m.cfgUpdates))
	}
	return tea.Batch(cmds...)
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusbar.SetWidth(msg.Width)
		m.browser.SetSize(msg.Width, msg.Height-1)
		m.runview.SetSize(msg.Width, msg.Height-1)
		modalWidth := msg.Width - 4
		if modalWidth < 32 {
			modalWidth = 32
		}
		m.diffModal.SetWidth(modalWidth)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case contactsLoadedMsg:
		m.browser.SetLoading(false)
		if msg.err != nil {
			m.browser.SetError(msg.err.Error())
		} else {
			m.browser.SetError("")
			m.browser.SetContacts(msg.contacts)
		}
		m.syncStatusBar()
		return m, nil

	case sessionUpdateMsg:
		if msg.update.Event != nil {
			m.runview.AppendEvent(*msg.update.Event)
		}
		m.runview.SetProgress(msg.update.State, msg.update.Elapsed)
		m.syncStatusBar()
		if m.updates != nil {
			return m, waitForSessionUpdate(m.updates)
		}
		return m, nil

	case sessionStreamClosedMsg:
		return m.finishRun()

	case runArchivedMsg:
		if msg.err != nil {
			m.runview.SetArchiveError(msg.err.Error())
		} else {
			m.runview.SetArchived(msg.id)
		}
		return m, nil

	case diffResultMsg:
		if m.diffModal.Visible && m.diffModal.ContactID == msg.contactID {
			m.diffModal.SetResult(msg.summary, msg.err)
		}
		return m, nil

	case configReloadedMsg:
		m.cfg = msg.cfg
		m.browser.SetScoring(msg.cfg.ScoringModel())
		m.statusbar.Backend = msg.cfg.API.BaseURL
		if m.cfgUpdates != nil {
			return m, waitForConfigReload(m.cfgUpdates)
		}
		return m, nil

	case configWatchClosedMsg:
		m.cfgUpdates = nil
		return m, nil

	case spinner.TickMsg:
		return m, m.runview.Update(msg)
	}

	if m.showRun {
		return m, m.runview.Update(msg)
	}
	return m, m.browser.Update(msg)
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.diffModal.Visible {
		switch key {
		case "ctrl+c":
			return m, tea.Quit
		case "esc", "q", "d", "enter":
			m.diffModal.Close()
		}
		return m, nil
	}

	if m.showRun {
		return m.handleRunKey(key, msg)
	}

	if m.browser.Filtering() {
		if key == "ctrl+c" {
			return m, tea.Quit
		}
		return m, m.browser.Update(msg)
	}

	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "r":
		m.browser.SetLoading(true)
		return m, loadContactsCmd(m.client)
	case "d":
		contact, ok := m.browser.Selected()
		if !ok {
			return m, nil
		}
		m.diffModal.Open(contact.ID, contact.Name)
		return m, resolveChangeCmd(m.detector, contact.ID)
	case "enter":
		return m.startRun()
	}

	return m, m.browser.Update(msg)
}

func (m *AppModel) handleRunKey(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	running := m.ctrl != nil && m.ctrl.State() == session.StateRunning

	switch key {
	case "ctrl+c":
		if running {
			m.ctrl.Cancel()
			return m, nil
		}
		return m, tea.Quit
	case "c":
		if running {
			m.ctrl.Cancel()
		}
		return m, nil
	case "q":
		if !running {
			return m, tea.Quit
		}
		return m, nil
	case "esc":
		if !running {
			m.showRun = false
		}
		return m, nil
	}

	return m, m.runview.Update(msg)
}

func (m *AppModel) startRun() (tea.Model, tea.Cmd) {
	contact, ok := m.browser.Selected()
	if !ok {
		return m, nil
	}
	if m.ctrl != nil && m.ctrl.State() == session.StateRunning {
		// One run at a time; show the active one instead of starting another.
		m.showRun = true
		return m, nil
	}

	ctrl := newSessionController(m.client, contact.ID)
	runCtx, cancel := context.WithTimeout(context.Background(), m.cfg.VerifyTimeout())
	updates, err := ctrl.Start(runCtx)
	if err != nil {
		cancel()
		m.browser.SetError(fmt.Sprintf("start verification: %v", err))
		return m, nil
	}

	m.ctrl = ctrl
	m.updates = updates
	m.runCancel = cancel
	m.showRun = true
	m.runview.Begin(contact)
	m.syncStatusBar()
	return m, tea.Batch(waitForSessionUpdate(updates), m.runview.SpinCmd())
}

// finishRun settles the view once the update channel closes: the verdict
// comes straight off the controller, the roster is refreshed because the
// agent may have rewritten contact fields, and the transcript is archived.
func (m *AppModel) finishRun() (tea.Model, tea.Cmd) {
	if m.runCancel != nil {
		m.runCancel()
		m.runCancel = nil
	}
	m.updates = nil
	if m.ctrl == nil {
		return m, nil
	}

	outcome := m.ctrl.Verdict()
	m.runview.Finish(m.ctrl.State(), m.ctrl.Elapsed(), outcome)
	m.syncStatusBar()

	cmds := []tea.Cmd{loadContactsCmd(m.client)}
	if m.db != nil {
		run := state.Run{
			ContactID:   m.ctrl.ContactID(),
			ContactName: m.runview.ContactName(),
			State:       string(m.ctrl.State()),
			Verdict:     string(outcome.Verdict),
			Detail:      outcome.Detail,
			Elapsed:     m.ctrl.Elapsed(),
			StartedAt:   m.ctrl.StartedAt().UTC(),
			FinishedAt:  time.Now().UTC(),
		}
		cmds = append(cmds, archiveRunCmd(m.db, run, m.ctrl.Events()))
	}
	return m, tea.Batch(cmds...)
}

func (m *AppModel) syncStatusBar() {
	m.statusbar.Contacts = m.browser.Total()
	m.statusbar.Review = m.browser.ReviewCount()
	runState := "idle"
	if m.ctrl != nil {
		runState = string(m.ctrl.State())
	}
	m.statusbar.RunState = runState
}

func (m *AppModel) View() string {
	body := m.browser.View()
	if m.showRun {
		body = m.runview.View()
	}
	view := lipgloss.JoinVertical(lipgloss.Left,
		body,
		m.statusbar.View(),
	)
	base := appStyle.Render(view)

	if m.diffModal.Visible {
		overlay := m.diffModal.View()
		if m.width > 0 && m.height > 0 {
			return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, overlay)
		}
		return overlay
	}
	return base
}
