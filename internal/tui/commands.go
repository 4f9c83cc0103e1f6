package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/prospectkeeper/keeper/internal/api"
	"github.com/prospectkeeper/keeper/internal/changes"
	"github.com/prospectkeeper/keeper/internal/config"
	"github.com/prospectkeeper/keeper/internal/session"
	"github.com/prospectkeeper/keeper/internal/state"
	"github.com/prospectkeeper/keeper/internal/stream"
)

type contactsLoadedMsg struct {
	contacts []api.Contact
	err      error
}

type sessionUpdateMsg struct {
	update session.Update
}

// sessionStreamClosedMsg fires when the controller closes its update
// channel, meaning the run reached a terminal state.
type sessionStreamClosedMsg struct{}

type diffResultMsg struct {
	contactID string
	summary   *api.ChangeSummary
	err       error
}

type configReloadedMsg struct {
	cfg *config.Config
}

type configWatchClosedMsg struct{}

type runArchivedMsg struct {
	id  string
	err error
}

func loadContactsCmd(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		contacts, err := client.ListContacts(context.Background())
		return contactsLoadedMsg{contacts: contacts, err: err}
	}
}

func waitForSessionUpdate(ch <-chan session.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return sessionStreamClosedMsg{}
		}
		return sessionUpdateMsg{update: u}
	}
}

func waitForConfigReload(ch <-chan *config.Config) tea.Cmd {
	return func() tea.Msg {
		cfg, ok := <-ch
		if !ok {
			return configWatchClosedMsg{}
		}
		return configReloadedMsg{cfg: cfg}
	}
}

func resolveChangeCmd(detector *changes.Detector, contactID string) tea.Cmd {
	return func() tea.Msg {
		summary, err := detector.Resolve(context.Background(), contactID)
		return diffResultMsg{contactID: contactID, summary: summary, err: err}
	}
}

func archiveRunCmd(db *state.DB, run state.Run, events []stream.AgentEvent) tea.Cmd {
	return func() tea.Msg {
		id, err := db.SaveRun(context.Background(), run, events)
		return runArchivedMsg{id: id, err: err}
	}
}
