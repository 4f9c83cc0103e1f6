package tui

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/prospectkeeper/keeper/internal/api"
	"github.com/prospectkeeper/keeper/internal/config"
	"github.com/prospectkeeper/keeper/internal/session"
)

type scriptedOpener struct {
	frames []string
}

func (s scriptedOpener) OpenVerifyStream(_ context.Context, _ string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(strings.Join(s.frames, "\n") + "\n")), nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.API.BaseURL = "http://localhost:8000"
	cfg.API.TimeoutSeconds = 5
	cfg.API.VerifyTimeoutSeconds = 60
	cfg.Scoring.FreshWithinDays = 30
	cfg.Scoring.IdleWithinDays = 90
	cfg.Scoring.SameScrapeWindowMinutes = 5
	cfg.Scoring.BaseFresh = 92
	cfg.Scoring.BaseIdle = 68
	cfg.Scoring.BaseStale = 42
	cfg.Scoring.BaseNever = 15
	cfg.Scoring.ActiveBonus = 5
	cfg.Scoring.ActiveCap = 97
	cfg.Scoring.InactiveBonus = 4
	cfg.Scoring.InactiveCap = 95
	cfg.Scoring.ReviewPenalty = 8
	cfg.Scoring.ReviewFloor = 10
	return cfg
}

func newTestApp(t *testing.T) *AppModel {
	t.Helper()
	app := NewAppModel(testConfig(), api.NewClient("http://localhost:8000"), nil, nil)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	app.browser.SetLoading(false)
	app.browser.SetContacts(rosterContacts())
	return app
}

func TestAppRunLifecycleEndsInVerdict(t *testing.T) {
	originalFactory := newSessionController
	defer func() { newSessionController = originalFactory }()

	opener := scriptedOpener{frames: []string{
		`data: {"type":"start","contact":{"id":"c-alma","name":"Alma Reyes"}}`,
		`data: {"type":"tool_result","id":"t1","name":"update_contact","result":{"success": true, "contact_id": "c-alma", "status": "active"}}`,
		`data: {"type":"final","text":"Alma is still listed as superintendent."}`,
		`data: {"type":"done"}`,
	}}
	newSessionController = func(_ session.StreamOpener, contactID string) *session.Controller {
		return session.NewController(opener, contactID)
	}

	app := newTestApp(t)
	_, cmd := app.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	if !app.showRun {
		t.Fatal("expected enter to open the run view")
	}
	if cmd == nil {
		t.Fatal("expected a command to arm the update stream")
	}

	updates := app.updates
	if updates == nil {
		t.Fatal("expected an update channel for the run")
	}

	msgs := make(chan tea.Msg, 16)
	go func() {
		for {
			msg := waitForSessionUpdate(updates)()
			msgs <- msg
			if _, ok := msg.(sessionStreamClosedMsg); ok {
				return
			}
		}
	}()

drain:
	for {
		select {
		case msg := <-msgs:
			app.Update(msg)
			if _, ok := msg.(sessionStreamClosedMsg); ok {
				break drain
			}
		case <-time.After(5 * time.Second):
			t.Fatal("run did not reach a terminal state in time")
		}
	}

	if got := app.ctrl.State(); got != session.StateCompleted {
		t.Fatalf("expected completed run, got %q", got)
	}
	if app.runview.outcome.Verdict != session.VerdictActive {
		t.Fatalf("expected active verdict, got %q", app.runview.outcome.Verdict)
	}
	if app.statusbar.RunState != "completed" {
		t.Fatalf("expected status bar to show completed, got %q", app.statusbar.RunState)
	}
	if len(app.runview.lines) != 4 {
		t.Fatalf("expected 4 transcript lines, got %d", len(app.runview.lines))
	}
}

func TestAppSecondEnterWhileRunningShowsActiveRun(t *testing.T) {
	originalFactory := newSessionController
	defer func() { newSessionController = originalFactory }()

	gate := make(chan struct{})
	newSessionController = func(_ session.StreamOpener, contactID string) *session.Controller {
		return session.NewController(blockingOpener{gate: gate}, contactID)
	}
	defer close(gate)

	app := newTestApp(t)
	app.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	first := app.ctrl
	if first == nil {
		t.Fatal("expected a controller after the first enter")
	}

	app.showRun = false
	app.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	if app.ctrl != first {
		t.Fatal("expected the active run to be kept, not replaced")
	}
	if !app.showRun {
		t.Fatal("expected enter to surface the active run view")
	}

	first.Cancel()
}

type blockingOpener struct {
	gate chan struct{}
}

func (b blockingOpener) OpenVerifyStream(ctx context.Context, _ string) (io.ReadCloser, error) {
	select {
	case <-b.gate:
		return io.NopCloser(strings.NewReader("")), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestAppDiffModalAppliesMatchingResultOnly(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	app.handleKey(keyRunes("d"))
	if !app.diffModal.Visible {
		t.Fatal("expected d to open the changes modal")
	}
	if app.diffModal.ContactID != "c-alma" {
		t.Fatalf("expected modal bound to the selection, got %q", app.diffModal.ContactID)
	}

	// A result for some other contact must not land in this modal.
	app.Update(diffResultMsg{contactID: "c-ben", summary: nil, err: errors.New("boom")})
	if !app.diffModal.loading {
		t.Fatal("expected modal to keep loading past a stale result")
	}

	summary := &api.ChangeSummary{TitleFrom: "Director of IT", TitleTo: "CTO"}
	app.Update(diffResultMsg{contactID: "c-alma", summary: summary, err: nil})
	view := app.diffModal.View()
	if !strings.Contains(view, "Director of IT") || !strings.Contains(view, "CTO") {
		t.Fatalf("expected before and after values in modal, got %q", view)
	}

	app.handleKey(tea.KeyMsg{Type: tea.KeyEsc})
	if app.diffModal.Visible {
		t.Fatal("expected esc to close the modal")
	}
}

func TestAppConfigReloadRescoresRoster(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	next := testConfig()
	next.Scoring.BaseFresh = 80
	next.API.BaseURL = "http://backend.internal:9000"

	app.Update(configReloadedMsg{cfg: next})

	if app.cfg != next {
		t.Fatal("expected the reloaded config to be adopted")
	}
	if app.browser.scoring != next.ScoringModel() {
		t.Fatal("expected the browser to rescore with the new model")
	}
	if app.statusbar.Backend != "http://backend.internal:9000" {
		t.Fatalf("expected status bar backend updated, got %q", app.statusbar.Backend)
	}
}
