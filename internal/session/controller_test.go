package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prospectkeeper/keeper/internal/stream"
)

type fakeOpener struct {
	body  func() io.ReadCloser
	err   error
	calls atomic.Int32
}

func (f *fakeOpener) OpenVerifyStream(ctx context.Context, contactID string) (io.ReadCloser, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.body(), nil
}

func eventPayload(lines ...string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("data: ")
		b.WriteString(l)
		b.WriteString("\n\n")
	}
	return b.String()
}

func staticBody(payload string) func() io.ReadCloser {
	return func() io.ReadCloser { return io.NopCloser(strings.NewReader(payload)) }
}

func drainUpdates(t *testing.T, updates <-chan Update) []Update {
	t.Helper()
	deadline := time.After(5 * time.Second)
	var all []Update
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return all
			}
			all = append(all, u)
		case <-deadline:
			t.Fatal("timed out draining updates")
		}
	}
}

func TestControllerCompletesOnDone(t *testing.T) {
	t.Parallel()

	payload := eventPayload(
		`{"type":"start","contact":{"id":"c-1","name":"Dana Wells","organization":"Lincoln USD"}}`,
		`{"type":"thinking","text":"verifying current role"}`,
		`{"type":"tool_call","id":"t1","name":"update_contact","input":{"status":"active"}}`,
		`{"type":"tool_result","id":"t1","name":"update_contact","result":{"success":true,"contact_id":"c-1","status":"active"}}`,
		`{"type":"final","text":"Still in role."}`,
		`{"type":"done"}`,
		`{"type":"thinking","text":"must never be applied"}`,
	)
	opener := &fakeOpener{body: staticBody(payload)}
	ctrl := NewController(opener, "c-1")

	updates, err := ctrl.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	drainUpdates(t, updates)

	if got := ctrl.State(); got != StateCompleted {
		t.Fatalf("state = %q, want completed", got)
	}
	events := ctrl.Events()
	if len(events) != 6 {
		t.Fatalf("expected 6 events (nothing after done), got %d", len(events))
	}
	if events[len(events)-1].Type != stream.EventDone {
		t.Fatalf("expected done last, got %q", events[len(events)-1].Type)
	}

	outcome := ctrl.Verdict()
	if outcome.Verdict != VerdictActive {
		t.Fatalf("verdict = %q, want active", outcome.Verdict)
	}
	if outcome.Detail != "Still in role." {
		t.Fatalf("detail = %q", outcome.Detail)
	}
}

func TestControllerErrorEventEndsSessionBeforeTrailingDone(t *testing.T) {
	t.Parallel()

	payload := eventPayload(
		`{"type":"start","contact":{"id":"c-1","name":"Dana Wells"}}`,
		`{"type":"error","message":"Agent reached max iterations (10) without a verdict."}`,
		`{"type":"done"}`,
	)
	ctrl := NewController(&fakeOpener{body: staticBody(payload)}, "c-1")

	updates, err := ctrl.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	drainUpdates(t, updates)

	if got := ctrl.State(); got != StateErrored {
		t.Fatalf("state = %q, want errored", got)
	}
	events := ctrl.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events (done after error dropped), got %d", len(events))
	}
	if events[1].Type != stream.EventError {
		t.Fatalf("expected error event recorded, got %q", events[1].Type)
	}
}

func TestControllerSynthesizesErrorWhenOpenFails(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{err: errors.New("connection refused")}
	ctrl := NewController(opener, "c-1")

	updates, err := ctrl.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	drainUpdates(t, updates)

	if got := ctrl.State(); got != StateErrored {
		t.Fatalf("state = %q, want errored", got)
	}
	events := ctrl.Events()
	if len(events) != 1 || events[0].Type != stream.EventError {
		t.Fatalf("expected a single synthetic error event, got %+v", events)
	}
	if !strings.Contains(events[0].Message, "request failed") {
		t.Fatalf("unexpected synthetic message: %q", events[0].Message)
	}
}

func TestControllerRefusesSecondStartWhileRunning(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	defer pw.Close()
	opener := &fakeOpener{body: func() io.ReadCloser { return pr }}
	ctrl := NewController(opener, "c-1")

	updates, err := ctrl.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := ctrl.Start(context.Background()); !errors.Is(err, ErrRunActive) {
		t.Fatalf("second start: got %v, want ErrRunActive", err)
	}

	ctrl.Cancel()
	drainUpdates(t, updates)
	if got := ctrl.State(); got != StateCancelled {
		t.Fatalf("state = %q, want cancelled", got)
	}

	// A terminal session can be restarted, and the restart owns a fresh
	// event list.
	opener.body = staticBody(eventPayload(`{"type":"done"}`))
	updates, err = ctrl.Start(context.Background())
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	drainUpdates(t, updates)

	if got := ctrl.State(); got != StateCompleted {
		t.Fatalf("state after restart = %q, want completed", got)
	}
	if got := len(ctrl.Events()); got != 1 {
		t.Fatalf("expected restart to reset events, got %d", got)
	}
	if got := opener.calls.Load(); got != 2 {
		t.Fatalf("expected 2 stream opens, got %d", got)
	}
}

func TestCancelIsIdempotentInEveryState(t *testing.T) {
	t.Parallel()

	// Idle: nothing to do.
	idle := NewController(&fakeOpener{err: errors.New("unused")}, "c-1")
	idle.Cancel()
	idle.Cancel()
	if got := idle.State(); got != StateIdle {
		t.Fatalf("idle state changed to %q", got)
	}

	// Completed: cancel after natural termination stays a no-op.
	done := NewController(&fakeOpener{body: staticBody(eventPayload(`{"type":"done"}`))}, "c-1")
	updates, err := done.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	drainUpdates(t, updates)
	done.Cancel()
	done.Cancel()
	if got := done.State(); got != StateCompleted {
		t.Fatalf("state = %q, want completed after post-terminal cancels", got)
	}

	// Running: double cancel executes the transition exactly once.
	pr, pw := io.Pipe()
	defer pw.Close()
	running := NewController(&fakeOpener{body: func() io.ReadCloser { return pr }}, "c-1")
	updates, err = running.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	running.Cancel()
	running.Cancel()
	drainUpdates(t, updates)
	if got := running.State(); got != StateCancelled {
		t.Fatalf("state = %q, want cancelled", got)
	}
}

func TestControllerDeadlineBecomesTimeoutError(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	defer pw.Close()
	ctrl := NewController(&fakeOpener{body: func() io.ReadCloser { return pr }}, "c-1")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	updates, err := ctrl.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	drainUpdates(t, updates)

	if got := ctrl.State(); got != StateErrored {
		t.Fatalf("state = %q, want errored on deadline", got)
	}
	events := ctrl.Events()
	if len(events) == 0 {
		t.Fatal("expected a synthetic timeout event")
	}
	last := events[len(events)-1]
	if last.Type != stream.EventError || !strings.Contains(last.Message, "timed out") {
		t.Fatalf("unexpected terminal event: %+v", last)
	}
}

func TestControllerTreatsEOFWithoutTerminalAsError(t *testing.T) {
	t.Parallel()

	payload := eventPayload(
		`{"type":"start","contact":{"id":"c-1","name":"Dana Wells"}}`,
		`{"type":"thinking","text":"halfway there"}`,
	)
	ctrl := NewController(&fakeOpener{body: staticBody(payload)}, "c-1")

	updates, err := ctrl.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	drainUpdates(t, updates)

	if got := ctrl.State(); got != StateErrored {
		t.Fatalf("state = %q, want errored", got)
	}
	events := ctrl.Events()
	if len(events) != 3 {
		t.Fatalf("expected start+thinking+synthetic error, got %d events", len(events))
	}
	if !strings.Contains(events[2].Message, "stream ended") {
		t.Fatalf("unexpected synthetic message: %q", events[2].Message)
	}
}

func TestControllerElapsedTickerAdvances(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	ctrl := NewController(&fakeOpener{body: func() io.ReadCloser { return pr }}, "c-1")

	go func() {
		pw.Write([]byte("data: {\"type\":\"start\"}\n\n"))
		time.Sleep(1200 * time.Millisecond)
		pw.Write([]byte("data: {\"type\":\"done\"}\n\n"))
		pw.Close()
	}()

	updates, err := ctrl.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	sawTick := false
	for _, u := range drainUpdates(t, updates) {
		if u.Elapsed >= time.Second {
			sawTick = true
		}
	}
	if !sawTick {
		t.Fatal("expected at least one update with elapsed >= 1s")
	}
	if got := ctrl.State(); got != StateCompleted {
		t.Fatalf("state = %q, want completed", got)
	}
	if got := ctrl.Elapsed(); got < time.Second {
		t.Fatalf("frozen elapsed = %v, want >= 1s", got)
	}
}
