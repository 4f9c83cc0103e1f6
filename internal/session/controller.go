package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prospectkeeper/keeper/internal/stream"
)

// StreamOpener opens the verification event stream for one contact.
// *api.Client satisfies it.
type StreamOpener interface {
	OpenVerifyStream(ctx context.Context, contactID string) (io.ReadCloser, error)
}

// State is the lifecycle of one verification session.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateErrored   State = "errored"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the session has finished.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateErrored || s == StateCancelled
}

// ErrRunActive is returned by Start while a run is already in flight.
// Concurrent runs for the same contact are refused, never queued.
var ErrRunActive = errors.New("a verification run is already active")

// Update is a wake-up notification: a new event was applied, a second of
// elapsed time passed, or the session reached a terminal state. Consumers
// should treat the controller's getters as the authoritative state; an
// Update may be dropped if the consumer is gone when the run tears down.
type Update struct {
	State   State
	Event   *stream.AgentEvent
	Elapsed time.Duration
}

// Controller drives one verification run per contact: it opens the
// stream, applies events strictly in arrival order, keeps a 1-second
// elapsed timer, and owns the ticker and network body for exactly the
// duration of the run.
type Controller struct {
	opener    StreamOpener
	contactID string

	mu           sync.Mutex
	state        State
	events       []stream.AgentEvent
	startedAt    time.Time
	finalElapsed time.Duration
	cancel       context.CancelFunc
}

func NewController(opener StreamOpener, contactID string) *Controller {
	return &Controller{opener: opener, contactID: contactID, state: StateIdle}
}

func (c *Controller) ContactID() string {
	return c.contactID
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events returns a copy of the accumulated transcript.
func (c *Controller) Events() []stream.AgentEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]stream.AgentEvent, len(c.events))
	copy(out, c.events)
	return out
}

// Elapsed is the run duration at 1-second resolution, frozen at the
// value it had when the session terminated.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning {
		return time.Since(c.startedAt).Truncate(time.Second)
	}
	return c.finalElapsed
}

// StartedAt is the wall-clock start of the most recent run. Zero until
// the first Start.
func (c *Controller) StartedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startedAt
}

// Verdict reduces the accumulated events. Meaningful once the session
// has reached a terminal state.
func (c *Controller) Verdict() Outcome {
	return Reduce(c.Events())
}

// Start launches a run and returns its update channel, closed when the
// session reaches a terminal state. Restarting after termination discards
// all previously accumulated events. Starting while running is refused.
func (c *Controller) Start(ctx context.Context) (<-chan Update, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	if c.state == StateRunning {
		c.mu.Unlock()
		return nil, ErrRunActive
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.state = StateRunning
	c.events = nil
	c.startedAt = time.Now()
	c.finalElapsed = 0
	c.cancel = cancel
	c.mu.Unlock()

	log.Debug().Str("contact_id", c.contactID).Msg("session.Controller: run started")

	updates := make(chan Update, 8)
	go c.run(runCtx, cancel, updates)
	return updates, nil
}

// Cancel aborts the active run. Safe to call in any state, from any
// goroutine, and more than once; outside a running session it is a no-op.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, updates chan Update) {
	defer close(updates)
	defer cancel()

	final := c.consume(ctx, updates)

	c.mu.Lock()
	c.state = final
	c.finalElapsed = time.Since(c.startedAt).Truncate(time.Second)
	c.cancel = nil
	elapsed := c.finalElapsed
	count := len(c.events)
	c.mu.Unlock()

	// Best effort: the consumer may already have walked away.
	select {
	case updates <- Update{State: final, Elapsed: elapsed}:
	default:
	}

	log.Debug().
		Str("contact_id", c.contactID).
		Str("state", string(final)).
		Int("events", count).
		Dur("elapsed", elapsed).
		Msg("session.Controller: run finished")
}

func (c *Controller) consume(ctx context.Context, updates chan Update) State {
	body, err := c.opener.OpenVerifyStream(ctx, c.contactID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return StateCancelled
		}
		msg := "request failed: " + err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out before the agent could start"
		}
		log.Error().Err(err).Str("contact_id", c.contactID).Msg("session.Controller: stream open failed")
		c.append(ctx, updates, syntheticError(msg))
		return StateErrored
	}
	defer body.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	type decoded struct {
		event stream.AgentEvent
		err   error
	}
	frames := make(chan decoded)
	go func() {
		dec := stream.NewDecoder(body)
		for {
			event, err := dec.Next()
			select {
			case frames <- decoded{event: event, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				c.append(ctx, updates, syntheticError("verification timed out"))
				return StateErrored
			}
			return StateCancelled

		case <-ticker.C:
			c.mu.Lock()
			elapsed := time.Since(c.startedAt).Truncate(time.Second)
			c.mu.Unlock()
			select {
			case updates <- Update{State: StateRunning, Elapsed: elapsed}:
			case <-ctx.Done():
			}

		case d := <-frames:
			if ctx.Err() != nil {
				// Cancelled with a frame in flight; do not apply it.
				continue
			}
			if d.err != nil {
				if errors.Is(d.err, io.EOF) {
					c.append(ctx, updates, syntheticError("stream ended before the agent finished"))
					return StateErrored
				}
				c.append(ctx, updates, syntheticError("stream read failed: "+d.err.Error()))
				return StateErrored
			}
			c.append(ctx, updates, d.event)
			switch d.event.Type {
			case stream.EventDone:
				return StateCompleted
			case stream.EventError:
				return StateErrored
			}
		}
	}
}

// append records an event and notifies the consumer. Recording always
// happens; the notification is skipped once the run context is gone.
func (c *Controller) append(ctx context.Context, updates chan Update, event stream.AgentEvent) {
	c.mu.Lock()
	c.events = append(c.events, event)
	elapsed := time.Since(c.startedAt).Truncate(time.Second)
	c.mu.Unlock()

	select {
	case updates <- Update{State: StateRunning, Event: &event, Elapsed: elapsed}:
	case <-ctx.Done():
	}
}

func syntheticError(msg string) stream.AgentEvent {
	return stream.AgentEvent{Type: stream.EventError, Message: msg, At: time.Now().UTC()}
}
