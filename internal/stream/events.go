package stream

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType discriminates the closed set of agent events the backend emits.
type EventType string

const (
	EventStart      EventType = "start"
	EventThinking   EventType = "thinking"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventFinal      EventType = "final"
	EventError      EventType = "error"
	EventDone       EventType = "done"
)

// Tool names the agent is known to dispatch. Unknown names still parse;
// renderers fall back to a generic label for them.
const (
	ToolLookupContact    = "lookup_contact"
	ToolScrapeDistrict   = "scrape_district_website"
	ToolScrapeLinkedIn   = "scrape_linkedin"
	ToolSendConfirmation = "send_confirmation_email"
	ToolUpdateContact    = "update_contact"
	ToolFlagForReview    = "flag_for_review"
)

// StartContact is the contact snapshot carried by a start event.
type StartContact struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
	Title        string `json:"title"`
	Status       string `json:"status"`
}

// AgentEvent is one event off the verification stream. Which fields are
// populated depends on Type: start carries Contact; thinking and final
// carry Text; tool_call carries ID/Name/Input; tool_result carries
// ID/Name/Result; error carries Message; done carries nothing.
type AgentEvent struct {
	Type    EventType       `json:"type"`
	Contact *StartContact   `json:"contact,omitempty"`
	Text    string          `json:"text,omitempty"`
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Input   json.RawMessage `json:"input,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`

	// At is when this client observed the event, stamped by the decoder.
	At time.Time `json:"-"`
}

// Terminal reports whether this event ends the session.
func (e AgentEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// ToolOutcome is the cross-tool subset of a tool_result payload. Success is
// a pointer because some tools (lookup) report no success flag at all.
type ToolOutcome struct {
	Success   *bool  `json:"success"`
	Error     string `json:"error"`
	ContactID string `json:"contact_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
}

// Failed reports an explicit failure marker: a non-empty error or
// success == false. Absent fields never count as failure.
func (o ToolOutcome) Failed() bool {
	if strings.TrimSpace(o.Error) != "" {
		return true
	}
	return o.Success != nil && !*o.Success
}

// Outcome decodes the shared tool_result fields. Returns the zero outcome
// for non-result events or undecodable payloads.
func (e AgentEvent) Outcome() ToolOutcome {
	var out ToolOutcome
	if e.Type != EventToolResult || len(e.Result) == 0 {
		return out
	}
	if err := json.Unmarshal(e.Result, &out); err != nil {
		return ToolOutcome{}
	}
	return out
}

// ParseFrame maps one frame to an event. It returns false for anything
// that is not a well-formed data line: keepalives, comment lines, broken
// JSON, and unrecognized types are all dropped without aborting the
// stream, since a bad frame may just be a partial write caught mid-flush.
func ParseFrame(frame string) (AgentEvent, bool) {
	frame = strings.TrimSpace(frame)
	if frame == "" || !strings.HasPrefix(frame, "data:") {
		return AgentEvent{}, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(frame, "data:"))
	if payload == "" {
		return AgentEvent{}, false
	}

	var event AgentEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return AgentEvent{}, false
	}
	switch event.Type {
	case EventStart, EventThinking, EventToolCall, EventToolResult, EventFinal, EventError, EventDone:
		return event, true
	default:
		return AgentEvent{}, false
	}
}
