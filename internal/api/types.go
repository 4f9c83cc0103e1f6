package api

import (
	"strings"
	"time"
)

// Contact statuses as the backend records them.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusUnknown  = "unknown"
	StatusOptedOut = "opted_out"
)

// Contact is a row from GET /contacts, enriched with LinkedIn freshness
// timestamps when a snapshot exists. The timestamps arrive as raw strings
// because the backend emits naive ISO-8601 for some rows; use ParseTimestamp.
type Contact struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Title            string `json:"title"`
	Organization     string `json:"organization"`
	Status           string `json:"status"`
	NeedsHumanReview bool   `json:"needs_human_review"`
	ReviewReason     string `json:"review_reason"`
	LinkedInURL      string `json:"linkedin_url"`
	DistrictWebsite  string `json:"district_website"`
	LastScrapedAt    string `json:"last_scraped_at"`
	LastChangedAt    string `json:"last_changed_at"`
}

// ContactUpsert is the request body for POST /contacts and PUT /contacts.
// NeedsHumanReview is always serialized; sending false un-flags the contact
// and clears its review reason server-side.
type ContactUpsert struct {
	ID               string `json:"id,omitempty"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Title            string `json:"title"`
	Organization     string `json:"organization"`
	LinkedInURL      string `json:"linkedin_url,omitempty"`
	DistrictWebsite  string `json:"district_website,omitempty"`
	Status           string `json:"status,omitempty"`
	NeedsHumanReview bool   `json:"needs_human_review"`
	ReviewReason     string `json:"review_reason,omitempty"`
}

// CreatedContact is the POST /contacts response.
type CreatedContact struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChangeSummary is the flat field diff from the most recent LinkedIn snapshot
// where profile data actually changed. The backend returns {} when there is
// no change on record; the client maps that to a nil *ChangeSummary.
type ChangeSummary struct {
	TitleFrom    string `json:"title_from"`
	TitleTo      string `json:"title_to"`
	OrgFrom      string `json:"org_from"`
	OrgTo        string `json:"org_to"`
	HeadlineFrom string `json:"headline_from"`
	HeadlineTo   string `json:"headline_to"`
}

func (s ChangeSummary) isEmpty() bool {
	return s == ChangeSummary{}
}

// FieldChange is one before/after pair in a ChangeSummary.
type FieldChange struct {
	Field string
	From  string
	To    string
}

// Fields returns the pairs that actually differ, in a stable display order.
// The backend writes all six keys on every change row, so unchanged pairs
// arrive with From == To and are skipped here.
func (s *ChangeSummary) Fields() []FieldChange {
	if s == nil {
		return nil
	}
	var changes []FieldChange
	for _, fc := range []FieldChange{
		{Field: "Title", From: s.TitleFrom, To: s.TitleTo},
		{Field: "Organization", From: s.OrgFrom, To: s.OrgTo},
		{Field: "Headline", From: s.HeadlineFrom, To: s.HeadlineTo},
	} {
		if fc.From == fc.To {
			continue
		}
		changes = append(changes, fc)
	}
	return changes
}

// HealthInfo is the GET /health response. Error carries the startup failure
// message when the backend came up degraded.
type HealthInfo struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// ConfigStatus reports which backend integrations have keys configured,
// plus the current batch settings.
type ConfigStatus struct {
	AnthropicConfigured  bool `json:"anthropic_configured"`
	SupabaseConfigured   bool `json:"supabase_configured"`
	LangfuseConfigured   bool `json:"langfuse_configured"`
	ZerobounceConfigured bool `json:"zerobounce_configured"`
	ResendConfigured     bool `json:"resend_configured"`
	BatchLimit           int  `json:"batch_limit"`
	BatchConcurrency     int  `json:"batch_concurrency"`
}

// SendResult is the POST /email/send-one response.
type SendResult struct {
	Success bool   `json:"success"`
	Email   string `json:"email"`
	Error   string `json:"error"`
}

// ParseTimestamp parses a backend timestamp. The API serves a mix of
// RFC 3339 strings and naive ISO-8601 (no zone, implicitly UTC) depending
// on which code path wrote the row. Returns false for empty or unparseable
// input rather than guessing.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
