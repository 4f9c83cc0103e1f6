// Package freshness scores how much a human should trust a contact record
// without re-running verification, from nothing but its sync timestamps,
// status, and review flag.
package freshness

import (
	"time"

	"github.com/prospectkeeper/keeper/internal/api"
)

// Tier buckets how recently a contact's external data was synchronized.
type Tier string

const (
	TierFresh Tier = "fresh"
	TierIdle  Tier = "idle"
	TierStale Tier = "stale"
	TierNever Tier = "never"
)

// Model holds the scoring heuristics. The thresholds and adjustments are
// empirically chosen, so they live here as plain fields instead of being
// buried as magic numbers; DefaultModel is what ships.
type Model struct {
	FreshWithin      time.Duration
	IdleWithin       time.Duration
	SameScrapeWindow time.Duration

	BaseFresh int
	BaseIdle  int
	BaseStale int
	BaseNever int

	ActiveBonus   int
	ActiveCap     int
	InactiveBonus int
	InactiveCap   int
	ReviewPenalty int
	ReviewFloor   int
}

func DefaultModel() Model {
	return Model{
		FreshWithin:      30 * 24 * time.Hour,
		IdleWithin:       90 * 24 * time.Hour,
		SameScrapeWindow: 5 * time.Minute,
		BaseFresh:        92,
		BaseIdle:         68,
		BaseStale:        42,
		BaseNever:        15,
		ActiveBonus:      5,
		ActiveCap:        97,
		InactiveBonus:    4,
		InactiveCap:      95,
		ReviewPenalty:    8,
		ReviewFloor:      10,
	}
}

// Age returns how long ago the contact was last scraped, and false when
// there is no usable sync timestamp.
func Age(c api.Contact, now time.Time) (time.Duration, bool) {
	scraped, ok := api.ParseTimestamp(c.LastScrapedAt)
	if !ok {
		return 0, false
	}
	return now.Sub(scraped), true
}

// Tier classifies the contact's sync age. The thresholds are exclusive:
// an age of exactly FreshWithin is already idle.
func (m Model) Tier(c api.Contact, now time.Time) Tier {
	age, ok := Age(c, now)
	if !ok {
		return TierNever
	}
	switch {
	case age < m.FreshWithin:
		return TierFresh
	case age < m.IdleWithin:
		return TierIdle
	default:
		return TierStale
	}
}

// SameScrapeChanged reports whether the recorded change came out of the
// most recent sync rather than an older one, using timestamp proximity as
// the heuristic. The window is strict: a gap of exactly SameScrapeWindow
// does not count.
func (m Model) SameScrapeChanged(c api.Contact) bool {
	scraped, ok := api.ParseTimestamp(c.LastScrapedAt)
	if !ok {
		return false
	}
	changed, ok := api.ParseTimestamp(c.LastChangedAt)
	if !ok {
		return false
	}
	gap := scraped.Sub(changed)
	if gap < 0 {
		gap = -gap
	}
	return gap < m.SameScrapeWindow
}

// Confidence scores trust in the record. Base score per tier, then the
// status adjustment, then the review penalty, each with its own clamp, in
// that fixed order.
func (m Model) Confidence(c api.Contact, now time.Time) int {
	var score int
	switch m.Tier(c, now) {
	case TierFresh:
		score = m.BaseFresh
	case TierIdle:
		score = m.BaseIdle
	case TierStale:
		score = m.BaseStale
	default:
		score = m.BaseNever
	}

	switch c.Status {
	case api.StatusActive:
		score += m.ActiveBonus
		if score > m.ActiveCap {
			score = m.ActiveCap
		}
	case api.StatusInactive:
		score += m.InactiveBonus
		if score > m.InactiveCap {
			score = m.InactiveCap
		}
	}

	if c.NeedsHumanReview {
		score -= m.ReviewPenalty
		if score < m.ReviewFloor {
			score = m.ReviewFloor
		}
	}
	return score
}

// Insight returns one line of operator guidance. First matching rule wins.
func (m Model) Insight(c api.Contact, now time.Time) string {
	tier := m.Tier(c, now)
	switch {
	case tier == TierNever:
		return "No sync on record. Run a verification to establish a baseline."
	case c.Status == api.StatusInactive:
		return "Marked inactive. Prioritize finding a replacement contact."
	case c.Status == api.StatusActive && tier == TierFresh:
		return "Recently synced and active. Safe to reach out."
	case c.Status == api.StatusActive:
		return "Active, but the last sync is aging. Re-sync to be sure."
	case tier == TierFresh && m.SameScrapeChanged(c):
		return "The latest sync changed this record. Review the diff before outreach."
	case tier == TierFresh:
		return "Recently synced with no change detected."
	default:
		return "Data is aging. Re-sync before relying on this record."
	}
}
