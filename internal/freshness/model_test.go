package freshness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/prospectkeeper/keeper/internal/api"
)

var now = time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

func contactSyncedAgo(age time.Duration) api.Contact {
	return api.Contact{
		ID:            "c-1",
		Status:        api.StatusUnknown,
		LastScrapedAt: now.Add(-age).Format(time.RFC3339),
	}
}

// TestTierBoundaries pins the exclusive threshold behavior: exactly 30
// days is idle, exactly 90 days is stale.
func TestTierBoundaries(t *testing.T) {
	t.Parallel()

	m := DefaultModel()

	tests := []struct {
		name    string
		contact api.Contact
		want    Tier
	}{
		{name: "just synced", contact: contactSyncedAgo(time.Hour), want: TierFresh},
		{name: "just under 30 days", contact: contactSyncedAgo(30*24*time.Hour - time.Second), want: TierFresh},
		{name: "exactly 30 days", contact: contactSyncedAgo(30 * 24 * time.Hour), want: TierIdle},
		{name: "just under 90 days", contact: contactSyncedAgo(90*24*time.Hour - time.Second), want: TierIdle},
		{name: "exactly 90 days", contact: contactSyncedAgo(90 * 24 * time.Hour), want: TierStale},
		{name: "ancient", contact: contactSyncedAgo(365 * 24 * time.Hour), want: TierStale},
		{name: "no timestamp", contact: api.Contact{Status: api.StatusActive}, want: TierNever},
		{name: "unparseable timestamp", contact: api.Contact{LastScrapedAt: "not a date"}, want: TierNever},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Tier(tt.contact, now))
		})
	}
}

// TestConfidence covers the base-per-tier scores and the clamp behavior of
// each adjustment applied in its fixed order.
func TestConfidence(t *testing.T) {
	t.Parallel()

	m := DefaultModel()

	tests := []struct {
		name    string
		contact api.Contact
		want    int
	}{
		{
			name: "fresh active caps at 97",
			contact: func() api.Contact {
				c := contactSyncedAgo(time.Hour)
				c.Status = api.StatusActive
				return c
			}(),
			want: 97,
		},
		{
			name:    "never with review flag floors at 10",
			contact: api.Contact{Status: api.StatusUnknown, NeedsHumanReview: true},
			want:    10,
		},
		{
			name: "idle inactive",
			contact: func() api.Contact {
				c := contactSyncedAgo(45 * 24 * time.Hour)
				c.Status = api.StatusInactive
				return c
			}(),
			want: 72,
		},
		{
			name: "fresh inactive hits the 95 cap before the review penalty",
			contact: func() api.Contact {
				c := contactSyncedAgo(time.Hour)
				c.Status = api.StatusInactive
				c.NeedsHumanReview = true
				return c
			}(),
			want: 87, // 92+4 capped to 95, then -8
		},
		{
			name: "stale with review flag",
			contact: func() api.Contact {
				c := contactSyncedAgo(120 * 24 * time.Hour)
				c.NeedsHumanReview = true
				return c
			}(),
			want: 34,
		},
		{
			name:    "never active",
			contact: api.Contact{Status: api.StatusActive},
			want:    20,
		},
		{
			name:    "fresh unknown gets the bare base",
			contact: contactSyncedAgo(time.Hour),
			want:    92,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Confidence(tt.contact, now))
		})
	}
}

// TestSameScrapeChanged pins the strict 5-minute window.
func TestSameScrapeChanged(t *testing.T) {
	t.Parallel()

	m := DefaultModel()
	scraped := now.Add(-24 * time.Hour)

	withGap := func(gap time.Duration) api.Contact {
		return api.Contact{
			LastScrapedAt: scraped.Format(time.RFC3339),
			LastChangedAt: scraped.Add(-gap).Format(time.RFC3339),
		}
	}

	assert.True(t, m.SameScrapeChanged(withGap(0)))
	assert.True(t, m.SameScrapeChanged(withGap(4*time.Minute+59*time.Second)))
	assert.False(t, m.SameScrapeChanged(withGap(5*time.Minute)))
	assert.False(t, m.SameScrapeChanged(withGap(6*time.Hour)))

	// Change recorded after the scrape counts the same way.
	c := api.Contact{
		LastScrapedAt: scraped.Format(time.RFC3339),
		LastChangedAt: scraped.Add(2 * time.Minute).Format(time.RFC3339),
	}
	assert.True(t, m.SameScrapeChanged(c))

	assert.False(t, m.SameScrapeChanged(api.Contact{LastScrapedAt: scraped.Format(time.RFC3339)}))
	assert.False(t, m.SameScrapeChanged(api.Contact{LastChangedAt: scraped.Format(time.RFC3339)}))
}

// TestInsightPriority verifies first-match-wins ordering of the guidance
// chain.
func TestInsightPriority(t *testing.T) {
	t.Parallel()

	m := DefaultModel()

	// Never-synced wins even over an inactive status.
	neverInactive := api.Contact{Status: api.StatusInactive}
	assert.Contains(t, m.Insight(neverInactive, now), "No sync on record")

	inactive := contactSyncedAgo(time.Hour)
	inactive.Status = api.StatusInactive
	assert.Contains(t, m.Insight(inactive, now), "replacement")

	activeFresh := contactSyncedAgo(time.Hour)
	activeFresh.Status = api.StatusActive
	assert.Contains(t, m.Insight(activeFresh, now), "Safe to reach out")

	activeStale := contactSyncedAgo(200 * 24 * time.Hour)
	activeStale.Status = api.StatusActive
	assert.Contains(t, m.Insight(activeStale, now), "Re-sync")

	freshChanged := contactSyncedAgo(time.Hour)
	freshChanged.LastChangedAt = freshChanged.LastScrapedAt
	assert.Contains(t, m.Insight(freshChanged, now), "Review the diff")

	freshQuiet := contactSyncedAgo(time.Hour)
	assert.Contains(t, m.Insight(freshQuiet, now), "no change detected")

	idleUnknown := contactSyncedAgo(45 * 24 * time.Hour)
	assert.Contains(t, m.Insight(idleUnknown, now), "Re-sync")
}

func TestAge(t *testing.T) {
	t.Parallel()

	c := contactSyncedAgo(36 * time.Hour)
	age, ok := Age(c, now)
	assert.True(t, ok)
	assert.Equal(t, 36*time.Hour, age)

	_, ok = Age(api.Contact{}, now)
	assert.False(t, ok)
}
