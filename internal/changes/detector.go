package changes

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/prospectkeeper/keeper/internal/api"
)

// Fetcher resolves the per-contact diff resource. *api.Client satisfies it.
type Fetcher interface {
	LinkedInChange(ctx context.Context, contactID string) (*api.ChangeSummary, error)
}

// Detector lazily resolves field-level profile diffs. Each contact is
// fetched at most once per Detector lifetime: the outcome (a populated
// summary, a nil "no change on record", or the fetch error) is written
// once and then only read. Concurrent calls for the same contact collapse
// onto the single in-flight fetch.
type Detector struct {
	fetcher Fetcher

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	ready   chan struct{}
	summary *api.ChangeSummary
	err     error
}

func NewDetector(fetcher Fetcher) *Detector {
	return &Detector{fetcher: fetcher, entries: make(map[string]*entry)}
}

// Resolve returns the contact's change summary, nil when the backend has
// no tracked change on record. Waiting on someone else's in-flight fetch
// respects ctx; the fetch itself runs under the first caller's ctx.
func (d *Detector) Resolve(ctx context.Context, contactID string) (*api.ChangeSummary, error) {
	d.mu.Lock()
	e, ok := d.entries[contactID]
	if ok {
		d.mu.Unlock()
		select {
		case <-e.ready:
			return e.summary, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e = &entry{ready: make(chan struct{})}
	d.entries[contactID] = e
	d.mu.Unlock()

	e.summary, e.err = d.fetcher.LinkedInChange(ctx, contactID)
	close(e.ready)

	if e.err != nil {
		log.Debug().Err(e.err).Str("contact_id", contactID).Msg("changes.Detector: diff fetch failed")
	}
	return e.summary, e.err
}
