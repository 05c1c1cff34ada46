// Package memory provides an in-memory PageStore for tests and local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
)

// Store keeps page records and business touch timestamps in maps guarded by
// one mutex. Upserts are last-writer-wins on (business_id, url), mirroring
// the Postgres implementation.
type Store struct {
	clock enrich.Clock

	mu      sync.Mutex
	pages   map[string]enrich.PageRecord
	touched map[string]time.Time
}

// New constructs an empty Store stamping rows with the given clock.
func New(clock enrich.Clock) *Store {
	return &Store{
		clock:   clock,
		pages:   make(map[string]enrich.PageRecord),
		touched: make(map[string]time.Time),
	}
}

func pageKey(businessID, url string) string {
	return businessID + "|" + url
}

// UpsertPage implements enrich.PageStore. UpdatedAt is always refreshed,
// whether or not the caller recomputed the AI fields.
func (s *Store) UpsertPage(_ context.Context, rec enrich.PageRecord) error {
	rec.UpdatedAt = s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[pageKey(rec.BusinessID, rec.URL)] = rec
	return nil
}

// GetPage implements enrich.PageStore.
func (s *Store) GetPage(_ context.Context, businessID, url string) (enrich.PageRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.pages[pageKey(businessID, url)]
	return rec, ok, nil
}

// IsBusinessRecentlyUpdated reports whether the business was touched or any
// of its pages upserted within the window.
func (s *Store) IsBusinessRecentlyUpdated(_ context.Context, businessID string, within time.Duration) (bool, error) {
	cutoff := s.clock.Now().Add(-within)
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.touched[businessID]; ok && t.After(cutoff) {
		return true, nil
	}
	for _, rec := range s.pages {
		if rec.BusinessID == businessID && rec.UpdatedAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

// TouchBusiness implements enrich.PageStore.
func (s *Store) TouchBusiness(_ context.Context, businessID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched[businessID] = s.clock.Now()
	return nil
}

// Pages returns a copy of every stored record for assertions in tests.
func (s *Store) Pages() []enrich.PageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]enrich.PageRecord, 0, len(s.pages))
	for _, rec := range s.pages {
		out = append(out, rec)
	}
	return out
}

// SeedPage inserts a record verbatim, preserving its UpdatedAt. Test helper.
func (s *Store) SeedPage(rec enrich.PageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[pageKey(rec.BusinessID, rec.URL)] = rec
}
