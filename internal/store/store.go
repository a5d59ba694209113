// Package store holds the pending offer set and the resolution journal.
package store

import (
	"sort"
	"sync"

	"github.com/calloutapp/callout/internal/model"
)

// OfferStore is the single shared mutable structure of the engine: the set of
// currently pending offers. Only the dispatch orchestrator mutates it; every
// other component reads snapshots.
type OfferStore struct {
	mu     sync.RWMutex
	offers map[string]model.JobOffer
}

func NewOfferStore() *OfferStore {
	return &OfferStore{offers: make(map[string]model.JobOffer)}
}

// Add inserts an offer into the pending set. Returns false if an offer with
// the same id is already pending.
func (s *OfferStore) Add(offer model.JobOffer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offers[offer.ID]; ok {
		return false
	}
	s.offers[offer.ID] = offer
	return true
}

// Get returns the pending offer with the given id.
func (s *OfferStore) Get(id string) (model.JobOffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	offer, ok := s.offers[id]
	return offer, ok
}

// Remove deletes an offer from the pending set. Returns false if it was not
// pending.
func (s *OfferStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offers[id]; !ok {
		return false
	}
	delete(s.offers, id)
	return true
}

// Snapshot returns a copy of the pending set ordered by expiry, soonest
// first. Callers may hold onto it without affecting the store.
func (s *OfferStore) Snapshot() []model.JobOffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.JobOffer, 0, len(s.offers))
	for _, offer := range s.offers {
		out = append(out, offer)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out
}

// Len returns the number of pending offers.
func (s *OfferStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.offers)
}
