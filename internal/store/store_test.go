package store

import (
	"testing"
	"time"

	"github.com/calloutapp/callout/internal/model"
)

var base = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func pendingOffer(id string, expiresIn time.Duration) model.JobOffer {
	return model.JobOffer{ID: id, TaskName: "drain repair", ExpiresAt: base.Add(expiresIn)}
}

func TestOfferStore_AddAndGet(t *testing.T) {
	s := NewOfferStore()

	if !s.Add(pendingOffer("o1", time.Minute)) {
		t.Fatal("first add should succeed")
	}
	if s.Add(pendingOffer("o1", time.Hour)) {
		t.Error("adding a duplicate id should fail")
	}

	offer, ok := s.Get("o1")
	if !ok {
		t.Fatal("expected o1 present")
	}
	if !offer.ExpiresAt.Equal(base.Add(time.Minute)) {
		t.Error("duplicate add must not overwrite the original offer")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 pending offer, got %d", s.Len())
	}
}

func TestOfferStore_Remove(t *testing.T) {
	s := NewOfferStore()
	s.Add(pendingOffer("o1", time.Minute))

	if !s.Remove("o1") {
		t.Error("removing a pending offer should succeed")
	}
	if s.Remove("o1") {
		t.Error("removing twice should fail")
	}
	if _, ok := s.Get("o1"); ok {
		t.Error("removed offer should be gone")
	}
}

func TestOfferStore_SnapshotOrderedByExpiry(t *testing.T) {
	s := NewOfferStore()
	s.Add(pendingOffer("late", time.Hour))
	s.Add(pendingOffer("soon", time.Minute))
	s.Add(pendingOffer("mid", 30*time.Minute))

	snap := s.Snapshot()
	want := []string{"soon", "mid", "late"}
	if len(snap) != len(want) {
		t.Fatalf("expected %d offers, got %d", len(want), len(snap))
	}
	for i, id := range want {
		if snap[i].ID != id {
			t.Errorf("snapshot[%d] = %s, want %s", i, snap[i].ID, id)
		}
	}
}

func TestOfferStore_SnapshotIsACopy(t *testing.T) {
	s := NewOfferStore()
	s.Add(pendingOffer("o1", time.Minute))

	snap := s.Snapshot()
	snap[0].ID = "mutated"

	if _, ok := s.Get("o1"); !ok {
		t.Error("mutating a snapshot must not affect the store")
	}
}
