package model

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the dispatch error taxonomy. Everything the remote
// authority can do wrong is folded into one of these before it reaches
// presentation; raw transport errors never leave the orchestrator.
var (
	// ErrOfferGone is the conflict case: the offer was resolved by another
	// actor (taken by a different provider, expired server-side) before our
	// action arrived. Distinct from a network failure.
	ErrOfferGone = errors.New("offer no longer available")

	// ErrBusy rejects a second action on an offer or toggle that already has
	// one in flight. Never reaches the network.
	ErrBusy = errors.New("operation already in flight")

	// ErrUnknownOffer means the offer id is not in the pending set and has no
	// recorded resolution.
	ErrUnknownOffer = errors.New("unknown offer")

	// ErrClockUnavailable marks degraded timer mode: countdowns freeze at
	// their last known value instead of crashing.
	ErrClockUnavailable = errors.New("clock unavailable")

	// ErrNotStartable means a scheduled job is still outside its early-start
	// window.
	ErrNotStartable = errors.New("job not startable yet")
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is the "offer no longer available" kind.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOfferGone)
}

// IsTransient reports whether err is a transient network failure worth a
// user re-tap. Conflicts and local rejections are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrOfferGone) || errors.Is(err, ErrBusy) || errors.Is(err, ErrUnknownOffer) {
		return false
	}
	return true
}
