package quota

import (
	"context"
	"errors"
	"fmt"
)

var ErrQuotaExhausted = errors.New("no remaining quota for the requested date")

// Ledger owns the available-quota counter per hospital. A hospital with no
// daily quota configured has unlimited capacity: TryReserve always succeeds
// and Release is a no-op.
//
// TryReserve and Release run single conditional statements against the
// counter, so they are safe to call concurrently. The fallback count in
// TryReserve is a check-then-allow step; callers serialize it per hospital
// (the booking registry holds a per-hospital lock around reserve+persist).
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// TryReserve takes one unit of capacity for hospitalID on the given date.
// The fast path is an atomic conditional decrement. When the counter is
// exhausted a secondary check counts Booked orders against the daily cap,
// which covers hospitals whose counter was not pre-seeded. The returned
// bool reports whether the counter was actually decremented, so a failed
// booking knows whether a compensating Release is owed.
func (l *Ledger) TryReserve(ctx context.Context, hospitalID, reserveDate string) (bool, error) {
	q, err := l.store.GetQuota(ctx, hospitalID)
	if err != nil {
		return false, err
	}

	// Unmetered hospital: nothing to decrement.
	if q.Daily == nil {
		return false, nil
	}

	taken, err := l.store.TryDecrement(ctx, hospitalID)
	if err != nil {
		return false, err
	}
	if taken {
		return true, nil
	}

	booked, err := l.store.CountBooked(ctx, hospitalID, reserveDate)
	if err != nil {
		return false, err
	}
	if booked >= *q.Daily {
		return false, ErrQuotaExhausted
	}

	return false, nil
}

// Release restores one unit of capacity, capped at the daily quota. Safe to
// call for unmetered hospitals, where it does nothing.
func (l *Ledger) Release(ctx context.Context, hospitalID string) error {
	if err := l.store.IncrementCapped(ctx, hospitalID); err != nil {
		return fmt.Errorf("release quota for hospital %s: %w", hospitalID, err)
	}
	return nil
}
