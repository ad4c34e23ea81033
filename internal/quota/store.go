package quota

import "context"

// Quota is the configured and remaining capacity of one hospital. Both
// fields are nil for unmetered hospitals.
type Quota struct {
	Daily     *int
	Available *int
}

// Store contains the DB interactions needed by the ledger. The decrement
// and increment are single conditional statements so concurrent callers
// can never race the counter past its bounds.
type Store interface {
	GetQuota(ctx context.Context, hospitalID string) (Quota, error)

	// TryDecrement atomically decrements available_quota if it is still
	// positive; reports whether a unit was taken.
	TryDecrement(ctx context.Context, hospitalID string) (bool, error)

	// IncrementCapped atomically restores one unit, never exceeding the
	// configured daily quota. A no-op for unmetered hospitals.
	IncrementCapped(ctx context.Context, hospitalID string) error

	// CountBooked counts orders in Booked state for hospital+date; used by
	// the fallback check when the counter was not pre-seeded.
	CountBooked(ctx context.Context, hospitalID, reserveDate string) (int, error)
}
