package booking

import (
	"context"
	"errors"
)

var ErrOrderNotFound = errors.New("order not found")

// Repository contains all DB interactions needed by the registry.
type Repository interface {
	Insert(ctx context.Context, order Order) error
	GetByID(ctx context.Context, orderID string) (*Order, error)

	// UpdateStatus transitions an order from one status to another as a
	// single conditional update; returns ErrOrderNotFound when no row
	// matched (unknown id or lost transition race).
	UpdateStatus(ctx context.Context, orderID string, from, to OrderStatus) (*Order, error)

	// ListByUser returns the user's orders, most recent first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)

	// ListByUserWithHospital is ListByUser joined with current hospital
	// contact details.
	ListByUserWithHospital(ctx context.Context, userID string) ([]OrderWithHospital, error)

	StatsByUser(ctx context.Context, userID string) (UserStats, error)
}
