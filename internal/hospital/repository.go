package hospital

import (
	"context"
	"errors"
)

var ErrHospitalNotFound = errors.New("hospital not found")

// Repository contains all DB interactions needed by the catalog service.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Hospital, error)

	// ListAll returns every hospital regardless of status; the department
	// index is derived from it.
	ListAll(ctx context.Context) ([]Hospital, error)

	// ListEnabled returns enabled hospitals ordered by level descending.
	ListEnabled(ctx context.Context) ([]Hospital, error)

	// ListByDepartment returns enabled hospitals whose departments field
	// contains dept, ordered by level descending.
	ListByDepartment(ctx context.Context, dept string) ([]Hospital, error)

	Search(ctx context.Context, criteria SearchCriteria) ([]Hospital, error)
}
