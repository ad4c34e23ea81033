package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/eldercare/hospital-registration/internal/hospital"
	redisclient "github.com/eldercare/hospital-registration/internal/redis"
)

var (
	ErrMissingField      = errors.New("missing required field")
	ErrBadReserveDate    = errors.New("reserve date must be YYYY-MM-DD")
	ErrHospitalDisabled  = errors.New("hospital is not accepting bookings")
	ErrUnknownDepartment = errors.New("hospital does not offer this department")
	ErrInvalidTransition = errors.New("order status does not permit this transition")
	ErrHospitalBusy      = errors.New("hospital is busy with another booking, please retry")
)

// Catalog is the slice of the hospital catalog the registry needs.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*hospital.Hospital, error)
}

// Ledger guards hospital capacity. TryReserve reports whether it actually
// decremented the live counter, so a failed persist knows whether a
// compensating Release is owed.
type Ledger interface {
	TryReserve(ctx context.Context, hospitalID, reserveDate string) (bool, error)
	Release(ctx context.Context, hospitalID string) error
}

// BookRequest carries the caller-supplied order fields. OrderID and
// Department are optional; a missing OrderID gets generated.
type BookRequest struct {
	OrderID     string
	UserID      string
	HospitalID  string
	Department  string
	ReserveDate string
}

// Service is the appointment registry: it owns the order records and their
// state machine, and orchestrates the catalog and quota ledger around them.
type Service struct {
	repo    Repository
	catalog Catalog
	ledger  Ledger
	locker  redisclient.Locker
}

func NewService(repo Repository, catalog Catalog, ledger Ledger, locker redisclient.Locker) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		ledger:  ledger,
		locker:  locker,
	}
}

// Book creates a new order in Booked state after validating the hospital,
// the department and the remaining quota. Reserve and persist run inside a
// per-hospital lock so concurrent bookings against the last slot cannot
// both succeed; if persistence fails after the counter was decremented the
// reservation is released again before the error is surfaced.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Order, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user_id", ErrMissingField)
	}
	if req.HospitalID == "" {
		return nil, fmt.Errorf("%w: hospital_id", ErrMissingField)
	}
	if req.ReserveDate == "" {
		return nil, fmt.Errorf("%w: reserve_date", ErrMissingField)
	}
	if _, err := time.Parse("2006-01-02", req.ReserveDate); err != nil {
		return nil, fmt.Errorf("%w: got %q", ErrBadReserveDate, req.ReserveDate)
	}

	hosp, err := s.catalog.GetByID(ctx, req.HospitalID)
	if err != nil {
		if errors.Is(err, hospital.ErrHospitalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load hospital: %w", err)
	}
	if hosp.Status != hospital.StatusEnabled {
		return nil, ErrHospitalDisabled
	}

	if req.Department != "" && !hosp.HasDepartment(req.Department) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDepartment, req.Department)
	}

	var created *Order

	err = s.locker.WithHospitalLock(ctx, req.HospitalID, func(lockCtx context.Context) error {
		reserved, err := s.ledger.TryReserve(lockCtx, req.HospitalID, req.ReserveDate)
		if err != nil {
			return err
		}

		orderID := req.OrderID
		if orderID == "" {
			orderID = uuid.NewString()
		}

		order := Order{
			OrderID:      orderID,
			UserID:       req.UserID,
			HospitalID:   req.HospitalID,
			HospitalName: hosp.Name,
			Department:   req.Department,
			ReserveDate:  req.ReserveDate,
			Status:       StatusBooked,
			CreateTime:   time.Now().UnixMilli(),
		}

		if err := s.repo.Insert(lockCtx, order); err != nil {
			if reserved {
				if relErr := s.ledger.Release(lockCtx, req.HospitalID); relErr != nil {
					log.Printf("compensating release failed hospital_id=%s: %v", req.HospitalID, relErr)
				}
			}
			return fmt.Errorf("persist order: %w", err)
		}

		created = &order
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrHospitalBusy
		}
		return nil, err
	}

	log.Printf("order booked order_id=%s user_id=%s hospital_id=%s date=%s",
		created.OrderID, created.UserID, created.HospitalID, created.ReserveDate)

	return created, nil
}

// Cancel moves a Booked order to Cancelled and restores one unit of quota.
// The status check and update are a single conditional statement, so a
// double cancel loses the race before any quota mutation happens.
func (s *Service) Cancel(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order_id", ErrMissingField)
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, fmt.Errorf("%w: order is already %s", ErrInvalidTransition, order.Status)
	}

	updated, err := s.repo.UpdateStatus(ctx, orderID, StatusBooked, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			// Row existed a moment ago; a concurrent transition won.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	// The cancel is committed at this point. A failed release loses one
	// counter unit until the next reseed, which beats reporting an error
	// for an order that did get cancelled; log it like Book's
	// compensating path does.
	if err := s.ledger.Release(ctx, updated.HospitalID); err != nil {
		log.Printf("quota release failed after cancel order_id=%s hospital_id=%s: %v",
			updated.OrderID, updated.HospitalID, err)
	}

	log.Printf("order cancelled order_id=%s hospital_id=%s", updated.OrderID, updated.HospitalID)

	return updated, nil
}

// Complete moves a Booked order to Completed. The consumed slot is not
// returned.
func (s *Service) Complete(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order_id", ErrMissingField)
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != StatusBooked {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidTransition, order.Status)
	}

	updated, err := s.repo.UpdateStatus(ctx, orderID, StatusBooked, StatusCompleted)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("complete order: %w", err)
	}

	return updated, nil
}

// UserOrders lists a user's orders, most recent first.
func (s *Service) UserOrders(ctx context.Context, userID string) ([]Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id", ErrMissingField)
	}

	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// UserOrdersWithHospital lists a user's orders joined with the hospital's
// current contact details.
func (s *Service) UserOrdersWithHospital(ctx context.Context, userID string) ([]OrderWithHospital, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id", ErrMissingField)
	}

	orders, err := s.repo.ListByUserWithHospital(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders with hospital: %w", err)
	}
	return orders, nil
}

func (s *Service) OrderDetail(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order_id", ErrMissingField)
	}
	return s.repo.GetByID(ctx, orderID)
}

func (s *Service) UserOrderStats(ctx context.Context, userID string) (UserStats, error) {
	if userID == "" {
		return UserStats{}, fmt.Errorf("%w: user_id", ErrMissingField)
	}

	stats, err := s.repo.StatsByUser(ctx, userID)
	if err != nil {
		return UserStats{}, fmt.Errorf("stats for user: %w", err)
	}
	return stats, nil
}
