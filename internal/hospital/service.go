package hospital

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Service is the read-only catalog view: department listings, hospital
// search and nearby lookup. The quota ledger owns all mutation of
// available_quota; this service only observes it.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Departments returns the union of all hospitals' department names,
// deduplicated and sorted.
func (s *Service) Departments(ctx context.Context) ([]string, error) {
	hospitals, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list hospitals: %w", err)
	}

	seen := make(map[string]struct{})
	var departments []string
	for _, h := range hospitals {
		for _, dept := range h.DepartmentList() {
			if _, ok := seen[dept]; ok {
				continue
			}
			seen[dept] = struct{}{}
			departments = append(departments, dept)
		}
	}

	sort.Strings(departments)
	return departments, nil
}

// HospitalsByDepartment lists enabled hospitals offering the department,
// best level first. A blank department yields an empty list.
func (s *Service) HospitalsByDepartment(ctx context.Context, dept string) ([]Hospital, error) {
	if dept == "" {
		return nil, nil
	}

	hospitals, err := s.repo.ListByDepartment(ctx, dept)
	if err != nil {
		return nil, fmt.Errorf("list hospitals by department: %w", err)
	}
	return hospitals, nil
}

// DepartmentsOf returns the department list of one hospital.
func (s *Service) DepartmentsOf(ctx context.Context, hospitalID string) ([]string, error) {
	h, err := s.repo.GetByID(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	return h.DepartmentList(), nil
}

// AllHospitals lists enabled hospitals, best level first.
func (s *Service) AllHospitals(ctx context.Context) ([]Hospital, error) {
	hospitals, err := s.repo.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list hospitals: %w", err)
	}
	return hospitals, nil
}

func (s *Service) Detail(ctx context.Context, hospitalID string) (*Hospital, error) {
	return s.repo.GetByID(ctx, hospitalID)
}

func (s *Service) Search(ctx context.Context, criteria SearchCriteria) ([]Hospital, error) {
	hospitals, err := s.repo.Search(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("search hospitals: %w", err)
	}
	return hospitals, nil
}

// Nearby returns enabled hospitals around (lon, lat) sorted by ascending
// distance. Missing coordinates degrade to an empty result rather than an
// error; ties keep catalog order.
func (s *Service) Nearby(ctx context.Context, lon, lat *float64, radiusKm *float64, dept string) ([]NearbyHospital, error) {
	if lon == nil || lat == nil {
		return nil, nil
	}

	var (
		hospitals []Hospital
		err       error
	)
	if dept != "" {
		hospitals, err = s.repo.ListByDepartment(ctx, dept)
	} else {
		hospitals, err = s.repo.ListEnabled(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list candidate hospitals: %w", err)
	}

	var result []NearbyHospital
	for _, h := range hospitals {
		if h.Longitude == nil || h.Latitude == nil {
			continue
		}

		distance := DistanceKm(*lat, *lon, *h.Latitude, *h.Longitude)
		if radiusKm != nil && *radiusKm > 0 && distance > *radiusKm {
			continue
		}

		result = append(result, NearbyHospital{
			Hospital:   h,
			DistanceKm: math.Round(distance*100) / 100,
			Available:  isBookable(&h),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DistanceKm < result[j].DistanceKm
	})

	return result, nil
}

// CheckAvailable reports whether the hospital currently accepts bookings.
// Unknown hospitals report false rather than erroring.
func (s *Service) CheckAvailable(ctx context.Context, hospitalID string) (bool, error) {
	if hospitalID == "" {
		return false, nil
	}

	h, err := s.repo.GetByID(ctx, hospitalID)
	if err != nil {
		if errors.Is(err, ErrHospitalNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load hospital: %w", err)
	}

	return isBookable(h), nil
}

// AppointmentInfo returns the booking snapshot for one hospital: quota
// figures plus a short human readable availability message.
func (s *Service) AppointmentInfo(ctx context.Context, hospitalID string) (*AppointmentInfo, error) {
	h, err := s.repo.GetByID(ctx, hospitalID)
	if err != nil {
		return nil, err
	}

	info := &AppointmentInfo{
		Hospital:  *h,
		Available: isBookable(h),
	}

	if h.DailyQuota != nil && h.AvailableQuota != nil {
		info.BookedQuota = *h.DailyQuota - *h.AvailableQuota
	}

	switch {
	case info.Available:
		info.Message = "open for booking"
	case h.AvailableQuota != nil && *h.AvailableQuota <= 0:
		info.Message = "fully booked today"
	default:
		info.Message = "not accepting bookings"
	}

	return info, nil
}

// isBookable is the shared availability rule: enabled status with a known,
// positive remaining quota.
func isBookable(h *Hospital) bool {
	return h.Status == StatusEnabled &&
		h.AvailableQuota != nil &&
		*h.AvailableQuota > 0
}
