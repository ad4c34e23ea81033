package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldercare/hospital-registration/internal/hospital"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) GetQuota(ctx context.Context, hospitalID string) (Quota, error) {
	var q Quota

	err := s.pool.QueryRow(ctx, `
		SELECT daily_quota, available_quota
		FROM hospital_info
		WHERE hospital_id = $1
	`, hospitalID).Scan(&q.Daily, &q.Available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quota{}, hospital.ErrHospitalNotFound
		}
		return Quota{}, fmt.Errorf("load quota: %w", err)
	}

	return q, nil
}

func (s *PgStore) TryDecrement(ctx context.Context, hospitalID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE hospital_info
		SET available_quota = available_quota - 1
		WHERE hospital_id = $1
		  AND available_quota > 0
	`, hospitalID)
	if err != nil {
		return false, fmt.Errorf("decrement quota: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) IncrementCapped(ctx context.Context, hospitalID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE hospital_info
		SET available_quota = LEAST(available_quota + 1, daily_quota)
		WHERE hospital_id = $1
		  AND daily_quota IS NOT NULL
		  AND available_quota < daily_quota
	`, hospitalID)
	if err != nil {
		return fmt.Errorf("restore quota: %w", err)
	}

	return nil
}

func (s *PgStore) CountBooked(ctx context.Context, hospitalID, reserveDate string) (int, error) {
	var count int

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM reserve_order
		WHERE hospital_id = $1
		  AND reserve_date = $2
		  AND status = 'booked'
	`, hospitalID, reserveDate).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count booked orders: %w", err)
	}

	return count, nil
}
