package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `order_id, user_id, hospital_id, hospital_name,
	department, reserve_date, status, create_time`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order

	err := row.Scan(
		&o.OrderID,
		&o.UserID,
		&o.HospitalID,
		&o.HospitalName,
		&o.Department,
		&o.ReserveDate,
		&o.Status,
		&o.CreateTime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return &o, nil
}

func (r *PgRepository) Insert(ctx context.Context, order Order) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reserve_order (order_id, user_id, hospital_id, hospital_name,
			department, reserve_date, status, create_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, order.OrderID, order.UserID, order.HospitalID, order.HospitalName,
		order.Department, order.ReserveDate, order.Status, order.CreateTime)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, orderID string) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM reserve_order
		WHERE order_id = $1
	`, orderID)
	return scanOrder(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, orderID string, from, to OrderStatus) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE reserve_order
		SET status = $2
		WHERE order_id = $1
		  AND status = $3
		RETURNING `+orderColumns+`
	`, orderID, to, from)
	return scanOrder(row)
}

func (r *PgRepository) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM reserve_order
		WHERE user_id = $1
		ORDER BY create_time DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListByUserWithHospital(ctx context.Context, userID string) ([]OrderWithHospital, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.order_id, o.user_id, o.hospital_id, o.hospital_name,
		       o.department, o.reserve_date, o.status, o.create_time,
		       COALESCE(h.address, ''), COALESCE(h.phone, ''),
		       COALESCE(h.opening_hours, ''), COALESCE(h.hospital_level, '')
		FROM reserve_order o
		LEFT JOIN hospital_info h ON h.hospital_id = o.hospital_id
		WHERE o.user_id = $1
		ORDER BY o.create_time DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []OrderWithHospital
	for rows.Next() {
		var ow OrderWithHospital
		err := rows.Scan(
			&ow.OrderID,
			&ow.UserID,
			&ow.HospitalID,
			&ow.HospitalName,
			&ow.Department,
			&ow.ReserveDate,
			&ow.Status,
			&ow.CreateTime,
			&ow.HospitalAddress,
			&ow.HospitalPhone,
			&ow.OpeningHours,
			&ow.HospitalLevel,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, ow)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) StatsByUser(ctx context.Context, userID string) (UserStats, error) {
	var stats UserStats

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = $2),
		       COUNT(*) FILTER (WHERE status = $3),
		       COUNT(*) FILTER (WHERE status = $4)
		FROM reserve_order
		WHERE user_id = $1
	`, userID, StatusBooked, StatusCompleted, StatusCancelled).Scan(
		&stats.Total,
		&stats.Booked,
		&stats.Completed,
		&stats.Cancelled,
	)
	if err != nil {
		return UserStats{}, fmt.Errorf("count orders: %w", err)
	}

	return stats, nil
}
