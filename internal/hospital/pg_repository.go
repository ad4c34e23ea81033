package hospital

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const hospitalColumns = `hospital_id, hospital_name, hospital_level, hospital_type,
	address, phone, emergency_phone, longitude, latitude,
	departments, daily_quota, available_quota, opening_hours, status`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanHospital(row pgx.Row) (*Hospital, error) {
	var h Hospital

	err := row.Scan(
		&h.ID,
		&h.Name,
		&h.Level,
		&h.Type,
		&h.Address,
		&h.Phone,
		&h.EmergencyPhone,
		&h.Longitude,
		&h.Latitude,
		&h.Departments,
		&h.DailyQuota,
		&h.AvailableQuota,
		&h.OpeningHours,
		&h.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHospitalNotFound
		}
		return nil, err
	}

	return &h, nil
}

func collectHospitals(rows pgx.Rows) ([]Hospital, error) {
	defer rows.Close()

	var result []Hospital
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *h)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id string) (*Hospital, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+hospitalColumns+`
		FROM hospital_info
		WHERE hospital_id = $1
	`, id)
	return scanHospital(row)
}

func (r *PgRepository) ListAll(ctx context.Context) ([]Hospital, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+hospitalColumns+`
		FROM hospital_info
		ORDER BY hospital_id
	`)
	if err != nil {
		return nil, err
	}
	return collectHospitals(rows)
}

func (r *PgRepository) ListEnabled(ctx context.Context) ([]Hospital, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+hospitalColumns+`
		FROM hospital_info
		WHERE status = $1
		ORDER BY hospital_level DESC, hospital_id
	`, StatusEnabled)
	if err != nil {
		return nil, err
	}
	return collectHospitals(rows)
}

func (r *PgRepository) ListByDepartment(ctx context.Context, dept string) ([]Hospital, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+hospitalColumns+`
		FROM hospital_info
		WHERE status = $1
		  AND departments LIKE '%' || $2 || '%'
		ORDER BY hospital_level DESC, hospital_id
	`, StatusEnabled, dept)
	if err != nil {
		return nil, err
	}
	return collectHospitals(rows)
}

func (r *PgRepository) Search(ctx context.Context, criteria SearchCriteria) ([]Hospital, error) {
	var (
		where []string
		args  []any
	)

	addArg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where = append(where, "status = "+addArg(StatusEnabled))

	if criteria.Keyword != "" {
		p := addArg(criteria.Keyword)
		where = append(where, fmt.Sprintf(
			"(hospital_name LIKE '%%' || %s || '%%' OR address LIKE '%%' || %s || '%%')", p, p))
	}
	if criteria.Level != "" {
		where = append(where, "hospital_level = "+addArg(criteria.Level))
	}
	if criteria.Type != "" {
		where = append(where, "hospital_type = "+addArg(criteria.Type))
	}
	if criteria.RequireQuota {
		where = append(where, "available_quota > 0")
	}

	dir := "DESC"
	if criteria.SortAsc {
		dir = "ASC"
	}

	var orderBy string
	switch criteria.SortField {
	case SortByQuota:
		orderBy = "available_quota " + dir
	case SortByLevel:
		orderBy = "hospital_level " + dir
	default:
		orderBy = "hospital_level DESC"
	}

	query := `
		SELECT ` + hospitalColumns + `
		FROM hospital_info
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ` + orderBy + `, hospital_id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectHospitals(rows)
}
