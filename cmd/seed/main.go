package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldercare/hospital-registration/internal/booking"
	"github.com/eldercare/hospital-registration/internal/db"
	"github.com/eldercare/hospital-registration/internal/hospital"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedHospitals(context.Background(), pool, 60); err != nil {
		log.Fatalf("seed hospitals: %v", err)
	}

	if err := seedOrders(context.Background(), pool, 300); err != nil {
		log.Fatalf("seed orders: %v", err)
	}

	log.Println("seed complete")
}

// Department names kept in the catalog's native form.
var departmentPool = []string{
	"内科", "外科", "儿科", "骨科", "眼科", "耳鼻喉科",
	"皮肤科", "口腔科", "心血管内科", "神经内科", "中医科", "康复科",
}

var levels = []string{"一级", "二级", "三级", "三级甲等"}

var hospitalTypes = []string{"综合医院", "专科医院", "中医医院", "社区医院"}

func seedHospitals(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d hospitals", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("HOSP_%04d", i+1)
		name := gofakeit.City() + "第" + fmt.Sprint(gofakeit.Number(1, 9)) + "医院"
		level := levels[gofakeit.Number(0, len(levels)-1)]
		hType := hospitalTypes[gofakeit.Number(0, len(hospitalTypes)-1)]

		// Cluster coordinates loosely around one metro area.
		lon := 116.40 + gofakeit.Float64Range(-0.35, 0.35)
		lat := 39.90 + gofakeit.Float64Range(-0.35, 0.35)

		deptCount := gofakeit.Number(3, 8)
		departments := ""
		for d := 0; d < deptCount; d++ {
			if d > 0 {
				departments += ","
			}
			departments += departmentPool[gofakeit.Number(0, len(departmentPool)-1)]
		}

		status := hospital.StatusEnabled
		if gofakeit.Number(0, 9) == 0 {
			status = hospital.StatusDisabled
		}

		// One hospital in ten is unmetered.
		var daily, available *int
		if gofakeit.Number(0, 9) != 0 {
			d := gofakeit.Number(20, 200)
			a := gofakeit.Number(0, d)
			daily, available = &d, &a
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO hospital_info (hospital_id, hospital_name, hospital_level,
				hospital_type, address, phone, emergency_phone, longitude, latitude,
				departments, daily_quota, available_quota, opening_hours, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, id, name, level, hType,
			gofakeit.Address().Address,
			gofakeit.Phone(),
			gofakeit.Phone(),
			lon, lat, departments, daily, available,
			"08:00-17:30", status)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("hospitals seeded")
	return nil
}

func seedOrders(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d demo orders", count)

	rows, err := pool.Query(ctx, `
		SELECT hospital_id, hospital_name, departments
		FROM hospital_info
		WHERE status = 'enabled'
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type seedHospital struct {
		id, name    string
		departments []string
	}
	var hospitals []seedHospital
	for rows.Next() {
		var h seedHospital
		var depts string
		if err := rows.Scan(&h.id, &h.name, &depts); err != nil {
			return err
		}
		h.departments = hospital.SplitDepartments(depts)
		hospitals = append(hospitals, h)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(hospitals) == 0 {
		return fmt.Errorf("no enabled hospitals to attach orders to")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	statuses := []booking.OrderStatus{
		booking.StatusCompleted, booking.StatusCompleted,
		booking.StatusCancelled,
		booking.StatusBooked,
	}

	for i := 0; i < count; i++ {
		h := hospitals[gofakeit.Number(0, len(hospitals)-1)]
		status := statuses[gofakeit.Number(0, len(statuses)-1)]

		// Completed and cancelled orders sit in the past, booked ones ahead.
		dayOffset := -gofakeit.Number(1, 30)
		if status == booking.StatusBooked {
			dayOffset = gofakeit.Number(0, 7)
		}
		reserveDate := time.Now().AddDate(0, 0, dayOffset).Format("2006-01-02")

		department := ""
		if len(h.departments) > 0 && gofakeit.Bool() {
			department = h.departments[gofakeit.Number(0, len(h.departments)-1)]
		}

		createTime := time.Now().
			Add(-time.Duration(gofakeit.Number(0, 30*24)) * time.Hour).
			UnixMilli()

		_, err := tx.Exec(ctx, `
			INSERT INTO reserve_order (order_id, user_id, hospital_id, hospital_name,
				department, reserve_date, status, create_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.NewString(),
			fmt.Sprintf("user_%04d", gofakeit.Number(1, 200)),
			h.id, h.name, department, reserveDate, status, createTime)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("orders seeded")
	return nil
}
