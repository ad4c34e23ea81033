package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/eldercare/hospital-registration/internal/booking"
	"github.com/eldercare/hospital-registration/internal/hospital"
)

type RouterConfig struct {
	Hospitals *hospital.Service
	Bookings  *booking.Service
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, redisPinger{cfg.Redis}, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Hospital catalog endpoints
	r.Route("/hospital", func(r chi.Router) {
		r.Get("/departments", listDepartmentsHandler(cfg.Hospitals))
		r.Get("/by-department", hospitalsByDepartmentHandler(cfg.Hospitals))
		r.Get("/list", listHospitalsHandler(cfg.Hospitals))
		r.Get("/nearby", nearbyHospitalsHandler(cfg.Hospitals))
		r.Post("/search", searchHospitalsHandler(cfg.Hospitals))
		r.Get("/{id}", hospitalDetailHandler(cfg.Hospitals))
		r.Get("/{id}/departments", hospitalDepartmentsHandler(cfg.Hospitals))
		r.Get("/{id}/available", checkAvailableHandler(cfg.Hospitals))
		r.Get("/{id}/appointment-info", appointmentInfoHandler(cfg.Hospitals))
	})

	// Order endpoints
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", bookOrderHandler(cfg.Bookings))
		r.Get("/{id}", orderDetailHandler(cfg.Bookings))
		r.Post("/{id}/cancel", cancelOrderHandler(cfg.Bookings))
		r.Post("/{id}/complete", completeOrderHandler(cfg.Bookings))
	})

	r.Route("/users/{userId}", func(r chi.Router) {
		r.Get("/orders", userOrdersHandler(cfg.Bookings))
		r.Get("/orders/detailed", userOrdersWithHospitalHandler(cfg.Bookings))
		r.Get("/orders/stats", userOrderStatsHandler(cfg.Bookings))
	})

	return r
}
