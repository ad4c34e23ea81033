package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/eldercare/hospital-registration/internal/api"
	"github.com/eldercare/hospital-registration/internal/booking"
	"github.com/eldercare/hospital-registration/internal/config"
	"github.com/eldercare/hospital-registration/internal/db"
	"github.com/eldercare/hospital-registration/internal/hospital"
	"github.com/eldercare/hospital-registration/internal/quota"
	redisclient "github.com/eldercare/hospital-registration/internal/redis"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	hospitalRepo := hospital.NewPgRepository(pgPool)
	hospitals := hospital.NewService(hospitalRepo)
	ledger := quota.NewLedger(quota.NewPgStore(pgPool))
	locker := redisclient.NewRedisHospitalLocker(rdb, cfg.LockTTL)
	bookings := booking.NewService(booking.NewPgRepository(pgPool), hospitalRepo, ledger, locker)

	router := api.NewRouter(api.RouterConfig{
		Hospitals: hospitals,
		Bookings:  bookings,
		PgPool:    pgPool,
		Redis:     rdb,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	case <-rootCtx.Done():
		log.Println("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("api-server stopped")
}
