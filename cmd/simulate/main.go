package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldercare/hospital-registration/internal/config"
	"github.com/eldercare/hospital-registration/internal/db"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	BookRatio   float64
	CancelRatio float64
	ReadRatio   float64
	UserCount   int
	PostgresDSN string
}

type DataPool struct {
	Hospitals []string
	Users     []string
	mu        sync.RWMutex
	orders    []string // order IDs created during the run
}

func (dp *DataPool) AddOrder(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.orders = append(dp.orders, id)
}

func (dp *DataPool) GetRandomOrder() (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.orders) == 0 {
		return "", false
	}
	return dp.orders[rand.Intn(len(dp.orders))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Book       OperationMetrics
	Cancel     OperationMetrics
	Nearby     OperationMetrics
	UserOrders OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d book=%.2f cancel=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookRatio, cfg.CancelRatio, cfg.ReadRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d hospitals, %d users", len(dataPool.Hospitals), len(dataPool.Users))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		BookRatio:   getFloat("SIM_BOOK_RATIO", 0.5),
		CancelRatio: getFloat("SIM_CANCEL_RATIO", 0.2),
		ReadRatio:   getFloat("SIM_READ_RATIO", 0.3),
		UserCount:   getInt("SIM_USER_COUNT", 500),
		PostgresDSN: baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.BookRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT hospital_id FROM hospital_info WHERE status = 'enabled'
	`)
	if err != nil {
		return nil, fmt.Errorf("load hospitals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Hospitals = append(dataPool.Hospitals, id)
	}

	if len(dataPool.Hospitals) == 0 {
		return nil, fmt.Errorf("no enabled hospitals loaded, run cmd/seed first")
	}

	for i := 0; i < cfg.UserCount; i++ {
		dataPool.Users = append(dataPool.Users, fmt.Sprintf("sim_user_%04d", i+1))
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			if r < s.config.BookRatio {
				s.doBook(ctx, rng)
			} else if r < s.config.BookRatio+s.config.CancelRatio {
				s.doCancel(ctx, rng)
			} else {
				if rng.Intn(2) == 0 {
					s.doNearby(ctx, rng)
				} else {
					s.doUserOrders(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) doBook(ctx context.Context, rng *rand.Rand) {
	hospitalID := s.pool.Hospitals[rng.Intn(len(s.pool.Hospitals))]
	userID := s.pool.Users[rng.Intn(len(s.pool.Users))]
	date := time.Now().AddDate(0, 0, rng.Intn(7)+1).Format("2006-01-02")

	start := time.Now()

	reqBody := map[string]string{
		"user_id":      userID,
		"hospital_id":  hospitalID,
		"reserve_date": date,
	}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+"/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusCreated {
			success = true
			var orderResp struct {
				OrderID string `json:"order_id"`
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			if len(bodyBytes) > 0 {
				json.Unmarshal(bodyBytes, &orderResp)
				if orderResp.OrderID != "" {
					s.pool.AddOrder(orderResp.OrderID)
				}
			}
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	s.metrics.Book.Record(latency, success, conflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	orderID, ok := s.pool.GetRandomOrder()
	if !ok {
		return
	}

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/orders/%s/cancel", s.config.APIBaseURL, orderID), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			success = true
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	s.metrics.Cancel.Record(latency, success, conflict)
}

func (s *Simulator) doNearby(ctx context.Context, rng *rand.Rand) {
	// Random point around the same metro area cmd/seed uses.
	lon := 116.40 + (rng.Float64()-0.5)*0.5
	lat := 39.90 + (rng.Float64()-0.5)*0.5

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/hospital/nearby?longitude=%.5f&latitude=%.5f&radius=10", s.config.APIBaseURL, lon, lat), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Nearby.Record(latency, success, false)
}

func (s *Simulator) doUserOrders(ctx context.Context, rng *rand.Rand) {
	userID := s.pool.Users[rng.Intn(len(s.pool.Users))]

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/users/%s/orders", s.config.APIBaseURL, userID), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.UserOrders.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Book", &s.metrics.Book)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Nearby", &s.metrics.Nearby)
	printOperationReport("User Orders", &s.metrics.UserOrders)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errCount := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, float64(errCount)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
