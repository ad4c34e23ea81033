package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldercare/hospital-registration/internal/hospital"
	"github.com/eldercare/hospital-registration/internal/quota"
	redisclient "github.com/eldercare/hospital-registration/internal/redis"
)

// --- fakes -----------------------------------------------------------------

type fakeCatalog struct {
	mu        sync.Mutex
	hospitals map[string]hospital.Hospital
}

func (c *fakeCatalog) GetByID(_ context.Context, id string) (*hospital.Hospital, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.hospitals[id]
	if !ok {
		return nil, hospital.ErrHospitalNotFound
	}
	return &h, nil
}

type memOrderRepo struct {
	mu         sync.Mutex
	orders     map[string]Order
	seq        []string
	failInsert error
	catalog    *fakeCatalog
}

func newMemOrderRepo(catalog *fakeCatalog) *memOrderRepo {
	return &memOrderRepo{
		orders:  make(map[string]Order),
		catalog: catalog,
	}
}

func (r *memOrderRepo) Insert(_ context.Context, order Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInsert != nil {
		return r.failInsert
	}
	r.orders[order.OrderID] = order
	r.seq = append(r.seq, order.OrderID)
	return nil
}

func (r *memOrderRepo) GetByID(_ context.Context, orderID string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, orderID string, from, to OrderStatus) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Status != from {
		return nil, ErrOrderNotFound
	}
	o.Status = to
	r.orders[orderID] = o
	return &o, nil
}

func (r *memOrderRepo) ListByUser(_ context.Context, userID string) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, id := range r.seq {
		if o := r.orders[id]; o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreateTime > out[j].CreateTime
	})
	return out, nil
}

func (r *memOrderRepo) ListByUserWithHospital(ctx context.Context, userID string) ([]OrderWithHospital, error) {
	orders, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out []OrderWithHospital
	for _, o := range orders {
		ow := OrderWithHospital{Order: o}
		if h, err := r.catalog.GetByID(ctx, o.HospitalID); err == nil {
			ow.HospitalAddress = h.Address
			ow.HospitalPhone = h.Phone
			ow.OpeningHours = h.OpeningHours
			ow.HospitalLevel = h.Level
		}
		out = append(out, ow)
	}
	return out, nil
}

func (r *memOrderRepo) StatsByUser(_ context.Context, userID string) (UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats UserStats
	for _, o := range r.orders {
		if o.UserID != userID {
			continue
		}
		stats.Total++
		switch o.Status {
		case StatusBooked:
			stats.Booked++
		case StatusCompleted:
			stats.Completed++
		case StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

func (r *memOrderRepo) countBooked(hospitalID, reserveDate string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, o := range r.orders {
		if o.HospitalID == hospitalID && o.ReserveDate == reserveDate && o.Status == StatusBooked {
			count++
		}
	}
	return count
}

// ledgerStore backs the real quota ledger with in-memory counters whose
// fallback count reads the order repo, like the SQL store does.
type ledgerStore struct {
	mu        sync.Mutex
	daily     map[string]*int
	available map[string]*int
	orders    *memOrderRepo
}

func (s *ledgerStore) GetQuota(_ context.Context, hospitalID string) (quota.Quota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return quota.Quota{Daily: s.daily[hospitalID], Available: s.available[hospitalID]}, nil
}

func (s *ledgerStore) TryDecrement(_ context.Context, hospitalID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.available[hospitalID]
	if a == nil || *a <= 0 {
		return false, nil
	}
	*a--
	return true, nil
}

func (s *ledgerStore) IncrementCapped(_ context.Context, hospitalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, a := s.daily[hospitalID], s.available[hospitalID]
	if d == nil || a == nil || *a >= *d {
		return nil
	}
	*a++
	return nil
}

func (s *ledgerStore) CountBooked(_ context.Context, hospitalID, reserveDate string) (int, error) {
	return s.orders.countBooked(hospitalID, reserveDate), nil
}

func (s *ledgerStore) availableOf(t *testing.T, hospitalID string) int {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.available[hospitalID]
	require.NotNil(t, a)
	return *a
}

// localLocker is an in-process blocking stand-in for the Redis locker.
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *localLocker) WithHospitalLock(ctx context.Context, hospitalID string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[hospitalID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[hospitalID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

type fixture struct {
	catalog *fakeCatalog
	repo    *memOrderRepo
	store   *ledgerStore
	svc     *Service
}

func newFixture(hospitals ...hospital.Hospital) *fixture {
	return newFixtureWithLocker(&localLocker{}, hospitals...)
}

func newFixtureWithLocker(locker redisclient.Locker, hospitals ...hospital.Hospital) *fixture {
	catalog := &fakeCatalog{hospitals: make(map[string]hospital.Hospital)}
	repo := newMemOrderRepo(catalog)
	store := &ledgerStore{
		daily:     make(map[string]*int),
		available: make(map[string]*int),
		orders:    repo,
	}

	for _, h := range hospitals {
		catalog.hospitals[h.ID] = h
		if h.DailyQuota != nil {
			d := *h.DailyQuota
			store.daily[h.ID] = &d
		}
		if h.AvailableQuota != nil {
			a := *h.AvailableQuota
			store.available[h.ID] = &a
		}
	}

	return &fixture{
		catalog: catalog,
		repo:    repo,
		store:   store,
		svc:     NewService(repo, catalog, quota.NewLedger(store), locker),
	}
}

func intp(v int) *int { return &v }

func enabledHospital(id, name string, daily, available int) hospital.Hospital {
	return hospital.Hospital{
		ID:             id,
		Name:           name,
		Departments:    "内科,外科",
		Status:         hospital.StatusEnabled,
		DailyQuota:     intp(daily),
		AvailableQuota: intp(available),
	}
}

func bookReq(user, hosp, date string) BookRequest {
	return BookRequest{UserID: user, HospitalID: hosp, ReserveDate: date}
}

// --- tests -----------------------------------------------------------------

func TestBookValidation(t *testing.T) {
	f := newFixture(enabledHospital("h1", "市一医院", 5, 5))

	cases := []struct {
		name string
		req  BookRequest
		want error
	}{
		{"missing user", BookRequest{HospitalID: "h1", ReserveDate: "2024-05-01"}, ErrMissingField},
		{"missing hospital", BookRequest{UserID: "u1", ReserveDate: "2024-05-01"}, ErrMissingField},
		{"missing date", BookRequest{UserID: "u1", HospitalID: "h1"}, ErrMissingField},
		{"bad date", bookReq("u1", "h1", "05/01/2024"), ErrBadReserveDate},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Book(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestBookUnknownHospital(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Book(context.Background(), bookReq("u1", "missing", "2024-05-01"))
	assert.ErrorIs(t, err, hospital.ErrHospitalNotFound)
}

func TestBookDisabledHospital(t *testing.T) {
	h := enabledHospital("h1", "市一医院", 5, 5)
	h.Status = hospital.StatusDisabled
	f := newFixture(h)

	_, err := f.svc.Book(context.Background(), bookReq("u1", "h1", "2024-05-01"))
	assert.ErrorIs(t, err, ErrHospitalDisabled)
}

func TestBookUnknownDepartment(t *testing.T) {
	f := newFixture(enabledHospital("h1", "市一医院", 5, 5))

	req := bookReq("u1", "h1", "2024-05-01")
	req.Department = "眼科"
	_, err := f.svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, ErrUnknownDepartment)

	req.Department = "内科"
	order, err := f.svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "内科", order.Department)
}

func TestBookSuccess(t *testing.T) {
	f := newFixture(enabledHospital("h1", "市一医院", 5, 5))

	order, err := f.svc.Book(context.Background(), bookReq("u1", "h1", "2024-05-01"))
	require.NoError(t, err)

	assert.NotEmpty(t, order.OrderID)
	assert.Equal(t, "u1", order.UserID)
	assert.Equal(t, "市一医院", order.HospitalName)
	assert.Equal(t, StatusBooked, order.Status)
	assert.NotZero(t, order.CreateTime)
	assert.Equal(t, 4, f.store.availableOf(t, "h1"))
}

func TestBookKeepsSuppliedOrderID(t *testing.T) {
	f := newFixture(enabledHospital("h1", "市一医院", 5, 5))

	req := bookReq("u1", "h1", "2024-05-01")
	req.OrderID = "ORDER_123"
	order, err := f.svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ORDER_123", order.OrderID)
}

func TestBookUnmeteredHospital(t *testing.T) {
	f := newFixture(hospital.Hospital{
		ID:          "h1",
		Name:        "社区医院",
		Departments: "内科",
		Status:      hospital.StatusEnabled,
	})

	for i := 0; i < 10; i++ {
		_, err := f.svc.Book(context.Background(), bookReq("u1", "h1", "2024-05-01"))
		require.NoError(t, err)
	}
}

// The full quota lifecycle: two slots, three contenders, one cancellation.
func TestBookQuotaLifecycle(t *testing.T) {
	f := newFixture(enabledHospital("h1", "市一医院", 2, 2))
	ctx := context.Background()

	o1, err := f.svc.Book(ctx, bookReq("u1", "h1", "2024-05-01"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.availableOf(t, "h1"))

	_, err = f.svc.Book(ctx, bookReq("u2", "h1", "2024-05-01"))
	require.NoError(t, err)
	assert.Equal(t, 0, f.store.availableOf(t, "h1"))

	_, err = f.svc.Book(ctx, bookReq("u3", "h1", "2024-05-01"))
	assert.ErrorIs(t, err, quota.ErrQuotaExhausted)

	_, err = f.svc.Cancel(ctx, o1.OrderID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.availableOf(t, "h1"))

	_, err = f.svc.Book(ctx, bookReq("u3", "h1", "2024-05-01"))
	require.NoError(t, err)
	assert.Equal(t, 0, f.store.availableOf(t, "h1"))
}

func TestBookCancelBookWithSingleSlot(t *testing.T) {
	f := newFixture(enabledHospital("h1", "市一医院", 1, 1))
	ctx := context.Background()

	first, err := f.svc.Book(ctx, bookReq("u1", "h1", "2024-05-01"))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, first.OrderID)
	require.NoError(t, err)

	_, err = f.svc.Book(ctx, bookReq("u2", "h1", "2024-05-01"))
	require.NoError(t, err)
}

func TestCancelUnknownOrder(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Cancel(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelTwiceRejectedWithoutQuotaMutation(t *testing.T) {
	f := newFixture(enabledHospital("h1", "市一医院", 2, 2))
	ctx := context.Background()

	order, err := f.svc.Book(ctx, bookReq("u1", "h1", "2024-05-01"))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.availableOf(t, "h1"))

	_, err = f.svc.Cancel(ctx, order.OrderID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 2, f.store.availableOf(t, "h1"), "double cancel must not release twice")
}

func TestCancelCompletedOrderRejected(t *testing.T) {
	f := newFixture(enabledHospital("h1", "市一医院", 2, 2))
	ctx := context.Background()

	order, err := f.svc.Book(ctx, bookReq("u1", "h1", "2024-05-01"))
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, order.OrderID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, order.OrderID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteLifecycle(t *testing.T) {
	f := newFixture(enabledHospital("h1", "市一医院", 2, 2))
	ctx := context.Background()

	order, err := f.svc.Book(ctx, bookReq("u1", "h1", "2024-05-01"))
	require.NoError(t, err)

	updated, err := f.svc.Complete(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)

	// Completion consumes the slot; quota stays down.
	assert.Equal(t, 1, f.store.availableOf(t, "h1"))

	_, err = f.svc.Complete(ctx, order.OrderID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteCancelledOrderRejected(t *testing.T) {
	f := newFixture(enabledHospital("h1", "市一医院", 2, 2))
	ctx := context.Background()

	order, err := f.svc.Book(ctx, bookReq("u1", "h1", "2024-05-01"))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, order.OrderID)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, order.OrderID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConcurrentBookingNeverOversells(t *testing.T) {
	const (
		dailyQuota = 5
		contenders = 20
	)

	f := newFixture(enabledHospital("h1", "市一医院", dailyQuota, dailyQuota))

	var (
		wg        sync.WaitGroup
		successes int64
		exhausted int64
		mu        sync.Mutex
		others    []error
	)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("user_%02d", n)
			_, err := f.svc.Book(context.Background(), bookReq(user, "h1", "2024-05-01"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, quota.ErrQuotaExhausted):
				exhausted++
			default:
				others = append(others, err)
			}
		}(i)
	}

	wg.Wait()

	assert.Empty(t, others)
	assert.EqualValues(t, dailyQuota, successes)
	assert.EqualValues(t, contenders-dailyQuota, exhausted)
	assert.Equal(t, 0, f.store.availableOf(t, "h1"))
}

// Same oversell property, but through the shipped Redis locker: contenders
// must queue on the lock and drain the quota, not bounce off a held lock.
func TestConcurrentBookingSerializesThroughRedisLock(t *testing.T) {
	const (
		dailyQuota = 5
		contenders = 20
	)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := redisclient.NewRedisHospitalLocker(client, 5*time.Second)

	f := newFixtureWithLocker(locker, enabledHospital("h1", "市一医院", dailyQuota, dailyQuota))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		exhausted int
		others    []error
	)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("user_%02d", n)
			_, err := f.svc.Book(context.Background(), bookReq(user, "h1", "2024-05-01"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, quota.ErrQuotaExhausted):
				exhausted++
			default:
				others = append(others, err)
			}
		}(i)
	}

	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, dailyQuota, successes)
	assert.Equal(t, contenders-dailyQuota, exhausted)
	assert.Equal(t, 0, f.store.availableOf(t, "h1"))
}

// brokenLedger reserves without a counter and fails every release.
type brokenLedger struct {
	releaseErr error
}

func (l brokenLedger) TryReserve(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func (l brokenLedger) Release(_ context.Context, _ string) error {
	return l.releaseErr
}

func TestCancelSucceedsWhenReleaseFails(t *testing.T) {
	catalog := &fakeCatalog{hospitals: map[string]hospital.Hospital{
		"h1": enabledHospital("h1", "市一医院", 5, 5),
	}}
	repo := newMemOrderRepo(catalog)
	svc := NewService(repo, catalog, brokenLedger{releaseErr: errors.New("redis gone")}, &localLocker{})
	ctx := context.Background()

	order, err := svc.Book(ctx, bookReq("u1", "h1", "2024-05-01"))
	require.NoError(t, err)

	// The cancel is committed before the release runs; a failed release is
	// logged, not surfaced.
	updated, err := svc.Cancel(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)

	got, err := repo.GetByID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestBookReleasesQuotaWhenPersistFails(t *testing.T) {
	f := newFixture(enabledHospital("h1", "市一医院", 3, 3))
	f.repo.failInsert = errors.New("connection reset")

	_, err := f.svc.Book(context.Background(), bookReq("u1", "h1", "2024-05-01"))
	require.Error(t, err)
	assert.Equal(t, 3, f.store.availableOf(t, "h1"), "reservation must be rolled back")

	f.repo.failInsert = nil
	_, err = f.svc.Book(context.Background(), bookReq("u1", "h1", "2024-05-01"))
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.availableOf(t, "h1"))
}

func TestUserOrdersRecentFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i, id := range []string{"o1", "o2", "o3"} {
		require.NoError(t, f.repo.Insert(ctx, Order{
			OrderID:     id,
			UserID:      "u1",
			HospitalID:  "h1",
			ReserveDate: "2024-05-01",
			Status:      StatusBooked,
			CreateTime:  int64(1000 + i),
		}))
	}
	require.NoError(t, f.repo.Insert(ctx, Order{
		OrderID: "other", UserID: "u2", HospitalID: "h1",
		ReserveDate: "2024-05-01", Status: StatusBooked, CreateTime: 5000,
	}))

	orders, err := f.svc.UserOrders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "o3", orders[0].OrderID)
	assert.Equal(t, "o1", orders[2].OrderID)
}

func TestUserOrdersWithHospitalIsLiveJoin(t *testing.T) {
	h := enabledHospital("h1", "市一医院", 5, 5)
	h.Address = "旧地址"
	f := newFixture(h)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, bookReq("u1", "h1", "2024-05-01"))
	require.NoError(t, err)

	// Catalog data changes after booking; the join reflects the new value.
	f.catalog.mu.Lock()
	updated := f.catalog.hospitals["h1"]
	updated.Address = "新地址"
	f.catalog.hospitals["h1"] = updated
	f.catalog.mu.Unlock()

	orders, err := f.svc.UserOrdersWithHospital(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "新地址", orders[0].HospitalAddress)
}

func TestUserOrderStats(t *testing.T) {
	f := newFixture(enabledHospital("h1", "市一医院", 10, 10))
	ctx := context.Background()

	var orderIDs []string
	for i := 0; i < 4; i++ {
		o, err := f.svc.Book(ctx, bookReq("u1", "h1", "2024-05-01"))
		require.NoError(t, err)
		orderIDs = append(orderIDs, o.OrderID)
	}

	_, err := f.svc.Cancel(ctx, orderIDs[0])
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, orderIDs[1])
	require.NoError(t, err)

	stats, err := f.svc.UserOrderStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, UserStats{Total: 4, Booked: 2, Completed: 1, Cancelled: 1}, stats)
}

func TestOrderDetail(t *testing.T) {
	f := newFixture(enabledHospital("h1", "市一医院", 5, 5))
	ctx := context.Background()

	order, err := f.svc.Book(ctx, bookReq("u1", "h1", "2024-05-01"))
	require.NoError(t, err)

	got, err := f.svc.OrderDetail(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderID, got.OrderID)

	_, err = f.svc.OrderDetail(ctx, "")
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = f.svc.OrderDetail(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
