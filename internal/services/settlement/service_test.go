package settlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stowpay/internal/apperrors"
	"stowpay/internal/models"
	"stowpay/internal/provider"
	"stowpay/internal/repositories"
	"stowpay/internal/services/fee"
)

// --- in-memory fakes ---

type fakeSettlementRepo struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*models.Settlement
	mutations int
}

func newFakeSettlementRepo(settlements ...*models.Settlement) *fakeSettlementRepo {
	r := &fakeSettlementRepo{byID: make(map[uuid.UUID]*models.Settlement)}
	for _, s := range settlements {
		r.byID[s.ID] = s
	}
	return r
}

func (r *fakeSettlementRepo) Create(ctx context.Context, s *models.Settlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.ID] = s
	return nil
}

func (r *fakeSettlementRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrSettlementNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSettlementRepo) Mutate(ctx context.Context, id uuid.UUID, fn func(s *models.Settlement) error) (*models.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrSettlementNotFound
	}
	r.mutations++
	if err := fn(s); err != nil {
		return nil, err
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSettlementRepo) Find(ctx context.Context, filter repositories.SettlementFilter, limit, offset int) ([]models.Settlement, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Settlement
	for _, s := range r.byID {
		if filter.StoreID != 0 && s.StoreID != filter.StoreID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, *s)
	}
	return out, int64(len(out)), nil
}

func (r *fakeSettlementRepo) FindPendingByStore(ctx context.Context, storeID uint) ([]models.Settlement, error) {
	return nil, nil
}

func (r *fakeSettlementRepo) Summarize(ctx context.Context, storeID uint, day time.Time) (*models.SettlementSummary, error) {
	return &models.SettlementSummary{StoreID: storeID}, nil
}

func (r *fakeSettlementRepo) mutationCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutations
}

type fakeStoreRepo struct {
	byID map[uint]*models.Store
}

func (r *fakeStoreRepo) GetByID(ctx context.Context, id uint) (*models.Store, error) {
	if s, ok := r.byID[id]; ok {
		return s, nil
	}
	return nil, repositories.ErrStoreNotFound
}

type fakeResolver struct {
	byStore map[uint]*models.SellerAccount
}

func (r *fakeResolver) GetByStoreID(ctx context.Context, storeID uint) (*models.SellerAccount, error) {
	if a, ok := r.byStore[storeID]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, apperrors.Newf(apperrors.KindNotFound, "store %d has no seller account", storeID)
}

type fakeGateway struct {
	mu          sync.Mutex
	payoutFn    func(req provider.PayoutRequest) (*provider.PayoutResponse, error)
	payoutCalls []provider.PayoutRequest
	cancelled   []string
	balanceFn   func() (*provider.Balance, error)
	balanceHits int
}

func (g *fakeGateway) RequestPayout(ctx context.Context, req provider.PayoutRequest) (*provider.PayoutResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payoutCalls = append(g.payoutCalls, req)
	if g.payoutFn == nil {
		return &provider.PayoutResponse{PayoutID: "po-1", Status: "ACCEPTED"}, nil
	}
	return g.payoutFn(req)
}

func (g *fakeGateway) CancelPayout(ctx context.Context, externalPayoutID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, externalPayoutID)
	return nil
}

func (g *fakeGateway) GetBalance(ctx context.Context) (*provider.Balance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balanceHits++
	if g.balanceFn == nil {
		return &provider.Balance{AvailableAmount: decimal.NewFromInt(100000)}, nil
	}
	return g.balanceFn()
}

type scheduledTask struct {
	delay time.Duration
	fn    func(ctx context.Context)
}

// recordingScheduler captures deferred tasks without running them, so a test
// can assert scheduling and trigger reattempts explicitly.
type recordingScheduler struct {
	mu       sync.Mutex
	deferred []scheduledTask
}

func (s *recordingScheduler) Enqueue(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deferred = append(s.deferred, scheduledTask{fn: fn})
	return true
}

func (s *recordingScheduler) EnqueueAfter(delay time.Duration, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deferred = append(s.deferred, scheduledTask{delay: delay, fn: fn})
}

type fakeBalanceCache struct {
	mu           sync.Mutex
	cached       *provider.Balance
	invalidated  int
	storedWithTT time.Duration
}

func (c *fakeBalanceCache) CacheBalance(ctx context.Context, balance *provider.Balance, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = balance
	c.storedWithTT = ttl
	return nil
}

func (c *fakeBalanceCache) GetBalance(ctx context.Context) (*provider.Balance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached, nil
}

func (c *fakeBalanceCache) InvalidateBalance(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
	c.invalidated++
	return nil
}

// --- fixture ---

type fixture struct {
	svc       Service
	repo      *fakeSettlementRepo
	stores    *fakeStoreRepo
	resolver  *fakeResolver
	gateway   *fakeGateway
	scheduler *recordingScheduler
	cache     *fakeBalanceCache
}

func newFixture(settlements []*models.Settlement, sellers map[uint]*models.SellerAccount) *fixture {
	f := &fixture{
		repo: newFakeSettlementRepo(settlements...),
		stores: &fakeStoreRepo{byID: map[uint]*models.Store{
			42: {ID: 42, Name: "Gimpo Locker"},
		}},
		resolver:  &fakeResolver{byStore: sellers},
		gateway:   &fakeGateway{},
		scheduler: &recordingScheduler{},
		cache:     &fakeBalanceCache{},
	}
	f.svc = NewService(
		f.repo,
		f.stores,
		f.resolver,
		f.gateway,
		fee.NewCalculator(),
		f.scheduler,
		provider.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2, MaxDelay: 4 * time.Millisecond},
		f.cache,
		Config{},
	)
	return f
}

func pendingSettlement(storeID uint) *models.Settlement {
	return &models.Settlement{
		ID:          uuid.New(),
		StoreID:     storeID,
		OrderID:     "ORD-1",
		GrossAmount: decimal.RequireFromString("10000.00"),
		FeeRate:     models.DefaultFeeRate,
		FeeAmount:   decimal.RequireFromString("2000.00"),
		NetAmount:   decimal.RequireFromString("8000.00"),
		Status:      models.SettlementStatusPending,
	}
}

func approvedSeller(storeID uint) *models.SellerAccount {
	extID := "seller-1"
	return &models.SellerAccount{
		ID:               uuid.New(),
		StoreID:          storeID,
		LocalReferenceID: "42",
		ExternalSellerID: &extID,
		Status:           models.SellerStatusApproved,
	}
}

// --- tests ---

func TestService_Create(t *testing.T) {
	f := newFixture(nil, nil)

	s, err := f.svc.Create(context.Background(), CreateInput{
		StoreID:     42,
		OrderID:     "ORD-1",
		GrossAmount: decimal.RequireFromString("10000"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SettlementStatusPending, s.Status)
	assert.Equal(t, "2000.00", s.FeeAmount.StringFixed(2))
	assert.Equal(t, "8000.00", s.NetAmount.StringFixed(2))
	assert.True(t, s.FeeRate.Equal(models.DefaultFeeRate))

	stored, err := f.repo.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, stored.ID)
}

func TestService_CreateWithNegotiatedRate(t *testing.T) {
	f := newFixture(nil, nil)
	rate := decimal.RequireFromString("0.1500")

	s, err := f.svc.Create(context.Background(), CreateInput{
		StoreID:     42,
		OrderID:     "ORD-1",
		GrossAmount: decimal.RequireFromString("10000"),
		FeeRate:     &rate,
	})
	require.NoError(t, err)
	assert.Equal(t, "1500.00", s.FeeAmount.StringFixed(2))
	assert.Equal(t, "8500.00", s.NetAmount.StringFixed(2))
}

func TestService_CreateValidation(t *testing.T) {
	f := newFixture(nil, nil)

	_, err := f.svc.Create(context.Background(), CreateInput{StoreID: 42, GrossAmount: decimal.NewFromInt(100)})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = f.svc.Create(context.Background(), CreateInput{StoreID: 999, OrderID: "ORD-1", GrossAmount: decimal.NewFromInt(100)})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, err = f.svc.Create(context.Background(), CreateInput{StoreID: 42, OrderID: "ORD-1", GrossAmount: decimal.Zero})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestService_ProcessHappyPath(t *testing.T) {
	s := pendingSettlement(42)
	f := newFixture([]*models.Settlement{s}, map[uint]*models.SellerAccount{42: approvedSeller(42)})

	got, err := f.svc.Process(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementStatusCompleted, got.Status)
	require.NotNil(t, got.ExternalPayoutID)
	assert.Equal(t, "po-1", *got.ExternalPayoutID)
	assert.Equal(t, "seller-1", got.ExternalSellerID)
	assert.NotNil(t, got.CompletedAt)

	require.Len(t, f.gateway.payoutCalls, 1)
	call := f.gateway.payoutCalls[0]
	assert.Equal(t, s.ID.String(), call.ReferenceID, "the settlement id keys the payout idempotently")
	assert.Equal(t, "seller-1", call.SellerID)
	assert.True(t, call.Amount.Equal(s.NetAmount), "the net amount is paid out, never the gross")
	assert.Equal(t, "KRW", call.Currency)

	assert.Equal(t, 1, f.cache.invalidated, "a completed payout invalidates the balance cache")
}

func TestService_ProcessRequiresEligibleSeller(t *testing.T) {
	t.Run("no seller account", func(t *testing.T) {
		s := pendingSettlement(42)
		f := newFixture([]*models.Settlement{s}, nil)

		_, err := f.svc.Process(context.Background(), s.ID)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindPrecondition, apperrors.KindOf(err))
	})

	t.Run("seller not yet approved leaves the settlement untouched", func(t *testing.T) {
		s := pendingSettlement(42)
		account := approvedSeller(42)
		account.Status = models.SellerStatusKYCRequired
		f := newFixture([]*models.Settlement{s}, map[uint]*models.SellerAccount{42: account})

		_, err := f.svc.Process(context.Background(), s.ID)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindPrecondition, apperrors.KindOf(err))

		got, _ := f.repo.GetByID(context.Background(), s.ID)
		assert.Equal(t, models.SettlementStatusPending, got.Status)
		assert.Equal(t, 0, got.RetryCount, "a failed precondition is not a payout attempt")
		assert.Equal(t, 0, f.repo.mutationCount())
		assert.Empty(t, f.gateway.payoutCalls)
	})
}

func TestService_ProcessStateConflicts(t *testing.T) {
	t.Run("terminal settlement", func(t *testing.T) {
		s := pendingSettlement(42)
		s.Status = models.SettlementStatusCompleted
		f := newFixture([]*models.Settlement{s}, map[uint]*models.SellerAccount{42: approvedSeller(42)})

		_, err := f.svc.Process(context.Background(), s.ID)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindStateConflict, apperrors.KindOf(err))
	})

	t.Run("payout already in flight", func(t *testing.T) {
		s := pendingSettlement(42)
		s.Status = models.SettlementStatusProcessing
		f := newFixture([]*models.Settlement{s}, map[uint]*models.SellerAccount{42: approvedSeller(42)})

		_, err := f.svc.Process(context.Background(), s.ID)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindStateConflict, apperrors.KindOf(err))
		assert.Empty(t, f.gateway.payoutCalls)
	})

	t.Run("unknown settlement", func(t *testing.T) {
		f := newFixture(nil, nil)
		_, err := f.svc.Process(context.Background(), uuid.New())
		require.Error(t, err)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})
}

func TestService_ProcessTransientFailureSchedulesRetry(t *testing.T) {
	s := pendingSettlement(42)
	f := newFixture([]*models.Settlement{s}, map[uint]*models.SellerAccount{42: approvedSeller(42)})
	f.gateway.payoutFn = func(req provider.PayoutRequest) (*provider.PayoutResponse, error) {
		return nil, apperrors.Transient("provider unreachable", nil)
	}

	_, err := f.svc.Process(context.Background(), s.ID)
	require.Error(t, err)

	got, _ := f.repo.GetByID(context.Background(), s.ID)
	assert.Equal(t, models.SettlementStatusFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, "provider unreachable", got.LastError)

	require.Len(t, f.scheduler.deferred, 1, "one reattempt scheduled off the request path")
	assert.Equal(t, 2*time.Millisecond, f.scheduler.deferred[0].delay, "backoff grows with the attempt count")
}

func TestService_ProcessBusinessFailureNotRescheduled(t *testing.T) {
	s := pendingSettlement(42)
	f := newFixture([]*models.Settlement{s}, map[uint]*models.SellerAccount{42: approvedSeller(42)})
	f.gateway.payoutFn = func(req provider.PayoutRequest) (*provider.PayoutResponse, error) {
		return nil, apperrors.Provider("INSUFFICIENT_BALANCE", "platform balance too low")
	}

	_, err := f.svc.Process(context.Background(), s.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInsufficientBalance, apperrors.KindOf(err))

	got, _ := f.repo.GetByID(context.Background(), s.ID)
	assert.Equal(t, models.SettlementStatusFailed, got.Status)
	assert.Empty(t, f.scheduler.deferred, "non-retryable failures stay failed until an operator acts")
}

func TestService_ProcessRetryExhaustion(t *testing.T) {
	s := pendingSettlement(42)
	f := newFixture([]*models.Settlement{s}, map[uint]*models.SellerAccount{42: approvedSeller(42)})
	f.gateway.payoutFn = func(req provider.PayoutRequest) (*provider.PayoutResponse, error) {
		return nil, apperrors.Transient("provider unreachable", nil)
	}

	// Drive each failed attempt by running the scheduled task, as the
	// dispatcher would.
	_, err := f.svc.Process(context.Background(), s.ID)
	require.Error(t, err)
	for i := 0; i < 2; i++ {
		require.Len(t, f.scheduler.deferred, i+1)
		f.scheduler.deferred[i].fn(context.Background())
	}

	got, _ := f.repo.GetByID(context.Background(), s.ID)
	assert.Equal(t, models.SettlementStatusFailed, got.Status)
	assert.Equal(t, models.MaxPayoutRetries, got.RetryCount)
	assert.Len(t, f.scheduler.deferred, 2, "no reattempt beyond the retry bound")
	assert.Len(t, f.gateway.payoutCalls, 3)
}

func TestService_ProcessRetriesFailedSettlement(t *testing.T) {
	s := pendingSettlement(42)
	s.Status = models.SettlementStatusFailed
	s.RetryCount = 1
	s.LastError = "provider unreachable"
	f := newFixture([]*models.Settlement{s}, map[uint]*models.SellerAccount{42: approvedSeller(42)})

	got, err := f.svc.Process(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementStatusCompleted, got.Status)
}

func TestService_Fail(t *testing.T) {
	s := pendingSettlement(42)
	s.Status = models.SettlementStatusProcessing
	f := newFixture([]*models.Settlement{s}, map[uint]*models.SellerAccount{42: approvedSeller(42)})

	got, err := f.svc.Fail(context.Background(), s.ID, "payout failed at provider")
	require.NoError(t, err)
	assert.Equal(t, models.SettlementStatusFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Len(t, f.scheduler.deferred, 1)
}

func TestService_CancelPayout(t *testing.T) {
	t.Run("cancels at the provider first", func(t *testing.T) {
		s := pendingSettlement(42)
		s.Status = models.SettlementStatusProcessing
		extID := "po-1"
		s.ExternalPayoutID = &extID
		f := newFixture([]*models.Settlement{s}, nil)

		got, err := f.svc.CancelPayout(context.Background(), s.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SettlementStatusCancelled, got.Status)
		assert.Equal(t, []string{"po-1"}, f.gateway.cancelled)
	})

	t.Run("pending settlement cancels locally only", func(t *testing.T) {
		s := pendingSettlement(42)
		f := newFixture([]*models.Settlement{s}, nil)

		got, err := f.svc.CancelPayout(context.Background(), s.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SettlementStatusCancelled, got.Status)
		assert.Empty(t, f.gateway.cancelled)
	})

	t.Run("completed settlement refuses", func(t *testing.T) {
		s := pendingSettlement(42)
		s.Status = models.SettlementStatusCompleted
		f := newFixture([]*models.Settlement{s}, nil)

		_, err := f.svc.CancelPayout(context.Background(), s.ID)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindStateConflict, apperrors.KindOf(err))
	})
}

func TestService_GetBalance(t *testing.T) {
	f := newFixture(nil, nil)

	balance, err := f.svc.GetBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.AvailableAmount.Equal(decimal.NewFromInt(100000)))
	assert.Equal(t, 1, f.gateway.balanceHits)
	assert.Equal(t, 30*time.Second, f.cache.storedWithTT, "default TTL applied")

	// Second read is served from the cache.
	_, err = f.svc.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.gateway.balanceHits)
}

func TestService_List(t *testing.T) {
	a := pendingSettlement(42)
	b := pendingSettlement(42)
	b.Status = models.SettlementStatusCompleted
	f := newFixture([]*models.Settlement{a, b}, nil)

	out, total, err := f.svc.List(context.Background(), ListInput{StoreID: 42, Status: models.SettlementStatusPending})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, out, 1)
	assert.Equal(t, a.ID, out[0].ID)
}
