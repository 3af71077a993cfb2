package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"stowpay/internal/models"
	"stowpay/internal/provider"
)

// Service orchestrates the settlement lifecycle: fee split on creation,
// payout processing against the provider, and queries for the API layer.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Settlement, error)

	// Process runs one payout attempt for the settlement. Transient
	// provider failures mark the settlement FAILED and schedule a deferred
	// retry; the call itself never blocks for the retry horizon.
	Process(ctx context.Context, id uuid.UUID) (*models.Settlement, error)

	// Fail records a provider-reported failure on the settlement and
	// schedules a retry when attempts remain.
	Fail(ctx context.Context, id uuid.UUID, reason string) (*models.Settlement, error)

	Get(ctx context.Context, id uuid.UUID) (*models.Settlement, error)
	List(ctx context.Context, input ListInput) ([]models.Settlement, int64, error)
	GetSummary(ctx context.Context, storeID uint, day time.Time) (*models.SettlementSummary, error)
	GetBalance(ctx context.Context) (*provider.Balance, error)

	// CancelPayout cancels the settlement's in-flight payout at the
	// provider and marks the settlement CANCELLED.
	CancelPayout(ctx context.Context, id uuid.UUID) (*models.Settlement, error)
}

// Gateway is the slice of the provider gateway this service needs.
type Gateway interface {
	RequestPayout(ctx context.Context, req provider.PayoutRequest) (*provider.PayoutResponse, error)
	CancelPayout(ctx context.Context, externalPayoutID string) error
	GetBalance(ctx context.Context) (*provider.Balance, error)
}

// SellerResolver resolves a store's onboarding record at processing time.
type SellerResolver interface {
	GetByStoreID(ctx context.Context, storeID uint) (*models.SellerAccount, error)
}

// Scheduler accepts deferred work, decoupling retries from the caller's
// request.
type Scheduler interface {
	Enqueue(fn func(ctx context.Context)) bool
	EnqueueAfter(delay time.Duration, fn func(ctx context.Context))
}

// BalanceCache is the slice of the cache service this service needs.
type BalanceCache interface {
	CacheBalance(ctx context.Context, balance *provider.Balance, ttl time.Duration) error
	GetBalance(ctx context.Context) (*provider.Balance, error)
	InvalidateBalance(ctx context.Context) error
}
