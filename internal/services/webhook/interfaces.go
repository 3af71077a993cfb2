package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"

	"stowpay/internal/models"
)

// Reconciler applies provider notifications onto local records.
type Reconciler interface {
	HandlePayoutChanged(ctx context.Context, rawBody []byte, timestamp, signature string) (Outcome, error)
	HandleSellerChanged(ctx context.Context, rawBody []byte, timestamp, signature string) (Outcome, error)
}

// SettlementOps is the slice of the settlement service the reconciler drives.
type SettlementOps interface {
	Process(ctx context.Context, id uuid.UUID) (*models.Settlement, error)
	Fail(ctx context.Context, id uuid.UUID, reason string) (*models.Settlement, error)
}

// Scheduler accepts deferred work so webhook ingestion stays fast.
type Scheduler interface {
	Enqueue(fn func(ctx context.Context)) bool
	EnqueueAfter(delay time.Duration, fn func(ctx context.Context))
}

// SellerCache invalidates cached seller lookups after a status change, so
// eligibility checks never act on a stale snapshot.
type SellerCache interface {
	InvalidateSellerAccount(ctx context.Context, storeID uint) error
}
