package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"stowpay/internal/models"
)

var (
	ErrSettlementNotFound    = errors.New("settlement not found")
	ErrSellerAccountNotFound = errors.New("seller account not found")
	ErrStoreNotFound         = errors.New("store not found")
	ErrDuplicateWebhookEvent = errors.New("webhook event already recorded")
	ErrWebhookEventNotFound  = errors.New("webhook event not found")
)

// SettlementFilter narrows settlement queries.
type SettlementFilter struct {
	StoreID uint
	Status  string
	From    *time.Time
	To      *time.Time
}

// SettlementRepository persists settlement records. Settlements are an
// append-only ledger: there is no delete operation by design.
type SettlementRepository interface {
	Create(ctx context.Context, settlement *models.Settlement) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Settlement, error)

	// Mutate loads the settlement under a row lock, applies fn, and saves
	// the result in one transaction. Concurrent writers to the same record
	// serialize here, making read-check-write atomic.
	Mutate(ctx context.Context, id uuid.UUID, fn func(s *models.Settlement) error) (*models.Settlement, error)

	Find(ctx context.Context, filter SettlementFilter, limit, offset int) ([]models.Settlement, int64, error)
	FindPendingByStore(ctx context.Context, storeID uint) ([]models.Settlement, error)
	Summarize(ctx context.Context, storeID uint, day time.Time) (*models.SettlementSummary, error)
}

// SellerAccountRepository persists provider-onboarding records.
type SellerAccountRepository interface {
	Create(ctx context.Context, account *models.SellerAccount) error
	GetByStoreID(ctx context.Context, storeID uint) (*models.SellerAccount, error)
	GetByLocalReference(ctx context.Context, ref string) (*models.SellerAccount, error)

	// Mutate mirrors SettlementRepository.Mutate for seller accounts,
	// keyed by store.
	Mutate(ctx context.Context, storeID uint, fn func(a *models.SellerAccount) error) (*models.SellerAccount, error)
}

// StoreRepository is the read-only view of the store/identity collaborator.
type StoreRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Store, error)
}

// WebhookEventRepository records inbound provider events for exactly-once
// processing.
type WebhookEventRepository interface {
	// Record inserts the event; ErrDuplicateWebhookEvent signals the event
	// id was already seen.
	Record(ctx context.Context, event *models.WebhookEvent) error
	GetByEventID(ctx context.Context, eventID string) (*models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, eventID string, processingError string) error
}
