package seller

import (
	"context"

	"stowpay/internal/models"
	"stowpay/internal/provider"
)

// Service manages provider onboarding for stores.
type Service interface {
	// Register onboards a store with the provider. Idempotent by store:
	// an already registered store returns its existing account.
	Register(ctx context.Context, storeID uint) (*models.SellerAccount, error)

	// GetByStoreID returns the store's onboarding record.
	GetByStoreID(ctx context.Context, storeID uint) (*models.SellerAccount, error)
}

// Gateway is the slice of the provider gateway this service needs.
type Gateway interface {
	RegisterSeller(ctx context.Context, req provider.RegisterSellerRequest) (*provider.RegisterSellerResponse, error)
}

// Cache is the slice of the cache service this service needs.
type Cache interface {
	CacheSellerAccount(ctx context.Context, account *models.SellerAccount) error
	GetSellerAccount(ctx context.Context, storeID uint) (*models.SellerAccount, error)
	InvalidateSellerAccount(ctx context.Context, storeID uint) error
}
