// Package seller keeps each store's onboarding state with the payout
// provider in sync and gates payout eligibility.
package seller

import (
	"context"
	"fmt"
	"log"
	"time"

	"stowpay/internal/apperrors"
	"stowpay/internal/models"
	"stowpay/internal/provider"
	"stowpay/internal/repositories"
)

type service struct {
	accounts repositories.SellerAccountRepository
	stores   repositories.StoreRepository
	gateway  Gateway
	cache    Cache
}

func NewService(
	accounts repositories.SellerAccountRepository,
	stores repositories.StoreRepository,
	gateway Gateway,
	cache Cache,
) Service {
	return &service{
		accounts: accounts,
		stores:   stores,
		gateway:  gateway,
		cache:    cache,
	}
}

func (s *service) Register(ctx context.Context, storeID uint) (*models.SellerAccount, error) {
	store, err := s.stores.GetByID(ctx, storeID)
	if err != nil {
		if err == repositories.ErrStoreNotFound {
			return nil, apperrors.Newf(apperrors.KindNotFound, "store %d not found", storeID)
		}
		return nil, err
	}

	account, err := s.accounts.GetByStoreID(ctx, storeID)
	switch err {
	case nil:
		if account.ExternalSellerID != nil {
			return account, nil
		}
		// Account exists but a previous registration call never got a
		// seller id back; resume from the provider call.
	case repositories.ErrSellerAccountNotFound:
		account = &models.SellerAccount{
			StoreID:          storeID,
			LocalReferenceID: fmt.Sprintf("%d", storeID),
			BusinessCategory: businessCategory(store),
			Status:           models.SellerStatusApprovalRequired,
			RegisteredAt:     time.Now(),
		}
		if err := s.accounts.Create(ctx, account); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	resp, err := s.gateway.RegisterSeller(ctx, provider.RegisterSellerRequest{
		ReferenceID:      account.LocalReferenceID,
		Name:             store.Name,
		OwnerName:        store.OwnerName,
		Email:            store.OwnerEmail,
		Phone:            store.OwnerPhone,
		BusinessCategory: account.BusinessCategory,
		BusinessNumber:   store.BusinessNumber,
		BankCode:         store.BankCode,
		BankAccountNo:    store.BankAccountNo,
		BankHolderName:   store.BankHolderName,
	})
	if err != nil {
		return nil, err
	}

	account, err = s.accounts.Mutate(ctx, storeID, func(a *models.SellerAccount) error {
		if err := a.AssignExternalID(resp.SellerID); err != nil {
			// A concurrent registration won the race; accept its binding
			// only when the provider returned the same seller.
			if a.ExternalSellerID != nil && *a.ExternalSellerID == resp.SellerID {
				return nil
			}
			return err
		}
		if models.ValidSellerStatus(resp.Status) {
			a.UpdateStatus(resp.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cerr := s.cache.CacheSellerAccount(ctx, account); cerr != nil {
		log.Printf("seller: failed to cache account for store %d: %v", storeID, cerr)
	}
	return account, nil
}

func (s *service) GetByStoreID(ctx context.Context, storeID uint) (*models.SellerAccount, error) {
	if cached, err := s.cache.GetSellerAccount(ctx, storeID); err == nil && cached != nil {
		return cached, nil
	}

	account, err := s.accounts.GetByStoreID(ctx, storeID)
	if err != nil {
		if err == repositories.ErrSellerAccountNotFound {
			return nil, apperrors.Newf(apperrors.KindNotFound, "seller account for store %d not found", storeID)
		}
		return nil, err
	}

	if cerr := s.cache.CacheSellerAccount(ctx, account); cerr != nil {
		log.Printf("seller: failed to cache account for store %d: %v", storeID, cerr)
	}
	return account, nil
}

func businessCategory(store *models.Store) string {
	if store.BusinessCategory == models.BusinessCategoryCorporate {
		return models.BusinessCategoryCorporate
	}
	return models.BusinessCategoryIndividual
}
