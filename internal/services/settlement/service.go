// Package settlement drives the payout lifecycle for captured order
// payments: compute the fee split, issue the idempotent payout request, and
// absorb synchronous provider results. Asynchronous provider state arrives
// through the webhook reconciler, which calls back into this service.
package settlement

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"stowpay/internal/apperrors"
	"stowpay/internal/models"
	"stowpay/internal/provider"
	"stowpay/internal/repositories"
	"stowpay/internal/services/fee"
)

type service struct {
	settlements repositories.SettlementRepository
	stores      repositories.StoreRepository
	sellers     SellerResolver
	gateway     Gateway
	calculator  *fee.Calculator
	scheduler   Scheduler
	retry       provider.RetryPolicy
	cache       BalanceCache
	cfg         Config
}

func NewService(
	settlements repositories.SettlementRepository,
	stores repositories.StoreRepository,
	sellers SellerResolver,
	gateway Gateway,
	calculator *fee.Calculator,
	scheduler Scheduler,
	retry provider.RetryPolicy,
	cache BalanceCache,
	cfg Config,
) Service {
	return &service{
		settlements: settlements,
		stores:      stores,
		sellers:     sellers,
		gateway:     gateway,
		calculator:  calculator,
		scheduler:   scheduler,
		retry:       retry,
		cache:       cache,
		cfg:         cfg.withDefaults(),
	}
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Settlement, error) {
	if input.OrderID == "" {
		return nil, apperrors.Validation("order id is required")
	}
	if _, err := s.stores.GetByID(ctx, input.StoreID); err != nil {
		if err == repositories.ErrStoreNotFound {
			return nil, apperrors.Newf(apperrors.KindNotFound, "store %d not found", input.StoreID)
		}
		return nil, err
	}

	rate := models.DefaultFeeRate
	if input.FeeRate != nil {
		rate = *input.FeeRate
	}
	split, err := s.calculator.Calculate(input.GrossAmount, rate)
	if err != nil {
		return nil, err
	}

	settlement := &models.Settlement{
		ID:          uuid.New(),
		StoreID:     input.StoreID,
		OrderID:     input.OrderID,
		GrossAmount: split.Gross,
		FeeRate:     split.Rate,
		FeeAmount:   split.Fee,
		NetAmount:   split.Net,
		Status:      models.SettlementStatusPending,
		Metadata:    input.Metadata,
	}
	if err := s.settlements.Create(ctx, settlement); err != nil {
		return nil, err
	}
	return settlement, nil
}

func (s *service) Process(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	current, err := s.getOrNotFound(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsTerminal() {
		return current, apperrors.Newf(apperrors.KindStateConflict, "settlement already %s", current.Status)
	}
	if current.Status == models.SettlementStatusProcessing {
		return current, apperrors.StateConflict("settlement payout already in flight")
	}

	// Eligibility is checked before any mutation so a not-yet-approved
	// seller leaves the settlement PENDING with its retry count untouched.
	account, err := s.sellers.GetByStoreID(ctx, current.StoreID)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return current, apperrors.Newf(apperrors.KindPrecondition, "store %d has no seller account", current.StoreID)
		}
		return current, err
	}
	if !account.PayoutEligible() {
		return current, apperrors.Newf(apperrors.KindPrecondition, "seller for store %d is not payout-eligible (status %s)", current.StoreID, account.Status)
	}

	// Guards re-checked under the row lock: a concurrent processor or
	// webhook may have moved the record since the reads above.
	inFlight, err := s.settlements.Mutate(ctx, id, func(st *models.Settlement) error {
		if st.Status == models.SettlementStatusFailed {
			if err := st.PrepareRetry(); err != nil {
				return err
			}
		}
		if !st.CanProcess() {
			return apperrors.Newf(apperrors.KindStateConflict, "settlement not processable in status %s", st.Status)
		}
		return st.Start()
	})
	if err != nil {
		return current, err
	}

	resp, err := s.gateway.RequestPayout(ctx, provider.PayoutRequest{
		ReferenceID: inFlight.ID.String(),
		SellerID:    *account.ExternalSellerID,
		Amount:      inFlight.NetAmount,
		Currency:    s.cfg.Currency,
		Description: "settlement for order " + inFlight.OrderID,
	})
	if err != nil {
		settled, _ := s.recordFailure(ctx, id, err.Error(), apperrors.IsRetryable(err))
		if settled == nil {
			settled = inFlight
		}
		return settled, err
	}

	completed, err := s.settlements.Mutate(ctx, id, func(st *models.Settlement) error {
		st.ExternalSellerID = *account.ExternalSellerID
		return st.Complete(resp.PayoutID)
	})
	if err != nil {
		return inFlight, err
	}

	if cerr := s.cache.InvalidateBalance(ctx); cerr != nil {
		log.Printf("settlement: failed to invalidate balance cache: %v", cerr)
	}
	return completed, nil
}

func (s *service) Fail(ctx context.Context, id uuid.UUID, reason string) (*models.Settlement, error) {
	// Provider-reported failures are retryable until the bound is hit.
	return s.recordFailure(ctx, id, reason, true)
}

// recordFailure marks the settlement FAILED and, when attempts remain and
// the cause was not terminal, schedules a deferred reattempt. The caller's
// request returns immediately; the backoff horizon runs on the scheduler.
func (s *service) recordFailure(ctx context.Context, id uuid.UUID, reason string, retryable bool) (*models.Settlement, error) {
	failed, err := s.settlements.Mutate(ctx, id, func(st *models.Settlement) error {
		return st.Fail(reason)
	})
	if err != nil {
		return nil, err
	}

	if retryable && failed.CanRetry() {
		delay := s.retry.Delay(failed.RetryCount)
		log.Printf("settlement %s: attempt %d failed, retrying in %s", id, failed.RetryCount, delay)
		s.scheduler.EnqueueAfter(delay, func(taskCtx context.Context) {
			if _, err := s.Process(taskCtx, id); err != nil {
				log.Printf("settlement %s: deferred retry failed: %v", id, err)
			}
		})
	} else {
		log.Printf("settlement %s: failed with no retry (attempts %d): %s", id, failed.RetryCount, reason)
	}
	return failed, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	return s.getOrNotFound(ctx, id)
}

func (s *service) List(ctx context.Context, input ListInput) ([]models.Settlement, int64, error) {
	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := input.Page
	if page < 1 {
		page = 1
	}

	return s.settlements.Find(ctx, repositories.SettlementFilter{
		StoreID: input.StoreID,
		Status:  input.Status,
		From:    input.From,
		To:      input.To,
	}, limit, (page-1)*limit)
}

func (s *service) GetSummary(ctx context.Context, storeID uint, day time.Time) (*models.SettlementSummary, error) {
	return s.settlements.Summarize(ctx, storeID, day)
}

func (s *service) GetBalance(ctx context.Context) (*provider.Balance, error) {
	if cached, err := s.cache.GetBalance(ctx); err == nil && cached != nil {
		return cached, nil
	}

	balance, err := s.gateway.GetBalance(ctx)
	if err != nil {
		return nil, err
	}
	if cerr := s.cache.CacheBalance(ctx, balance, s.cfg.BalanceCacheTTL); cerr != nil {
		log.Printf("settlement: failed to cache balance: %v", cerr)
	}
	return balance, nil
}

func (s *service) CancelPayout(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	current, err := s.getOrNotFound(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.SettlementStatusCompleted {
		return current, apperrors.StateConflict("cannot cancel a completed settlement")
	}

	if current.ExternalPayoutID != nil {
		if err := s.gateway.CancelPayout(ctx, *current.ExternalPayoutID); err != nil {
			return current, err
		}
	}

	return s.settlements.Mutate(ctx, id, func(st *models.Settlement) error {
		return st.Cancel()
	})
}

func (s *service) getOrNotFound(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	settlement, err := s.settlements.GetByID(ctx, id)
	if err != nil {
		if err == repositories.ErrSettlementNotFound {
			return nil, apperrors.Newf(apperrors.KindNotFound, "settlement %s not found", id)
		}
		return nil, err
	}
	return settlement, nil
}
