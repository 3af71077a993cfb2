// Package webhook reconciles the provider's externally-owned payout and
// seller state back into local records. Delivery is neither ordered nor
// exactly-once at the transport level; every handler here is safe to invoke
// repeatedly for the same logical event.
package webhook

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"stowpay/internal/apperrors"
	"stowpay/internal/models"
	"stowpay/internal/repositories"
)

type service struct {
	verifier    *Verifier
	settlements repositories.SettlementRepository
	sellers     repositories.SellerAccountRepository
	events      repositories.WebhookEventRepository
	ops         SettlementOps
	scheduler   Scheduler
	cache       SellerCache
}

func NewService(
	verifier *Verifier,
	settlements repositories.SettlementRepository,
	sellers repositories.SellerAccountRepository,
	events repositories.WebhookEventRepository,
	ops SettlementOps,
	scheduler Scheduler,
	cache SellerCache,
) Reconciler {
	return &service{
		verifier:    verifier,
		settlements: settlements,
		sellers:     sellers,
		events:      events,
		ops:         ops,
		scheduler:   scheduler,
		cache:       cache,
	}
}

func (s *service) HandlePayoutChanged(ctx context.Context, rawBody []byte, timestamp, signature string) (Outcome, error) {
	if err := s.verifier.Verify(rawBody, timestamp, signature); err != nil {
		return "", err
	}

	var event PayoutEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return "", apperrors.Validation("malformed payout event payload")
	}
	if event.EventID == "" || event.Data.Status == "" {
		return "", apperrors.Validation("payout event missing required fields")
	}

	outcome, dup, err := s.recordEvent(ctx, event.EventID, models.WebhookEventPayoutStatusChanged, event.OccurredAt, rawBody)
	if dup || err != nil {
		return outcome, err
	}

	outcome, applyErr := s.applyPayoutEvent(ctx, event)
	s.finishEvent(ctx, event.EventID, applyErr)
	return outcome, applyErr
}

func (s *service) applyPayoutEvent(ctx context.Context, event PayoutEvent) (Outcome, error) {
	settlementID, err := uuid.Parse(event.Data.ReferenceID)
	if err != nil {
		// Not one of ours; possibly another environment sharing the
		// provider account.
		log.Printf("webhook: payout event %s carries foreign reference %q", event.EventID, event.Data.ReferenceID)
		return OutcomeIgnored, nil
	}

	settlement, err := s.settlements.GetByID(ctx, settlementID)
	if err != nil {
		if err == repositories.ErrSettlementNotFound {
			log.Printf("webhook: payout event %s references unknown settlement %s", event.EventID, settlementID)
			return OutcomeIgnored, nil
		}
		return "", err
	}

	// A different recorded payout id means this event is foreign or stale.
	if settlement.ExternalPayoutID != nil && event.Data.PayoutID != "" &&
		*settlement.ExternalPayoutID != event.Data.PayoutID {
		log.Printf("webhook: payout event %s: payout id mismatch for settlement %s", event.EventID, settlementID)
		return OutcomeIgnored, nil
	}

	switch event.Data.Status {
	case PayoutStatusSuccess:
		return s.applyPayoutSuccess(ctx, settlement, event)
	case PayoutStatusFailure:
		reason := event.Data.Reason
		if reason == "" {
			reason = "payout failed at provider"
		}
		if _, err := s.ops.Fail(ctx, settlementID, reason); err != nil {
			return "", err
		}
		return OutcomeApplied, nil
	case PayoutStatusCancelled:
		return s.applyPayoutCancelled(ctx, settlement)
	default:
		log.Printf("webhook: payout event %s carries unknown status %q", event.EventID, event.Data.Status)
		return OutcomeIgnored, nil
	}
}

func (s *service) applyPayoutSuccess(ctx context.Context, settlement *models.Settlement, event PayoutEvent) (Outcome, error) {
	// Terminal-state guard without a write: the usual replay case.
	if settlement.Status == models.SettlementStatusCompleted &&
		settlement.ExternalPayoutID != nil && *settlement.ExternalPayoutID == event.Data.PayoutID {
		return OutcomeAlreadyProcessed, nil
	}

	_, err := s.settlements.Mutate(ctx, settlement.ID, func(st *models.Settlement) error {
		if st.ExternalPayoutID != nil && event.Data.PayoutID != "" &&
			*st.ExternalPayoutID != event.Data.PayoutID {
			return apperrors.StateConflict("payout id mismatch")
		}
		return st.Complete(event.Data.PayoutID)
	})
	if err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

func (s *service) applyPayoutCancelled(ctx context.Context, settlement *models.Settlement) (Outcome, error) {
	if settlement.Status == models.SettlementStatusCancelled {
		return OutcomeAlreadyProcessed, nil
	}
	if settlement.Status == models.SettlementStatusCompleted {
		// Terminal precedence: a completed settlement never regresses.
		log.Printf("webhook: ignoring cancel for completed settlement %s", settlement.ID)
		return OutcomeIgnored, nil
	}
	_, err := s.settlements.Mutate(ctx, settlement.ID, func(st *models.Settlement) error {
		return st.Cancel()
	})
	if err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

func (s *service) HandleSellerChanged(ctx context.Context, rawBody []byte, timestamp, signature string) (Outcome, error) {
	if err := s.verifier.Verify(rawBody, timestamp, signature); err != nil {
		return "", err
	}

	var event SellerEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return "", apperrors.Validation("malformed seller event payload")
	}
	if event.EventID == "" || event.Data.Status == "" {
		return "", apperrors.Validation("seller event missing required fields")
	}

	outcome, dup, err := s.recordEvent(ctx, event.EventID, models.WebhookEventSellerStatusChanged, event.OccurredAt, rawBody)
	if dup || err != nil {
		return outcome, err
	}

	outcome, applyErr := s.applySellerEvent(ctx, event)
	s.finishEvent(ctx, event.EventID, applyErr)
	return outcome, applyErr
}

func (s *service) applySellerEvent(ctx context.Context, event SellerEvent) (Outcome, error) {
	account, err := s.sellers.GetByLocalReference(ctx, event.Data.ReferenceID)
	if err != nil {
		if err == repositories.ErrSellerAccountNotFound {
			log.Printf("webhook: seller event %s references unknown account %q", event.EventID, event.Data.ReferenceID)
			return OutcomeIgnored, nil
		}
		return "", err
	}

	if account.Status == event.Data.Status {
		return OutcomeAlreadyProcessed, nil
	}
	if account.Status == models.SellerStatusApproved && event.Data.Status != models.SellerStatusApproved {
		// The provider owns this state; apply the regression but leave a
		// trail for operators.
		log.Printf("webhook: seller %s regressed from APPROVED to %s", event.Data.ReferenceID, event.Data.Status)
	}

	var becameEligible bool
	updated, err := s.sellers.Mutate(ctx, account.StoreID, func(a *models.SellerAccount) error {
		becameEligible = a.UpdateStatus(event.Data.Status)
		return nil
	})
	if err != nil {
		return "", err
	}
	if cerr := s.cache.InvalidateSellerAccount(ctx, updated.StoreID); cerr != nil {
		log.Printf("webhook: failed to invalidate seller cache for store %d: %v", updated.StoreID, cerr)
	}

	if becameEligible {
		s.enqueueEligibilitySweep(updated.StoreID)
	} else if models.SellerStatusTerminalRejection(event.Data.Status) {
		s.enqueueRejectionSweep(updated.StoreID, event.Data.Status, event.Data.Reason)
	}
	return OutcomeApplied, nil
}

// enqueueEligibilitySweep processes the store's pending settlements once its
// seller becomes payout-eligible. Each settlement is handled independently;
// one failure never aborts the rest.
func (s *service) enqueueEligibilitySweep(storeID uint) {
	s.scheduler.Enqueue(func(ctx context.Context) {
		pending, err := s.settlements.FindPendingByStore(ctx, storeID)
		if err != nil {
			log.Printf("webhook: sweep for store %d failed to list settlements: %v", storeID, err)
			return
		}
		for _, settlement := range pending {
			if _, err := s.ops.Process(ctx, settlement.ID); err != nil {
				log.Printf("webhook: sweep: settlement %s not processed: %v", settlement.ID, err)
			}
		}
	})
}

// enqueueRejectionSweep fails the store's pending settlements when the
// provider terminally rejects its seller.
func (s *service) enqueueRejectionSweep(storeID uint, status, reason string) {
	s.scheduler.Enqueue(func(ctx context.Context) {
		pending, err := s.settlements.FindPendingByStore(ctx, storeID)
		if err != nil {
			log.Printf("webhook: rejection sweep for store %d failed to list settlements: %v", storeID, err)
			return
		}
		detail := "seller " + status + " by provider"
		if reason != "" {
			detail += ": " + reason
		}
		for _, settlement := range pending {
			if _, err := s.ops.Fail(ctx, settlement.ID, detail); err != nil {
				log.Printf("webhook: rejection sweep: settlement %s not failed: %v", settlement.ID, err)
			}
		}
	})
}

// recordEvent persists the raw event for the exactly-once guarantee. dup is
// true only when a prior delivery of this event id finished cleanly; a
// redelivery after a failed or interrupted apply runs the event again, which
// the terminal-state guards make safe.
func (s *service) recordEvent(ctx context.Context, eventID string, eventType string, occurredAt time.Time, rawBody []byte) (Outcome, bool, error) {
	err := s.events.Record(ctx, &models.WebhookEvent{
		EventID:        eventID,
		EventType:      eventType,
		OccurredAt:     occurredAt,
		PayloadJSON:    string(rawBody),
		SignatureValid: true,
	})
	if err == nil {
		return "", false, nil
	}
	if err != repositories.ErrDuplicateWebhookEvent {
		return "", false, err
	}

	prior, err := s.events.GetByEventID(ctx, eventID)
	if err != nil {
		return "", false, err
	}
	if prior.ProcessedAt != nil && prior.ProcessingError == "" {
		return OutcomeAlreadyProcessed, true, nil
	}
	log.Printf("webhook: reapplying event %s after incomplete processing", eventID)
	return "", false, nil
}

func (s *service) finishEvent(ctx context.Context, eventID string, applyErr error) {
	detail := ""
	if applyErr != nil {
		detail = applyErr.Error()
	}
	if err := s.events.MarkProcessed(ctx, eventID, detail); err != nil {
		log.Printf("webhook: failed to mark event %s processed: %v", eventID, err)
	}
}
