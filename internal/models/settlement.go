package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stowpay/internal/apperrors"
)

// Settlement statuses
const (
	SettlementStatusPending    = "PENDING"
	SettlementStatusProcessing = "PROCESSING"
	SettlementStatusCompleted  = "COMPLETED"
	SettlementStatusFailed     = "FAILED"
	SettlementStatusCancelled  = "CANCELLED"
)

// MaxPayoutRetries bounds how many times a failed payout may be retried.
const MaxPayoutRetries = 3

// DefaultFeeRate is the platform commission applied when a store has no
// negotiated rate.
var DefaultFeeRate = decimal.RequireFromString("0.2000")

// Settlement is the per-transaction payout record. Rows are append-only:
// they are never hard-deleted, and status moves only through the transition
// methods below.
type Settlement struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID          uint            `gorm:"not null;index" json:"store_id"`
	OrderID          string          `gorm:"not null;index" json:"order_id"`
	GrossAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"gross_amount"`
	FeeRate          decimal.Decimal `gorm:"type:numeric(5,4);not null;default:0.2" json:"fee_rate"`
	FeeAmount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"fee_amount"`
	NetAmount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"net_amount"`
	Status           string          `gorm:"not null;default:'PENDING';index" json:"status"`
	ExternalPayoutID *string         `gorm:"index" json:"external_payout_id,omitempty"`
	ExternalSellerID string          `json:"external_seller_id,omitempty"`
	RequestedAt      *time.Time      `json:"requested_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	LastError        string          `json:"last_error,omitempty"`
	RetryCount       int             `gorm:"not null;default:0" json:"retry_count"`
	Metadata         JSON            `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsTerminal reports whether no writer may move the settlement again.
func (s *Settlement) IsTerminal() bool {
	return s.Status == SettlementStatusCompleted || s.Status == SettlementStatusCancelled
}

// CanProcess reports whether the settlement is ready for a payout attempt.
func (s *Settlement) CanProcess() bool {
	return s.Status == SettlementStatusPending && s.NetAmount.IsPositive() && s.StoreID != 0
}

// CanRetry reports whether a failed payout may be attempted again.
func (s *Settlement) CanRetry() bool {
	return s.Status == SettlementStatusFailed && s.RetryCount < MaxPayoutRetries
}

// Start moves PENDING -> PROCESSING and stamps RequestedAt.
func (s *Settlement) Start() error {
	if s.Status != SettlementStatusPending {
		return apperrors.Newf(apperrors.KindStateConflict, "cannot start settlement in status %s", s.Status)
	}
	now := time.Now()
	s.Status = SettlementStatusProcessing
	s.RequestedAt = &now
	return nil
}

// Complete moves PROCESSING -> COMPLETED and records the provider payout id.
// Calling it again with the same id is a no-op so webhook replays reconcile
// cleanly.
func (s *Settlement) Complete(externalPayoutID string) error {
	if externalPayoutID == "" {
		return apperrors.Validation("external payout id is required")
	}
	if s.Status == SettlementStatusCompleted {
		if s.ExternalPayoutID != nil && *s.ExternalPayoutID == externalPayoutID {
			return nil
		}
		return apperrors.Newf(apperrors.KindStateConflict, "settlement already completed with a different payout id")
	}
	if s.Status != SettlementStatusProcessing {
		return apperrors.Newf(apperrors.KindStateConflict, "cannot complete settlement in status %s", s.Status)
	}
	now := time.Now()
	s.Status = SettlementStatusCompleted
	s.ExternalPayoutID = &externalPayoutID
	s.CompletedAt = &now
	s.LastError = ""
	return nil
}

// Fail moves any non-terminal status to FAILED and counts the attempt.
func (s *Settlement) Fail(reason string) error {
	if reason == "" {
		return apperrors.Validation("failure reason is required")
	}
	if s.IsTerminal() {
		return apperrors.Newf(apperrors.KindStateConflict, "cannot fail settlement in status %s", s.Status)
	}
	s.Status = SettlementStatusFailed
	s.LastError = reason
	s.RetryCount++
	s.CompletedAt = nil
	return nil
}

// PrepareRetry moves FAILED back to PENDING for a deferred reattempt. The
// retry counter and last error are kept so the attempt history survives.
func (s *Settlement) PrepareRetry() error {
	if !s.CanRetry() {
		return apperrors.Newf(apperrors.KindStateConflict, "settlement not retryable (status %s, %d attempts)", s.Status, s.RetryCount)
	}
	s.Status = SettlementStatusPending
	return nil
}

// Cancel moves any non-completed status to CANCELLED. Cancelling an already
// cancelled settlement is a no-op.
func (s *Settlement) Cancel() error {
	if s.Status == SettlementStatusCancelled {
		return nil
	}
	if s.Status == SettlementStatusCompleted {
		return apperrors.StateConflict("cannot cancel a completed settlement")
	}
	s.Status = SettlementStatusCancelled
	s.ExternalPayoutID = nil
	s.CompletedAt = nil
	return nil
}

// SettlementSummary aggregates a store's settlements for one day.
type SettlementSummary struct {
	StoreID       uint                       `json:"store_id"`
	Date          string                     `json:"date"`
	TotalCount    int64                      `json:"total_count"`
	TotalGross    decimal.Decimal            `json:"total_gross"`
	TotalFee      decimal.Decimal            `json:"total_fee"`
	TotalNet      decimal.Decimal            `json:"total_net"`
	CountByStatus map[string]int64           `json:"count_by_status"`
	NetByStatus   map[string]decimal.Decimal `json:"net_by_status"`
}
