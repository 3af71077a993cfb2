package models

import (
	"time"

	"github.com/google/uuid"

	"stowpay/internal/apperrors"
)

// Seller approval statuses, matching the provider's literals.
const (
	SellerStatusApprovalRequired  = "APPROVAL_REQUIRED"
	SellerStatusPartiallyApproved = "PARTIALLY_APPROVED"
	SellerStatusKYCRequired       = "KYC_REQUIRED"
	SellerStatusApproved          = "APPROVED"
)

// Seller business categories
const (
	BusinessCategoryIndividual = "individual"
	BusinessCategoryCorporate  = "corporate"
)

// SellerAccount is a store's onboarding record with the payout provider.
// One account per store.
type SellerAccount struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID          uint       `gorm:"uniqueIndex;not null" json:"store_id"`
	LocalReferenceID string     `gorm:"uniqueIndex;not null" json:"local_reference_id"`
	ExternalSellerID *string    `gorm:"index" json:"external_seller_id,omitempty"`
	BusinessCategory string     `gorm:"not null" json:"business_category"`
	Status           string     `gorm:"not null;default:'APPROVAL_REQUIRED'" json:"status"`
	RegisteredAt     time.Time  `json:"registered_at"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// PayoutEligible reports whether payouts may be requested for this seller.
func (a *SellerAccount) PayoutEligible() bool {
	if a.ExternalSellerID == nil || *a.ExternalSellerID == "" {
		return false
	}
	return a.Status == SellerStatusApproved || a.Status == SellerStatusPartiallyApproved
}

// AssignExternalID binds the provider's seller id. The binding is permanent:
// a second call fails even with the same id, so an account can never be
// silently rebound to another provider identity.
func (a *SellerAccount) AssignExternalID(id string) error {
	if id == "" {
		return apperrors.Validation("external seller id is required")
	}
	if a.ExternalSellerID != nil {
		return apperrors.StateConflict("external seller id already assigned")
	}
	a.ExternalSellerID = &id
	return nil
}

// Approve marks the seller fully approved. Idempotent; ApprovedAt is stamped
// only on the first transition into an eligible status.
func (a *SellerAccount) Approve() {
	if a.Status == SellerStatusApproved {
		return
	}
	a.Status = SellerStatusApproved
	a.stampApprovedAt()
}

// UpdateStatus applies a provider-reported status. It is total over all
// statuses: regressions from APPROVED are applied and reported to the caller
// for logging rather than rejected, since the provider owns this state.
// Returns whether the account became payout-eligible by this change.
func (a *SellerAccount) UpdateStatus(status string) (becameEligible bool) {
	wasEligible := a.PayoutEligible()
	a.Status = status
	if a.PayoutEligible() {
		a.stampApprovedAt()
	}
	return !wasEligible && a.PayoutEligible()
}

func (a *SellerAccount) stampApprovedAt() {
	if a.ApprovedAt == nil {
		now := time.Now()
		a.ApprovedAt = &now
	}
}

// ValidSellerStatus reports whether s is one of the provider's status
// literals.
func ValidSellerStatus(s string) bool {
	switch s {
	case SellerStatusApprovalRequired, SellerStatusPartiallyApproved, SellerStatusKYCRequired, SellerStatusApproved:
		return true
	}
	return false
}

// SellerStatusTerminalRejection reports whether the provider has rejected the
// seller in a way that cannot recover without re-onboarding.
func SellerStatusTerminalRejection(s string) bool {
	return s == "REJECTED" || s == "SUSPENDED"
}
