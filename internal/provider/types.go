package provider

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config carries the provider credentials and client settings. It is built
// once at startup and injected; nothing here is re-read per call.
type Config struct {
	BaseURL          string
	APIKey           string
	EncryptionSecret string
	EncryptionSalt   string
	Timeout          time.Duration
}

// RegisterSellerRequest onboards a store with the provider.
type RegisterSellerRequest struct {
	ReferenceID      string `json:"reference_id"`
	Name             string `json:"name"`
	OwnerName        string `json:"owner_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	BusinessCategory string `json:"business_category"`
	BusinessNumber   string `json:"business_number,omitempty"`
	BankCode         string `json:"bank_code"`
	BankAccountNo    string `json:"bank_account_no"`
	BankHolderName   string `json:"bank_holder_name"`
}

// RegisterSellerResponse is the provider's onboarding result.
type RegisterSellerResponse struct {
	SellerID string `json:"seller_id"`
	Status   string `json:"status"`
}

// Balance is the platform's provider balance. The balance endpoint is the one
// plaintext call in the contract.
type Balance struct {
	AvailableAmount decimal.Decimal `json:"available_amount"`
	PendingAmount   decimal.Decimal `json:"pending_amount"`
}

// PayoutRequest asks the provider to transfer a settlement's net amount to
// the seller's bank account. ReferenceID doubles as the idempotency key.
type PayoutRequest struct {
	ReferenceID string          `json:"reference_id"`
	SellerID    string          `json:"seller_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
}

// PayoutResponse is the provider's synchronous answer to a payout request.
type PayoutResponse struct {
	PayoutID string `json:"payout_id"`
	Status   string `json:"status"`
}

// errorBody is the provider's plaintext error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
