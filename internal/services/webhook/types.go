package webhook

import "time"

// Provider payout status literals carried in webhook payloads.
const (
	PayoutStatusSuccess   = "success"
	PayoutStatusFailure   = "failure"
	PayoutStatusCancelled = "cancelled"
)

// Outcome tells the ingress handler what happened to an event. All outcomes
// are 2xx to the provider; only verification or infrastructure errors make
// it redeliver.
type Outcome string

const (
	OutcomeApplied          Outcome = "applied"
	OutcomeAlreadyProcessed Outcome = "already processed"
	OutcomeIgnored          Outcome = "ignored"
)

// PayoutEvent is a payout.status_changed notification.
type PayoutEvent struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       PayoutEventData `json:"data"`
}

type PayoutEventData struct {
	// ReferenceID is our settlement id, echoed back by the provider.
	ReferenceID string `json:"reference_id"`
	PayoutID    string `json:"payout_id"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

// SellerEvent is a seller.status_changed notification.
type SellerEvent struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       SellerEventData `json:"data"`
}

type SellerEventData struct {
	// ReferenceID is our local seller reference (the store id), echoed
	// back by the provider.
	ReferenceID string `json:"reference_id"`
	SellerID    string `json:"seller_id"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}
