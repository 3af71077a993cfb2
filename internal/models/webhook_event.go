package models

import "time"

// Webhook event types
const (
	WebhookEventPayoutStatusChanged = "payout.status_changed"
	WebhookEventSellerStatusChanged = "seller.status_changed"
)

// WebhookEvent stores provider webhook payloads with deduplication metadata
// so a logical event is applied exactly once even when the provider redelivers.
type WebhookEvent struct {
	ID              uint       `gorm:"primarykey" json:"id"`
	EventID         string     `gorm:"uniqueIndex;not null" json:"event_id"`
	EventType       string     `gorm:"not null;index" json:"event_type"`
	OccurredAt      time.Time  `json:"occurred_at"`
	PayloadJSON     string     `gorm:"type:text;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false" json:"signature_valid"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
