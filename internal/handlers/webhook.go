package handlers

import (
	"github.com/gofiber/fiber/v2"

	"stowpay/internal/services/webhook"
	"stowpay/internal/utils/response"
)

// Webhook signature headers, fixed by the provider's contract.
const (
	headerWebhookSignature = "X-Webhook-Signature"
	headerWebhookTimestamp = "X-Webhook-Timestamp"
)

type WebhookHandler struct {
	reconciler webhook.Reconciler
}

func NewWebhookHandler(reconciler webhook.Reconciler) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
	}
}

// PayoutChanged ingests payout.status_changed notifications. The raw body is
// taken from the transport before any parsing: the signature covers those
// exact bytes.
func (h *WebhookHandler) PayoutChanged(c *fiber.Ctx) error {
	outcome, err := h.reconciler.HandlePayoutChanged(
		c.Context(),
		c.Body(),
		c.Get(headerWebhookTimestamp),
		c.Get(headerWebhookSignature),
	)
	if err != nil {
		return response.Error(c, statusForError(err), err.Error())
	}
	return response.Success(c, string(outcome), nil)
}

// SellerChanged ingests seller.status_changed notifications.
func (h *WebhookHandler) SellerChanged(c *fiber.Ctx) error {
	outcome, err := h.reconciler.HandleSellerChanged(
		c.Context(),
		c.Body(),
		c.Get(headerWebhookTimestamp),
		c.Get(headerWebhookSignature),
	)
	if err != nil {
		return response.Error(c, statusForError(err), err.Error())
	}
	return response.Success(c, string(outcome), nil)
}
