// Package provider speaks the payout provider's wire contract: encrypted
// request envelopes, idempotency keys, and a plaintext balance endpoint.
package provider

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"stowpay/internal/apperrors"
)

// Gateway issues registration, balance, payout, and cancel calls to the
// provider. The retry policy wraps only the transport exchange; a decrypted
// business error is returned as-is and never retried.
type Gateway struct {
	client  *client
	channel *Channel
	retry   RetryPolicy
}

func NewGateway(cfg Config, channel *Channel, retry RetryPolicy) *Gateway {
	return &Gateway{
		client:  newClient(cfg),
		channel: channel,
		retry:   retry,
	}
}

// RegisterSeller onboards a store with the provider. The store's reference id
// is the idempotency key, so re-registering an already known store returns
// the existing seller.
func (g *Gateway) RegisterSeller(ctx context.Context, req RegisterSellerRequest) (*RegisterSellerResponse, error) {
	if req.ReferenceID == "" {
		return nil, apperrors.Validation("seller reference id is required")
	}
	var out RegisterSellerResponse
	if err := g.exchange(ctx, http.MethodPost, "/v1/sellers", req, req.ReferenceID, &out); err != nil {
		return nil, err
	}
	if out.SellerID == "" {
		return nil, apperrors.New(apperrors.KindProvider, "provider returned no seller id")
	}
	return &out, nil
}

// GetBalance returns the platform's available and pending balance. This is
// the single plaintext call in the contract.
func (g *Gateway) GetBalance(ctx context.Context) (*Balance, error) {
	var balance Balance
	err := g.retry.Do(ctx, func() error {
		body, err := g.client.do(ctx, http.MethodGet, "/v1/balance", nil, "")
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &balance); err != nil {
			return apperrors.Wrap(apperrors.KindProvider, "malformed balance response", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// RequestPayout asks the provider to move req.Amount to the seller's bank
// account. req.ReferenceID (the settlement id) is the idempotency key: a
// retried call after a timeout cannot create a second transfer.
func (g *Gateway) RequestPayout(ctx context.Context, req PayoutRequest) (*PayoutResponse, error) {
	if req.ReferenceID == "" {
		return nil, apperrors.Validation("payout reference id is required")
	}
	if req.SellerID == "" {
		return nil, apperrors.Validation("payout seller id is required")
	}
	if !req.Amount.IsPositive() {
		return nil, apperrors.Validation("payout amount must be positive")
	}
	var out PayoutResponse
	if err := g.exchange(ctx, http.MethodPost, "/v1/payouts", req, req.ReferenceID, &out); err != nil {
		return nil, err
	}
	if out.PayoutID == "" {
		return nil, apperrors.New(apperrors.KindProvider, "provider returned no payout id")
	}
	return &out, nil
}

// CancelPayout explicitly cancels a previously requested payout.
func (g *Gateway) CancelPayout(ctx context.Context, externalPayoutID string) error {
	if externalPayoutID == "" {
		return apperrors.Validation("external payout id is required")
	}
	var out PayoutResponse
	return g.exchange(ctx, http.MethodPost, "/v1/payouts/"+externalPayoutID+"/cancel", struct{}{}, externalPayoutID+":cancel", &out)
}

// exchange encrypts req, performs the call under the retry policy, and
// decrypts the response into out.
func (g *Gateway) exchange(ctx context.Context, method, path string, req interface{}, idempotencyKey string, out interface{}) error {
	return g.retry.Do(ctx, func() error {
		// Re-encrypted per attempt so every request carries a fresh envelope.
		token, err := g.channel.Encrypt(req)
		if err != nil {
			return err
		}
		body, err := json.Marshal(secureEnvelope{Payload: token})
		if err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "failed to encode request frame", err)
		}

		respBody, err := g.client.do(ctx, method, path, body, idempotencyKey)
		if err != nil {
			return err
		}

		var frame secureEnvelope
		if err := json.Unmarshal(respBody, &frame); err != nil || frame.Payload == "" {
			log.Printf("provider: malformed response frame on %s %s", method, path)
			return apperrors.New(apperrors.KindProvider, "malformed provider response frame")
		}
		return g.channel.Decrypt(frame.Payload, out)
	})
}
