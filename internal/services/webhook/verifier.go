package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"stowpay/internal/apperrors"
)

// Verifier checks webhook authenticity and freshness. The signature is
// HMAC-SHA256 over "<unix timestamp>.<raw body>" and must be computed on the
// raw transport bytes, captured before any structured parsing.
type Verifier struct {
	secret    []byte
	freshness time.Duration
}

func NewVerifier(secret string, freshness time.Duration) *Verifier {
	if freshness <= 0 {
		freshness = 5 * time.Minute
	}
	return &Verifier{secret: []byte(secret), freshness: freshness}
}

// Verify rejects stale events before checking the signature, so an attacker
// replaying a validly signed payload past the freshness window gets nothing.
func (v *Verifier) Verify(rawBody []byte, timestampHeader, signature string) error {
	if timestampHeader == "" || signature == "" {
		return apperrors.Validation("missing webhook signature headers")
	}

	ts, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return apperrors.Validation("malformed webhook timestamp")
	}
	age := time.Since(time.Unix(ts, 0))
	if age > v.freshness || age < -v.freshness {
		return apperrors.Validation("webhook outside freshness window")
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestampHeader))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(signature)
	if err != nil {
		return apperrors.Validation("malformed webhook signature")
	}
	if !hmac.Equal(expected, got) {
		return apperrors.Validation("webhook signature mismatch")
	}
	return nil
}

// Sign computes the signature for rawBody at ts. Exported for tests and for
// the provider simulator.
func (v *Verifier) Sign(rawBody []byte, ts int64) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
