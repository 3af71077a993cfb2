package provider

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"

	"stowpay/internal/apperrors"
)

// The provider's wire contract mandates AES-256-GCM with a PBKDF2-derived
// key. These parameters are not tunable: a mismatch is rejected outright.
const (
	channelKeyLen     = 32
	channelIterations = 10000
)

// envelope is the protected header wrapped around every payload. The issue
// timestamp and per-call nonce id guarantee equal payloads never produce
// equal ciphertext.
type envelope struct {
	IssuedAt int64           `json:"issued_at"`
	NonceID  string          `json:"nonce_id"`
	Payload  json.RawMessage `json:"payload"`
}

// Channel encrypts and decrypts provider payloads. Key material is derived
// once at construction and never logged.
type Channel struct {
	aead cipher.AEAD
}

func NewChannel(secret, salt string) (*Channel, error) {
	if secret == "" {
		return nil, apperrors.Validation("provider encryption secret is required")
	}
	key := pbkdf2.Key([]byte(secret), []byte(salt), channelIterations, channelKeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCrypto, "failed to initialize cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindCrypto, "failed to initialize GCM", err)
	}
	return &Channel{aead: aead}, nil
}

// Encrypt wraps payload in a fresh envelope and returns an opaque token.
func (c *Channel) Encrypt(payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindCrypto, "failed to encode payload", err)
	}

	plain, err := json.Marshal(envelope{
		IssuedAt: time.Now().Unix(),
		NonceID:  uuid.NewString(),
		Payload:  raw,
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindCrypto, "failed to encode envelope", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", apperrors.Wrap(apperrors.KindCrypto, "failed to generate nonce", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plain, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens token into out. It fails whole on tamper, wrong key, or
// malformed structure; partial data is never returned. Error messages carry
// no plaintext or key material.
func (c *Channel) Decrypt(token string, out interface{}) error {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return apperrors.New(apperrors.KindCrypto, "malformed token encoding")
	}
	if len(sealed) < c.aead.NonceSize() {
		return apperrors.New(apperrors.KindCrypto, "token too short")
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return apperrors.New(apperrors.KindCrypto, "token authentication failed")
	}

	var env envelope
	if err := json.Unmarshal(plain, &env); err != nil {
		return apperrors.New(apperrors.KindCrypto, "malformed envelope")
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return apperrors.New(apperrors.KindCrypto, "malformed envelope payload")
	}
	return nil
}
