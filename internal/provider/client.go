package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"stowpay/internal/apperrors"
)

// secureEnvelope is the JSON frame carrying an EncryptedChannel token on the
// wire. Every provider endpoint except the balance query uses it in both
// directions.
type secureEnvelope struct {
	Payload string `json:"payload"`
}

// client performs the raw HTTP exchange with the provider and classifies
// failures into the error taxonomy. Network faults and 5xx responses are
// transient; everything the provider answers with an explicit code is not.
type client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func newClient(cfg Config) *client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &client{
		http:    &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// do sends one request and returns the raw response body for 2xx answers.
// idempotencyKey may be empty for calls that are naturally safe to repeat.
func (c *client) do(ctx context.Context, method, path string, body []byte, idempotencyKey string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to build provider request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Transient("provider unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.Transient("failed to read provider response", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, nil
	case resp.StatusCode >= 500:
		return nil, apperrors.Transient(fmt.Sprintf("provider returned %d", resp.StatusCode), nil)
	default:
		return nil, c.classifyError(resp.StatusCode, respBody)
	}
}

// classifyError maps a 4xx provider answer onto the taxonomy. An explicit
// provider code is preserved verbatim and never retried.
func (c *client) classifyError(status int, body []byte) error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Code != "" {
		return apperrors.Provider(eb.Code, eb.Message)
	}
	if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
		return apperrors.Newf(apperrors.KindValidation, "provider rejected request (%d)", status)
	}
	return apperrors.Newf(apperrors.KindProvider, "provider returned %d", status)
}
