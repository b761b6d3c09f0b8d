package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// IdempotencyHeader carries the caller-supplied token that lets the gateway
// deduplicate a retried confirmation.
const IdempotencyHeader = "Idempotency-Key"

// ErrOutcomeUnknown marks gateway calls that timed out or were cut off
// mid-flight: the charge may or may not have gone through, so the caller
// must not blindly retry.
var ErrOutcomeUnknown = errors.New("payment outcome unknown")

// DeclineError is a definitive gateway refusal; the charge did not happen.
type DeclineError struct {
	Reason string
}

func (e *DeclineError) Error() string {
	return fmt.Sprintf("payment declined: %s", e.Reason)
}

// ConfirmRequest is the synchronous "confirm payment" call. Amount is in the
// smallest currency unit.
type ConfirmRequest struct {
	AmountMinor    int64  `json:"amount"`
	Currency       string `json:"currency"`
	InstrumentRef  string `json:"payment_method"`
	Description    string `json:"description,omitempty"`
	IdempotencyKey string `json:"-"`
}

type Confirmation struct {
	TransactionID string `json:"transaction_id"`
}

type declineResponse struct {
	DeclineReason string `json:"decline_reason"`
}

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// ConfirmPayment charges the instrument for the given amount. A non-nil
// error is either a *DeclineError (definitive refusal), an error wrapping
// ErrOutcomeUnknown (timeout, connection cut) or a plain transport/protocol
// failure.
func (c *Client) ConfirmPayment(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/v1/payments/confirm",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(IdempotencyHeader, req.IdempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", ErrOutcomeUnknown, err)
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %v", ErrOutcomeUnknown, err)
		}
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var result Confirmation
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &result, nil
	case http.StatusPaymentRequired, http.StatusUnprocessableEntity:
		var decline declineResponse
		if err := json.NewDecoder(resp.Body).Decode(&decline); err != nil || decline.DeclineReason == "" {
			decline.DeclineReason = "declined"
		}
		return nil, &DeclineError{Reason: decline.DeclineReason}
	default:
		return nil, fmt.Errorf("gateway status %d", resp.StatusCode)
	}
}
