package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// CheckoutSession mirrors the oracle's view of one checkout.
type CheckoutSession struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	AmountTotal int64  `json:"amount_total"`
	Currency    string `json:"currency"`
	Paid        bool   `json:"paid"`
	ChargeID    string `json:"charge_id"`
}

type CreateCheckoutParams struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	Description   string    `json:"description"`
	CustomerEmail string    `json:"customer_email"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Oracle is the external system of record for charge and checkout status.
// The core never trusts it on amounts without checking server-side truth.
type Oracle interface {
	CreateCheckout(ctx context.Context, params CreateCheckoutParams) (*CheckoutSession, error)
	GetCheckout(ctx context.Context, id string) (*CheckoutSession, error)
	ExpireCheckout(ctx context.Context, id string) error
}

// HTTPOracle talks to the payment provider's REST API.
type HTTPOracle struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPOracle(baseURL, apiKey string) *HTTPOracle {
	return &HTTPOracle{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (o *HTTPOracle) CreateCheckout(ctx context.Context, params CreateCheckoutParams) (*CheckoutSession, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var cs CheckoutSession
	if err := o.do(ctx, http.MethodPost, "/v1/checkout/sessions", body, &cs); err != nil {
		return nil, errors.Wrap(err, "create checkout")
	}
	return &cs, nil
}

func (o *HTTPOracle) GetCheckout(ctx context.Context, id string) (*CheckoutSession, error) {
	var cs CheckoutSession
	if err := o.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+id, nil, &cs); err != nil {
		return nil, errors.Wrap(err, "get checkout")
	}
	return &cs, nil
}

func (o *HTTPOracle) ExpireCheckout(ctx context.Context, id string) error {
	err := o.do(ctx, http.MethodPost, "/v1/checkout/sessions/"+id+"/expire", nil, nil)
	return errors.Wrap(err, "expire checkout")
}

func (o *HTTPOracle) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, o.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("oracle returned %d for %s %s", resp.StatusCode, method, path)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
