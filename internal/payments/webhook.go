package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/veloztours/booking-engine/internal/domain"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body,
// keyed by the shared secret.
const SignatureHeader = "X-Oracle-Signature"

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
)

// Event is the oracle's push payload. The body is only parsed after the
// signature check passes.
type Event struct {
	Type              string `json:"type"`
	CheckoutSessionID string `json:"checkout_session_id"`
	AmountTotal       int64  `json:"amount_total"`
	Currency          string `json:"currency"`
	ChargeID          string `json:"charge_id"`
}

func VerifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(strings.TrimSpace(signature)))
}

// Sign produces the signature the oracle attaches; used by tests and by the
// local oracle stub.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, errors.Wrap(domain.ErrInvalidInput, err.Error())
	}
	if ev.Type == "" || ev.CheckoutSessionID == "" {
		return nil, errors.Wrap(domain.ErrInvalidInput, "event type and checkout_session_id required")
	}
	return &ev, nil
}
