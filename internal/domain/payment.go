package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentNotRequired     PaymentStatus = "NOT_REQUIRED"
	PaymentRequiresPayment PaymentStatus = "REQUIRES_PAYMENT"
	PaymentPending         PaymentStatus = "PENDING"
	PaymentSucceeded       PaymentStatus = "SUCCEEDED"
	PaymentFailed          PaymentStatus = "FAILED"
	PaymentCanceled        PaymentStatus = "CANCELED"
	PaymentRefunded        PaymentStatus = "REFUNDED"
)

// Payment is one-to-one with a reservation. AmountCents always equals the
// session-priced party total at the time of last recompute.
type Payment struct {
	ReservationID     uuid.UUID
	Status            PaymentStatus
	AmountCents       int64
	Currency          string
	CheckoutSessionID *string
	ChargeID          *string
	UpdatedAt         time.Time
}

// Cancellable reports whether the expiry paths may void this payment.
func (p Payment) Cancellable() bool {
	return p.Status == PaymentPending || p.Status == PaymentRequiresPayment
}

// Matches validates an oracle-reported charge against server truth.
// Currency comparison is case-insensitive; amounts must be exact.
func (p Payment) Matches(amountCents int64, currency string) bool {
	return amountCents == p.AmountCents && strings.EqualFold(currency, p.Currency)
}
