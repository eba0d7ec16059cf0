package pg

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/veloztours/booking-engine/internal/domain"
)

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var status string
	err := row.Scan(&p.ReservationID, &status, &p.AmountCents, &p.Currency,
		&p.CheckoutSessionID, &p.ChargeID, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}

func (r *Repository) GetPayment(ctx context.Context, q Querier, reservationID uuid.UUID) (*domain.Payment, error) {
	return scanPayment(q.QueryRow(ctx, `
		SELECT reservation_id, status, amount_cents, currency, checkout_session_id, charge_id, updated_at
		FROM payments WHERE reservation_id = $1
	`, reservationID))
}

func (r *Repository) GetPaymentByCheckoutSession(ctx context.Context, q Querier, checkoutSessionID string) (*domain.Payment, error) {
	return scanPayment(q.QueryRow(ctx, `
		SELECT reservation_id, status, amount_cents, currency, checkout_session_id, charge_id, updated_at
		FROM payments WHERE checkout_session_id = $1
	`, checkoutSessionID))
}

// UpsertPayment recomputes the server-side amount for a reservation. The
// stored amount is the truth the oracle's reported total must match.
func (r *Repository) UpsertPayment(ctx context.Context, q Querier, p domain.Payment) error {
	_, err := q.Exec(ctx, `
		INSERT INTO payments (reservation_id, status, amount_cents, currency, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (reservation_id) DO UPDATE SET
			status = EXCLUDED.status,
			amount_cents = EXCLUDED.amount_cents,
			currency = EXCLUDED.currency,
			updated_at = EXCLUDED.updated_at
	`, p.ReservationID, string(p.Status), p.AmountCents, p.Currency, p.UpdatedAt)
	return err
}

// AttachCheckoutSession records the oracle's checkout identifier and moves
// the payment into PENDING once the external session exists.
func (r *Repository) AttachCheckoutSession(ctx context.Context, q Querier, reservationID uuid.UUID, checkoutSessionID string, now time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE payments
		SET checkout_session_id = $2, status = 'PENDING', updated_at = $3
		WHERE reservation_id = $1 AND status = 'REQUIRES_PAYMENT'
	`, reservationID, checkoutSessionID, now)
	return err
}

func (r *Repository) SetPaymentSucceeded(ctx context.Context, q Querier, reservationID uuid.UUID, chargeID string, now time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE payments SET status = 'SUCCEEDED', charge_id = $2, updated_at = $3
		WHERE reservation_id = $1
	`, reservationID, chargeID, now)
	return err
}

// CancelPayment voids a pending payment alongside a hold expiry.
func (r *Repository) CancelPayment(ctx context.Context, q Querier, reservationID uuid.UUID, now time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE payments SET status = 'CANCELED', updated_at = $2
		WHERE reservation_id = $1 AND status IN ('PENDING', 'REQUIRES_PAYMENT')
	`, reservationID, now)
	return err
}
