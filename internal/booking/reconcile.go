package booking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/veloztours/booking-engine/internal/domain"
	"github.com/veloztours/booking-engine/internal/observability"
)

// Reconciliation paths, used for metrics and audit.
const (
	PathPush = "push"
	PathPull = "pull"
)

// ConfirmCheckout is the single idempotent confirm transition both
// reconciliation paths converge on. The oracle's reported amount and
// currency must match the server-computed payment before anything is
// trusted; a mismatch is an integrity failure, never a silent ignore.
// Events for reservations that are no longer holds are ignored without
// error so the oracle's retries terminate.
func (s *Service) ConfirmCheckout(ctx context.Context, checkoutSessionID string, amountTotal int64, currency, chargeID, path string) error {
	var (
		confirmed domain.Reservation
		mailWon   bool
	)
	err := s.withRetry(ctx, func() error {
		confirmed, mailWon = domain.Reservation{}, false
		return s.inTx(ctx, func(tx pgx.Tx) error {
			now := time.Now()
			pay, err := s.repo.GetPaymentByCheckoutSession(ctx, tx, checkoutSessionID)
			if err != nil {
				return err
			}
			res, err := s.repo.GetReservation(ctx, tx, pay.ReservationID)
			if err != nil {
				return err
			}

			if res.Status == domain.StatusConfirmed && pay.Status == domain.PaymentSucceeded {
				// Both paths already converged; nothing to do.
				return nil
			}
			if res.Status != domain.StatusHold {
				// Expired, cancelled or otherwise settled; a late event
				// must not revive it.
				return nil
			}
			if !pay.Matches(amountTotal, currency) {
				return errors.Wrapf(domain.ErrAmountMismatch,
					"checkout %s reported %d %s, server expects %d %s",
					checkoutSessionID, amountTotal, currency, pay.AmountCents, pay.Currency)
			}
			if err := domain.CheckTransition(res.Status, domain.StatusConfirmed); err != nil {
				return err
			}

			if err := s.repo.SetPaymentSucceeded(ctx, tx, res.ID, chargeID, now); err != nil {
				return err
			}
			ok, err := s.repo.ConfirmHold(ctx, tx, res.ID, now)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			mailWon, err = s.repo.MarkConfirmedEmailSent(ctx, tx, res.ID, now)
			if err != nil {
				return err
			}
			confirmed = *res
			return nil
		})
	})
	if err != nil {
		observability.ReconcileTotal.WithLabelValues(path, reconcileOutcome(err)).Inc()
		return err
	}
	if confirmed.ID == uuid.Nil {
		observability.ReconcileTotal.WithLabelValues(path, "noop").Inc()
		return nil
	}

	observability.ReconcileTotal.WithLabelValues(path, "confirmed").Inc()
	s.audit.LogTransition(ctx, confirmed.ID, confirmed.SessionID, domain.StatusHold, domain.StatusConfirmed, "reconcile-"+path, map[string]interface{}{
		"checkout_session_id": checkoutSessionID,
		"charge_id":           chargeID,
	})

	if mailWon {
		s.sendConfirmedEmail(ctx, confirmed)
	}
	return nil
}

func (s *Service) sendConfirmedEmail(ctx context.Context, res domain.Reservation) {
	res.Status = domain.StatusConfirmed
	customer, err := s.repo.GetCustomer(ctx, s.repo.DB(), res.CustomerID)
	if err != nil {
		s.logger.WithField("reservation_id", res.ID.String()).WithError(err).Warn("load customer for confirmation email")
		return
	}
	if err := s.mailer.ReservationConfirmed(ctx, res, customer); err != nil {
		s.logger.WithField("reservation_id", res.ID.String()).WithError(err).Warn("publish confirmation email")
		if err := s.repo.ClearConfirmedEmailGate(ctx, s.repo.DB(), res.ID); err != nil {
			s.logger.WithField("reservation_id", res.ID.String()).WithError(err).Error("re-arm confirmation email gate")
		}
	}
}

func reconcileOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, domain.ErrNotFound):
		return "unknown_checkout"
	default:
		return "error"
	}
}

// HandleCheckoutExpired applies the oracle's payment-session-expired signal:
// HOLD -> EXPIRED with the pending payment voided. Confirmed reservations
// are never touched.
func (s *Service) HandleCheckoutExpired(ctx context.Context, checkoutSessionID string) error {
	var expired domain.Reservation
	err := s.withRetry(ctx, func() error {
		expired = domain.Reservation{}
		return s.inTx(ctx, func(tx pgx.Tx) error {
			now := time.Now()
			pay, err := s.repo.GetPaymentByCheckoutSession(ctx, tx, checkoutSessionID)
			if err != nil {
				return err
			}
			res, err := s.repo.GetReservation(ctx, tx, pay.ReservationID)
			if err != nil {
				return err
			}
			if res.Status != domain.StatusHold {
				return nil
			}
			ok, err := s.repo.ExpireHold(ctx, tx, res.ID, now)
			if err != nil || !ok {
				return err
			}
			if err := s.repo.CancelPayment(ctx, tx, res.ID, now); err != nil {
				return err
			}
			expired = *res
			return nil
		})
	})
	if err != nil {
		return err
	}
	if expired.ID != uuid.Nil {
		observability.HoldsExpired.Inc()
		s.audit.LogTransition(ctx, expired.ID, expired.SessionID, domain.StatusHold, domain.StatusExpired, "oracle", map[string]interface{}{
			"checkout_session_id": checkoutSessionID,
		})
	}
	return nil
}

type StatusResult struct {
	ReservationStatus domain.Status
	PaymentStatus     domain.PaymentStatus
}

// PaymentStatus serves the client's poll. When the local state is still a
// pending hold it asks the oracle for the authoritative charge status and
// self-heals through the same confirm transition, catching up on missed or
// delayed webhooks. Oracle unavailability degrades to returning local state.
func (s *Service) PaymentStatus(ctx context.Context, checkoutSessionID string) (*StatusResult, error) {
	pay, err := s.repo.GetPaymentByCheckoutSession(ctx, s.repo.DB(), checkoutSessionID)
	if err != nil {
		return nil, err
	}
	res, err := s.repo.GetReservation(ctx, s.repo.DB(), pay.ReservationID)
	if err != nil {
		return nil, err
	}

	if res.Status == domain.StatusHold && pay.Cancellable() {
		cs, err := s.oracle.GetCheckout(ctx, checkoutSessionID)
		if err != nil {
			s.logger.WithField("checkout_session_id", checkoutSessionID).WithError(err).Warn("poll oracle for checkout status")
		} else if cs.Paid {
			if err := s.ConfirmCheckout(ctx, checkoutSessionID, cs.AmountTotal, cs.Currency, cs.ChargeID, PathPull); err != nil {
				return nil, err
			}
			if pay, err = s.repo.GetPaymentByCheckoutSession(ctx, s.repo.DB(), checkoutSessionID); err != nil {
				return nil, err
			}
			if res, err = s.repo.GetReservation(ctx, s.repo.DB(), pay.ReservationID); err != nil {
				return nil, err
			}
		}
	}

	return &StatusResult{ReservationStatus: res.Status, PaymentStatus: pay.Status}, nil
}
