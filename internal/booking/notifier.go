package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/veloztours/booking-engine/internal/domain"
	"github.com/veloztours/booking-engine/internal/observability"
)

type NotifyReport struct {
	SessionsChecked int `json:"sessionsChecked"`
	Considered      int `json:"considered"`
	Notified        int `json:"notified"`
}

// PlanNotifications walks the waitlist in arrival order against a virtual
// seat pool: every party that fits is selected and the pool shrinks, so
// earlier joiners get strict priority without creating real holds. A party
// too big for the remainder is skipped, not a stopper.
func PlanNotifications(free int, waiting []domain.Reservation) []domain.Reservation {
	var fit []domain.Reservation
	for _, w := range waiting {
		if w.TotalPax <= free {
			fit = append(fit, w)
			free -= w.TotalPax
		}
	}
	return fit
}

// NotifyWaitlist scans open sessions that have un-notified WAITING parties
// and tells the ones that would fit the current free seats. The one-shot
// availability gate is taken inside the transaction; the mail publish
// happens after commit and re-arms the gate on failure.
func (s *Service) NotifyWaitlist(ctx context.Context, sessionFilter *uuid.UUID) (NotifyReport, error) {
	var report NotifyReport

	sessionIDs, err := s.repo.SessionsWithUnnotifiedWaitlist(ctx, s.repo.DB(), time.Now(), sessionFilter)
	if err != nil {
		return report, err
	}
	report.SessionsChecked = len(sessionIDs)

	for _, sessionID := range sessionIDs {
		var winners []domain.Reservation
		err := s.withRetry(ctx, func() error {
			winners = winners[:0]
			return s.inTx(ctx, func(tx pgx.Tx) error {
				now := time.Now()
				session, err := s.repo.GetSession(ctx, tx, sessionID)
				if err != nil {
					return err
				}
				if !session.BookingOpen(now) {
					return nil
				}

				commitments, err := s.repo.SeatCommitments(ctx, tx, sessionID)
				if err != nil {
					return err
				}
				waiting, err := s.repo.WaitingUnnotified(ctx, tx, sessionID)
				if err != nil {
					return err
				}
				report.Considered += len(waiting)

				for _, w := range PlanNotifications(FreeSeats(*session, commitments, now), waiting) {
					won, err := s.repo.MarkAvailabilityEmailSent(ctx, tx, w.ID, now)
					if err != nil {
						return err
					}
					if won {
						winners = append(winners, w)
					}
				}
				return nil
			})
		})
		if err != nil {
			s.logger.WithField("session_id", sessionID.String()).WithError(err).Error("waitlist notify scan")
			continue
		}

		for _, w := range winners {
			if s.sendAvailabilityEmail(ctx, w) {
				report.Notified++
				observability.WaitlistNotified.Inc()
			}
		}
	}
	return report, nil
}

func (s *Service) sendAvailabilityEmail(ctx context.Context, res domain.Reservation) bool {
	customer, err := s.repo.GetCustomer(ctx, s.repo.DB(), res.CustomerID)
	if err == nil {
		err = s.mailer.SeatsAvailable(ctx, res, customer)
	}
	if err != nil {
		s.logger.WithField("reservation_id", res.ID.String()).WithError(err).Warn("publish availability email")
		if _, err := s.repo.ClearAvailabilityGate(ctx, s.repo.DB(), res.ID); err != nil {
			s.logger.WithField("reservation_id", res.ID.String()).WithError(err).Error("re-arm availability gate")
		}
		return false
	}
	return true
}

// Resubscribe re-arms a waiting party's availability notification after it
// declined or let the opportunity lapse.
func (s *Service) Resubscribe(ctx context.Context, reservationID uuid.UUID) error {
	res, err := s.repo.GetReservation(ctx, s.repo.DB(), reservationID)
	if err != nil {
		return err
	}
	if res.Status != domain.StatusWaiting {
		return domain.ErrNotWaiting
	}
	if _, err := s.repo.ClearAvailabilityGate(ctx, s.repo.DB(), reservationID); err != nil {
		return err
	}
	return nil
}
