package booking

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/veloztours/booking-engine/internal/adapters/pg"
	"github.com/veloztours/booking-engine/internal/domain"
	"github.com/veloztours/booking-engine/internal/observability"
	"golang.org/x/sync/errgroup"
)

// SweepExpiredHolds force-expires every hold whose deadline has passed and
// voids its pending payment, in one transaction. Running it again with no
// new expirations is a no-op. Returns the number of reservations expired.
func (s *Service) SweepExpiredHolds(ctx context.Context) (int, error) {
	var expired []pg.ExpiredHold
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		expired, err = s.repo.ExpireDueHolds(ctx, tx, time.Now())
		return err
	})
	if err != nil {
		return 0, err
	}

	observability.HoldsExpired.Add(float64(len(expired)))
	for _, e := range expired {
		s.audit.LogTransition(ctx, e.ReservationID, e.SessionID, domain.StatusHold, domain.StatusExpired, "sweeper", nil)
	}

	// Best-effort: void the checkout sessions at the oracle so lapsed
	// payment pages stop accepting money. The sweep already committed;
	// oracle failures are logged and left for the next run of the oracle's
	// own expiry.
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range expired {
		e := e
		if e.CheckoutSessionID == nil {
			continue
		}
		g.Go(func() error {
			if err := s.oracle.ExpireCheckout(gctx, *e.CheckoutSessionID); err != nil {
				s.logger.WithField("checkout_session_id", *e.CheckoutSessionID).WithError(err).Warn("expire checkout at oracle")
			}
			return nil
		})
	}
	_ = g.Wait()

	return len(expired), nil
}
