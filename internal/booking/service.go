package booking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/veloztours/booking-engine/internal/adapters/pg"
	"github.com/veloztours/booking-engine/internal/domain"
	"github.com/veloztours/booking-engine/internal/notify"
	"github.com/veloztours/booking-engine/internal/observability"
	"github.com/veloztours/booking-engine/internal/payments"
)

// maxTxAttempts bounds the optimistic retry on serialization conflicts.
const maxTxAttempts = 3

// Auditor records lifecycle transitions in a side store, best-effort.
type Auditor interface {
	LogTransition(ctx context.Context, reservationID, sessionID uuid.UUID, from, to domain.Status, actor string, data map[string]interface{})
}

type nopAuditor struct{}

func (nopAuditor) LogTransition(context.Context, uuid.UUID, uuid.UUID, domain.Status, domain.Status, string, map[string]interface{}) {
}

// NopAuditor is used when no audit store is configured.
var NopAuditor Auditor = nopAuditor{}

// Service owns the reservation lifecycle. It is the sole writer of
// reservation status and hold deadlines; every seat-affecting decision runs
// inside a serializable transaction that recomputes the capacity ledger.
type Service struct {
	repo      *pg.Repository
	oracle    payments.Oracle
	mailer    notify.Mailer
	audit     Auditor
	logger    observability.Logger
	holdTTL   time.Duration
	baseLangs domain.LanguageSet
}

func NewService(repo *pg.Repository, oracle payments.Oracle, mailer notify.Mailer, audit Auditor, logger observability.Logger, holdTTL time.Duration, baseLangs domain.LanguageSet) *Service {
	if audit == nil {
		audit = NopAuditor
	}
	return &Service{
		repo:      repo,
		oracle:    oracle,
		mailer:    mailer,
		audit:     audit,
		logger:    logger,
		holdTTL:   holdTTL,
		baseLangs: baseLangs,
	}
}

func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()
	return s.repo.WithTx(ctx, fn)
}

// withRetry reruns fn on serialization conflicts, the optimistic answer to
// concurrent writers racing for the same seats.
func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		if err = fn(); !errors.Is(err, domain.ErrSerializationFailure) {
			return err
		}
		observability.SerializationRetries.Inc()
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

type CreateRequest struct {
	SessionID uuid.UUID
	Email     string
	Name      string
	Phone     string
	Party     domain.Party
	Language  *string
}

func (r CreateRequest) Validate() error {
	if r.SessionID == uuid.Nil {
		return errors.Wrap(domain.ErrInvalidInput, "session_id required")
	}
	if r.Email == "" {
		return errors.Wrap(domain.ErrInvalidInput, "email required")
	}
	return r.Party.Validate()
}

type CreateResult struct {
	Kind          domain.Status
	ReservationID uuid.UUID
	HoldExpiresAt *time.Time
}

// CreateReservation allocates a hold when the party fits and a guide has
// room, and parks the party on the waitlist otherwise. Capacity and guide
// load are recomputed inside the same transaction that writes the row.
func (s *Service) CreateReservation(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		res      domain.Reservation
		customer domain.Customer
	)
	err := s.withRetry(ctx, func() error {
		return s.inTx(ctx, func(tx pgx.Tx) error {
			now := time.Now()
			session, err := s.repo.GetSession(ctx, tx, req.SessionID)
			if err != nil {
				return err
			}
			if session.Cancelled {
				return domain.ErrSessionCancelled
			}
			if !session.BookingOpen(now) {
				return domain.ErrBookingClosed
			}

			customer, err = s.repo.UpsertCustomer(ctx, tx, req.Email, req.Name, req.Phone)
			if err != nil {
				return err
			}

			commitments, err := s.repo.SeatCommitments(ctx, tx, session.ID)
			if err != nil {
				return err
			}

			res = domain.Reservation{}
			if FreeSeats(*session, commitments, now) >= req.Party.TotalPax() {
				guides, err := s.repo.ActiveGuides(ctx, tx)
				if err != nil {
					return err
				}
				loads := GuideLoads(commitments, now)
				if guideID := PickGuide(*session, guides, loads, req.Party.TotalPax(), req.Language, s.baseLangs); guideID != nil {
					res = domain.NewHold(session.ID, customer.ID, req.Party, *guideID, req.Language, s.holdTTL, now)
				}
			}
			if res.ID == uuid.Nil {
				res = domain.NewWaiting(session.ID, customer.ID, req.Party, req.Language, now)
			}

			if err := s.repo.InsertReservation(ctx, tx, res); err != nil {
				return err
			}
			if res.Status == domain.StatusHold {
				return s.repo.UpsertPayment(ctx, tx, domain.Payment{
					ReservationID: res.ID,
					Status:        domain.PaymentRequiresPayment,
					AmountCents:   session.PriceCents(req.Party.Adults, req.Party.Minors),
					Currency:      session.Currency,
					UpdatedAt:     now,
				})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	observability.ReservationsCreated.WithLabelValues(string(res.Status)).Inc()
	s.audit.LogTransition(ctx, res.ID, res.SessionID, "", res.Status, "create", map[string]interface{}{
		"total_pax": res.TotalPax,
	})

	if res.Status == domain.StatusHold {
		s.createCheckout(ctx, res, customer)
	}
	s.sendCreatedEmail(ctx, res, customer)

	return &CreateResult{Kind: res.Status, ReservationID: res.ID, HoldExpiresAt: res.HoldExpiresAt}, nil
}

// createCheckout opens the external payment session after the hold
// committed. Best-effort: the hold stands even if the oracle is down, and
// the payment stays REQUIRES_PAYMENT until a later retry attaches one.
func (s *Service) createCheckout(ctx context.Context, res domain.Reservation, customer domain.Customer) {
	pay, err := s.repo.GetPayment(ctx, s.repo.DB(), res.ID)
	if err != nil {
		s.logger.WithField("reservation_id", res.ID.String()).WithError(err).Warn("load payment for checkout")
		return
	}
	expiresAt := time.Now().Add(s.holdTTL)
	if res.HoldExpiresAt != nil {
		expiresAt = *res.HoldExpiresAt
	}
	cs, err := s.oracle.CreateCheckout(ctx, payments.CreateCheckoutParams{
		ReservationID: res.ID,
		AmountCents:   pay.AmountCents,
		Currency:      pay.Currency,
		CustomerEmail: customer.Email,
		ExpiresAt:     expiresAt,
	})
	if err != nil {
		s.logger.WithField("reservation_id", res.ID.String()).WithError(err).Warn("create checkout at oracle")
		return
	}
	if err := s.repo.AttachCheckoutSession(ctx, s.repo.DB(), res.ID, cs.ID, time.Now()); err != nil {
		s.logger.WithField("reservation_id", res.ID.String()).WithError(err).Error("attach checkout session")
	}
}

// sendCreatedEmail fires the one-shot creation notice. The conditional gate
// makes retried requests send at most one mail; a failed publish re-arms it.
func (s *Service) sendCreatedEmail(ctx context.Context, res domain.Reservation, customer domain.Customer) {
	won, err := s.repo.MarkCreatedEmailSent(ctx, s.repo.DB(), res.ID, time.Now())
	if err != nil || !won {
		return
	}
	if err := s.mailer.ReservationCreated(ctx, res, customer); err != nil {
		s.logger.WithField("reservation_id", res.ID.String()).WithError(err).Warn("publish created email")
		if err := s.repo.ClearCreatedEmailGate(ctx, s.repo.DB(), res.ID); err != nil {
			s.logger.WithField("reservation_id", res.ID.String()).WithError(err).Error("re-arm created email gate")
		}
	}
}

type JoinRequest struct {
	SessionID uuid.UUID
	Email     string
	Name      string
	Phone     string
	Party     domain.Party
	Language  *string
}

type JoinResult struct {
	ReservationID uuid.UUID
	Reused        bool
}

// JoinWaitlist creates a WAITING reservation, idempotently keyed by
// (session, customer): a repeated join returns the existing entry. A
// customer who already holds or confirmed a seat gets a conflict instead.
func (s *Service) JoinWaitlist(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	if err := (CreateRequest{SessionID: req.SessionID, Email: req.Email, Party: req.Party}).Validate(); err != nil {
		return nil, err
	}

	var result JoinResult
	err := s.withRetry(ctx, func() error {
		return s.inTx(ctx, func(tx pgx.Tx) error {
			now := time.Now()
			session, err := s.repo.GetSession(ctx, tx, req.SessionID)
			if err != nil {
				return err
			}
			if session.Cancelled {
				return domain.ErrSessionCancelled
			}
			if !session.BookingOpen(now) {
				return domain.ErrBookingClosed
			}

			customer, err := s.repo.UpsertCustomer(ctx, tx, req.Email, req.Name, req.Phone)
			if err != nil {
				return err
			}

			existing, err := s.repo.GetReservationBySessionCustomer(ctx, tx, session.ID, customer.ID)
			if err == nil {
				if existing.Status != domain.StatusWaiting {
					return domain.ErrDuplicateReservation
				}
				result = JoinResult{ReservationID: existing.ID, Reused: true}
				return nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}

			res := domain.NewWaiting(session.ID, customer.ID, req.Party, req.Language, now)
			if err := s.repo.InsertReservation(ctx, tx, res); err != nil {
				return err
			}
			result = JoinResult{ReservationID: res.ID}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if !result.Reused {
		observability.ReservationsCreated.WithLabelValues(string(domain.StatusWaiting)).Inc()
	}
	return &result, nil
}

type ClaimResult struct {
	ReservationID uuid.UUID
	HoldExpiresAt time.Time
}

// Claim promotes one WAITING reservation to HOLD. It runs serializable with
// a bounded retry because several waiting parties may race for the same
// freed seats; the conditional status update decides the winner, and a
// zero-row update means somebody else got there first.
func (s *Service) Claim(ctx context.Context, reservationID uuid.UUID) (*ClaimResult, error) {
	var (
		claimed  domain.Reservation
		customer domain.Customer
	)
	err := s.withRetry(ctx, func() error {
		return s.inTx(ctx, func(tx pgx.Tx) error {
			now := time.Now()
			res, err := s.repo.GetReservation(ctx, tx, reservationID)
			if err != nil {
				return err
			}
			if res.Status != domain.StatusWaiting {
				return domain.ErrNotWaiting
			}

			session, err := s.repo.GetSession(ctx, tx, res.SessionID)
			if err != nil {
				return err
			}
			if session.Cancelled {
				return domain.ErrSessionCancelled
			}
			if !session.BookingOpen(now) {
				return domain.ErrBookingClosed
			}

			commitments, err := s.repo.SeatCommitments(ctx, tx, session.ID)
			if err != nil {
				return err
			}
			if FreeSeats(*session, commitments, now) < res.TotalPax {
				return domain.ErrNoSeats
			}

			guides, err := s.repo.ActiveGuides(ctx, tx)
			if err != nil {
				return err
			}
			guideID := PickGuide(*session, guides, GuideLoads(commitments, now), res.TotalPax, res.TourLanguage, s.baseLangs)
			if guideID == nil {
				return domain.ErrNoGuide
			}

			if err := domain.CheckTransition(res.Status, domain.StatusHold); err != nil {
				return err
			}
			expiresAt := now.Add(s.holdTTL)
			ok, err := s.repo.ClaimWaiting(ctx, tx, res.ID, *guideID, expiresAt, now)
			if err != nil {
				return err
			}
			if !ok {
				// Lost the race to a concurrent claim or cleanup.
				return domain.ErrNoSeats
			}

			if err := s.repo.UpsertPayment(ctx, tx, domain.Payment{
				ReservationID: res.ID,
				Status:        domain.PaymentRequiresPayment,
				AmountCents:   session.PriceCents(res.AdultsCount, res.MinorsCount),
				Currency:      session.Currency,
				UpdatedAt:     now,
			}); err != nil {
				return err
			}

			claimed = *res
			claimed.Status = domain.StatusHold
			claimed.HoldExpiresAt = &expiresAt
			claimed.GuideUserID = guideID
			customer, err = s.repo.GetCustomer(ctx, tx, res.CustomerID)
			return err
		})
	})
	if err != nil {
		observability.ClaimsTotal.WithLabelValues(claimOutcome(err)).Inc()
		return nil, err
	}

	observability.ClaimsTotal.WithLabelValues("won").Inc()
	s.audit.LogTransition(ctx, claimed.ID, claimed.SessionID, domain.StatusWaiting, domain.StatusHold, "claim", nil)
	s.createCheckout(ctx, claimed, customer)

	return &ClaimResult{ReservationID: claimed.ID, HoldExpiresAt: *claimed.HoldExpiresAt}, nil
}

func claimOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoSeats):
		return "no_seats"
	case errors.Is(err, domain.ErrNoGuide):
		return "no_guide"
	case errors.Is(err, domain.ErrNotWaiting):
		return "not_waiting"
	case errors.Is(err, domain.ErrBookingClosed), errors.Is(err, domain.ErrSessionCancelled):
		return "closed"
	default:
		return "error"
	}
}

type DetailUpdate struct {
	Name     string
	Phone    string
	Language *string
}

// UpdateHoldDetails lets the customer fill in contact details and tour
// language, but only while the hold is alive. The conditional update on the
// reservation row asserts that; anything else is rejected.
func (s *Service) UpdateHoldDetails(ctx context.Context, reservationID uuid.UUID, upd DetailUpdate) error {
	return s.withRetry(ctx, func() error {
		return s.inTx(ctx, func(tx pgx.Tx) error {
			now := time.Now()
			res, err := s.repo.GetReservation(ctx, tx, reservationID)
			if err != nil {
				return err
			}
			ok, err := s.repo.UpdateHoldDetails(ctx, tx, res.ID, upd.Language, now)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrNotHold
			}
			return s.repo.UpdateCustomerContact(ctx, tx, res.CustomerID, upd.Name, upd.Phone)
		})
	})
}
