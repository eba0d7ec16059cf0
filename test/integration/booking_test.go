package integration_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/veloztours/booking-engine/internal/adapters/pg"
	"github.com/veloztours/booking-engine/internal/adapters/rabbit"
	"github.com/veloztours/booking-engine/internal/booking"
	"github.com/veloztours/booking-engine/internal/domain"
	"github.com/veloztours/booking-engine/internal/notify"
	"github.com/veloztours/booking-engine/internal/observability"
	"github.com/veloztours/booking-engine/internal/payments"
	"golang.org/x/sync/errgroup"
)

// fakeOracle keeps checkout sessions in memory so tests can flip them to
// paid and observe expire calls without a real payment provider.
type fakeOracle struct {
	mu       sync.Mutex
	sessions map[string]*payments.CheckoutSession
	expired  []string
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{sessions: make(map[string]*payments.CheckoutSession)}
}

func (o *fakeOracle) CreateCheckout(ctx context.Context, params payments.CreateCheckoutParams) (*payments.CheckoutSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cs := &payments.CheckoutSession{
		ID:          "cs_" + uuid.NewString(),
		URL:         "https://pay.test/" + params.ReservationID.String(),
		AmountTotal: params.AmountCents,
		Currency:    params.Currency,
	}
	o.sessions[cs.ID] = cs
	return cs, nil
}

func (o *fakeOracle) GetCheckout(ctx context.Context, id string) (*payments.CheckoutSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cs, ok := o.sessions[id]
	if !ok {
		return nil, errors.New("unknown checkout session")
	}
	copied := *cs
	return &copied, nil
}

func (o *fakeOracle) ExpireCheckout(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.expired = append(o.expired, id)
	return nil
}

func (o *fakeOracle) markPaid(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cs, ok := o.sessions[id]; ok {
		cs.Paid = true
		cs.ChargeID = "ch_" + id
	}
}

func (o *fakeOracle) expireCalls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.expired...)
}

type env struct {
	repo   *pg.Repository
	pool   *pgxpool.Pool
	oracle *fakeOracle
	mailer notify.Mailer
	logger observability.Logger
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			Env:          map[string]string{"POSTGRES_PASSWORD": "test", "POSTGRES_DB": "booking"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	rabbitContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-management",
			ExposedPorts: []string{"5672/tcp", "15672/tcp"},
			WaitingFor:   wait.ForHTTP("/api/health").WithPort("15672"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rabbitContainer.Terminate(ctx) })

	pgHost, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}
	rabbitHost, err := rabbitContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	rabbitPort, err := rabbitContainer.MappedPort(ctx, "5672")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, "postgresql://postgres:test@"+pgHost+":"+pgPort.Port()+"/booking?sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, pg.Schema); err != nil {
		t.Fatal(err)
	}

	rabbitConn, err := amqp.Dial("amqp://guest:guest@" + rabbitHost + ":" + rabbitPort.Port() + "/")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rabbitConn.Close() })
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		t.Fatal(err)
	}

	return &env{
		repo:   pg.NewRepository(pool),
		pool:   pool,
		oracle: newFakeOracle(),
		mailer: notify.NewEventMailer(rabbitPub),
		logger: observability.NewLogger(),
	}
}

func (e *env) newService(holdTTL time.Duration) *booking.Service {
	return booking.NewService(e.repo, e.oracle, e.mailer, nil, e.logger,
		holdTTL, domain.NewLanguageSet("en", "es"))
}

func (e *env) seedSession(t *testing.T, maxSeats, maxPerGuide int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := e.pool.Exec(context.Background(), `
		INSERT INTO sessions (id, experience_name, start_at, booking_closes_at,
			max_seats_total, max_per_guide, adult_price_cents, minor_price_cents, currency)
		VALUES ($1, 'Old Town Walk', now() + interval '2 day', now() + interval '1 day', $2, $3, 5000, 2500, 'EUR')
	`, id, maxSeats, maxPerGuide)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func (e *env) seedGuide(t *testing.T, languages []string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if languages == nil {
		languages = []string{}
	}
	_, err := e.pool.Exec(context.Background(),
		`INSERT INTO guides (id, name, languages) VALUES ($1, 'Guide', $2)`, id, languages)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func (e *env) checkoutID(t *testing.T, reservationID uuid.UUID) string {
	t.Helper()
	pay, err := e.repo.GetPayment(context.Background(), e.repo.DB(), reservationID)
	if err != nil {
		t.Fatal(err)
	}
	if pay.CheckoutSessionID == nil {
		t.Fatal("expected checkout session attached to payment")
	}
	return *pay.CheckoutSessionID
}

func TestIntegration_CreateConfirmFlow(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	svc := e.newService(30 * time.Minute)

	sessionID := e.seedSession(t, 4, 10)
	e.seedGuide(t, nil)

	// Party of 3 fits the 4-seat session and gets a hold with a checkout.
	held, err := svc.CreateReservation(ctx, booking.CreateRequest{
		SessionID: sessionID,
		Email:     "alice@example.com",
		Name:      "Alice",
		Party:     domain.Party{Adults: 2, Minors: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if held.Kind != domain.StatusHold {
		t.Fatalf("expected HOLD, got %s", held.Kind)
	}
	checkout := e.checkoutID(t, held.ReservationID)

	// Party of 2 does not fit the remaining seat and lands on the waitlist.
	waiting, err := svc.CreateReservation(ctx, booking.CreateRequest{
		SessionID: sessionID,
		Email:     "bob@example.com",
		Party:     domain.Party{Adults: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if waiting.Kind != domain.StatusWaiting {
		t.Fatalf("expected WAITING, got %s", waiting.Kind)
	}

	// An oracle-reported amount that disagrees with server pricing is an
	// integrity failure and must leave the hold untouched.
	err = svc.ConfirmCheckout(ctx, checkout, 1, "EUR", "ch_bad", booking.PathPush)
	if !errors.Is(err, domain.ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
	res, err := e.repo.GetReservation(ctx, e.repo.DB(), held.ReservationID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StatusHold {
		t.Fatalf("expected hold preserved after mismatch, got %s", res.Status)
	}

	// 2 adults + 1 minor at 5000/2500 cents.
	if err := svc.ConfirmCheckout(ctx, checkout, 12500, "eur", "ch_1", booking.PathPush); err != nil {
		t.Fatal(err)
	}
	res, err = e.repo.GetReservation(ctx, e.repo.DB(), held.ReservationID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", res.Status)
	}
	pay, err := e.repo.GetPayment(ctx, e.repo.DB(), held.ReservationID)
	if err != nil {
		t.Fatal(err)
	}
	if pay.Status != domain.PaymentSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", pay.Status)
	}

	// Webhook replays and a late checkout-expired event are no-ops.
	if err := svc.ConfirmCheckout(ctx, checkout, 12500, "EUR", "ch_1", booking.PathPush); err != nil {
		t.Fatal(err)
	}
	if err := svc.HandleCheckoutExpired(ctx, checkout); err != nil {
		t.Fatal(err)
	}
	res, err = e.repo.GetReservation(ctx, e.repo.DB(), held.ReservationID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StatusConfirmed {
		t.Fatalf("expected late events to not revive the state machine, got %s", res.Status)
	}

	status, err := svc.PaymentStatus(ctx, checkout)
	if err != nil {
		t.Fatal(err)
	}
	if status.ReservationStatus != domain.StatusConfirmed || status.PaymentStatus != domain.PaymentSucceeded {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestIntegration_PullReconciliation(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	svc := e.newService(30 * time.Minute)

	sessionID := e.seedSession(t, 4, 10)
	e.seedGuide(t, nil)

	held, err := svc.CreateReservation(ctx, booking.CreateRequest{
		SessionID: sessionID,
		Email:     "carol@example.com",
		Party:     domain.Party{Adults: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	checkout := e.checkoutID(t, held.ReservationID)

	// The webhook never arrives; the customer pays and polls. The poll asks
	// the oracle and self-heals through the same confirm transition.
	e.oracle.markPaid(checkout)

	status, err := svc.PaymentStatus(ctx, checkout)
	if err != nil {
		t.Fatal(err)
	}
	if status.ReservationStatus != domain.StatusConfirmed {
		t.Errorf("expected pull path to confirm, got %s", status.ReservationStatus)
	}
	if status.PaymentStatus != domain.PaymentSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", status.PaymentStatus)
	}
}

func TestIntegration_ConcurrentClaim(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	svc := e.newService(30 * time.Minute)

	// One free seat, two waiting parties of one.
	sessionID := e.seedSession(t, 1, 10)
	e.seedGuide(t, nil)

	var waitingIDs []uuid.UUID
	for _, email := range []string{"w1@example.com", "w2@example.com"} {
		joined, err := svc.JoinWaitlist(ctx, booking.JoinRequest{
			SessionID: sessionID,
			Email:     email,
			Party:     domain.Party{Adults: 1},
		})
		if err != nil {
			t.Fatal(err)
		}
		waitingIDs = append(waitingIDs, joined.ReservationID)
	}

	var mu sync.Mutex
	won := 0
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range waitingIDs {
		id := id
		g.Go(func() error {
			_, err := svc.Claim(gctx, id)
			if err == nil {
				mu.Lock()
				won++
				mu.Unlock()
				return nil
			}
			if errors.Is(err, domain.ErrNoSeats) || errors.Is(err, domain.ErrNoGuide) ||
				errors.Is(err, domain.ErrSerializationFailure) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if won != 1 {
		t.Fatalf("expected exactly one claim to win, got %d", won)
	}

	commitments, err := e.repo.SeatCommitments(ctx, e.repo.DB(), sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if got := booking.CommittedSeats(commitments, time.Now()); got != 1 {
		t.Errorf("expected 1 committed seat, got %d", got)
	}
}

func TestIntegration_SweepAndNotify(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	// Negative TTL makes every hold born lapsed, so the sweep has work.
	lapsedSvc := e.newService(-time.Minute)
	svc := e.newService(30 * time.Minute)

	sessionID := e.seedSession(t, 4, 10)
	e.seedGuide(t, nil)

	held, err := lapsedSvc.CreateReservation(ctx, booking.CreateRequest{
		SessionID: sessionID,
		Email:     "expiring@example.com",
		Party:     domain.Party{Adults: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if held.Kind != domain.StatusHold {
		t.Fatalf("expected HOLD, got %s", held.Kind)
	}
	checkout := e.checkoutID(t, held.ReservationID)

	joined, err := svc.JoinWaitlist(ctx, booking.JoinRequest{
		SessionID: sessionID,
		Email:     "hopeful@example.com",
		Party:     domain.Party{Adults: 2},
	})
	if err != nil {
		t.Fatal(err)
	}

	expired, err := svc.SweepExpiredHolds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired hold, got %d", expired)
	}

	res, err := e.repo.GetReservation(ctx, e.repo.DB(), held.ReservationID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StatusExpired {
		t.Errorf("expected EXPIRED, got %s", res.Status)
	}
	pay, err := e.repo.GetPayment(ctx, e.repo.DB(), held.ReservationID)
	if err != nil {
		t.Fatal(err)
	}
	if pay.Status != domain.PaymentCanceled {
		t.Errorf("expected payment CANCELED, got %s", pay.Status)
	}

	calls := e.oracle.expireCalls()
	if len(calls) != 1 || calls[0] != checkout {
		t.Errorf("expected checkout %q voided at oracle, got %v", checkout, calls)
	}

	// Sweep again: nothing left to expire.
	expired, err = svc.SweepExpiredHolds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if expired != 0 {
		t.Errorf("expected idempotent second sweep, got %d", expired)
	}

	// Freed seats reach the waiting party exactly once.
	report, err := svc.NotifyWaitlist(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Notified != 1 {
		t.Fatalf("expected 1 notification, got %+v", report)
	}
	report, err = svc.NotifyWaitlist(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Notified != 0 {
		t.Errorf("expected no repeat notification, got %+v", report)
	}

	// The notified party claims the freed seats.
	claimed, err := svc.Claim(ctx, joined.ReservationID)
	if err != nil {
		t.Fatal(err)
	}
	if claimed.HoldExpiresAt.Before(time.Now()) {
		t.Error("expected claim to produce a live hold")
	}
}
