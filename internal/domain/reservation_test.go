package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/veloztours/booking-engine/internal/domain"
)

func TestCanTransition(t *testing.T) {
	if !domain.CanTransition(domain.StatusWaiting, domain.StatusHold) {
		t.Error("expected WAITING -> HOLD to be legal")
	}
	if !domain.CanTransition(domain.StatusHold, domain.StatusConfirmed) {
		t.Error("expected HOLD -> CONFIRMED to be legal")
	}
	if !domain.CanTransition(domain.StatusHold, domain.StatusExpired) {
		t.Error("expected HOLD -> EXPIRED to be legal")
	}

	if domain.CanTransition(domain.StatusExpired, domain.StatusConfirmed) {
		t.Error("expected EXPIRED to be terminal, got edge to CONFIRMED")
	}
	if domain.CanTransition(domain.StatusConfirmed, domain.StatusExpired) {
		t.Error("expected CONFIRMED to be terminal, got edge to EXPIRED")
	}
	if domain.CanTransition(domain.StatusCancelled, domain.StatusHold) {
		t.Error("expected CANCELLED to be terminal, got edge to HOLD")
	}
	if domain.CanTransition(domain.StatusWaiting, domain.StatusConfirmed) {
		t.Error("expected WAITING to reach CONFIRMED only through HOLD")
	}
}

func TestCheckTransition(t *testing.T) {
	if err := domain.CheckTransition(domain.StatusWaiting, domain.StatusHold); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	err := domain.CheckTransition(domain.StatusExpired, domain.StatusConfirmed)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestPartyValidate(t *testing.T) {
	if err := (domain.Party{Adults: 2, Minors: 1}).Validate(); err != nil {
		t.Fatalf("expected valid party, got %v", err)
	}
	if err := (domain.Party{Adults: 0, Minors: 3}).Validate(); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for zero adults, got %v", err)
	}
	if err := (domain.Party{Adults: 1, Minors: -1}).Validate(); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative minors, got %v", err)
	}

	if got := (domain.Party{Adults: 2, Minors: 3}).TotalPax(); got != 5 {
		t.Errorf("expected total pax 5, got %d", got)
	}
}

func TestHoldLive(t *testing.T) {
	now := time.Now()
	future := now.Add(10 * time.Minute)
	past := now.Add(-time.Minute)

	live := domain.Reservation{Status: domain.StatusHold, HoldExpiresAt: &future}
	if !live.HoldLive(now) {
		t.Error("expected hold with future expiry to be live")
	}

	lapsed := domain.Reservation{Status: domain.StatusHold, HoldExpiresAt: &past}
	if lapsed.HoldLive(now) {
		t.Error("expected hold past expiry to be dead")
	}

	// Expiry at exactly now is lapsed, not live.
	edge := domain.Reservation{Status: domain.StatusHold, HoldExpiresAt: &now}
	if edge.HoldLive(now) {
		t.Error("expected hold expiring at now to be dead")
	}

	confirmed := domain.Reservation{Status: domain.StatusConfirmed}
	if confirmed.HoldLive(now) {
		t.Error("expected non-hold status to not be a live hold")
	}
}

func TestCommitmentCounts(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	if !(domain.Commitment{Status: domain.StatusConfirmed, TotalPax: 2}).Counts(now) {
		t.Error("expected confirmed row to count")
	}
	if !(domain.Commitment{Status: domain.StatusHold, HoldExpiresAt: &future}).Counts(now) {
		t.Error("expected live hold to count")
	}
	if (domain.Commitment{Status: domain.StatusHold, HoldExpiresAt: &past}).Counts(now) {
		t.Error("expected lapsed hold to stop counting")
	}
	if (domain.Commitment{Status: domain.StatusWaiting}).Counts(now) {
		t.Error("expected waiting row to never count")
	}
	if (domain.Commitment{Status: domain.StatusExpired}).Counts(now) {
		t.Error("expected expired row to never count")
	}
}

func TestNewHold(t *testing.T) {
	now := time.Now()
	sessionID := uuid.New()
	customerID := uuid.New()
	guideID := uuid.New()
	lang := "fr"

	res := domain.NewHold(sessionID, customerID, domain.Party{Adults: 2, Minors: 1}, guideID, &lang, 30*time.Minute, now)

	if res.Status != domain.StatusHold {
		t.Errorf("expected HOLD, got %s", res.Status)
	}
	if res.TotalPax != 3 {
		t.Errorf("expected total pax 3, got %d", res.TotalPax)
	}
	if res.HoldExpiresAt == nil || !res.HoldExpiresAt.Equal(now.Add(30*time.Minute)) {
		t.Errorf("expected expiry at now+ttl, got %v", res.HoldExpiresAt)
	}
	if res.GuideUserID == nil || *res.GuideUserID != guideID {
		t.Errorf("expected guide %s, got %v", guideID, res.GuideUserID)
	}
	if !res.HoldLive(now) {
		t.Error("expected fresh hold to be live")
	}
}

func TestNewWaiting(t *testing.T) {
	now := time.Now()
	res := domain.NewWaiting(uuid.New(), uuid.New(), domain.Party{Adults: 1, Minors: 0}, nil, now)

	if res.Status != domain.StatusWaiting {
		t.Errorf("expected WAITING, got %s", res.Status)
	}
	if res.HoldExpiresAt != nil {
		t.Error("expected waiting reservation to carry no expiry")
	}
	if res.GuideUserID != nil {
		t.Error("expected waiting reservation to carry no guide")
	}
}
