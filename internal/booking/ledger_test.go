package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/veloztours/booking-engine/internal/domain"
)

func TestCommittedSeats(t *testing.T) {
	now := time.Now()
	future := now.Add(10 * time.Minute)
	past := now.Add(-time.Minute)

	rows := []domain.Commitment{
		{Status: domain.StatusConfirmed, TotalPax: 4},
		{Status: domain.StatusHold, HoldExpiresAt: &future, TotalPax: 3},
		{Status: domain.StatusHold, HoldExpiresAt: &past, TotalPax: 5},
		{Status: domain.StatusWaiting, TotalPax: 2},
	}

	if got := CommittedSeats(rows, now); got != 7 {
		t.Errorf("expected 7 committed seats, got %d", got)
	}

	// The same lapsed hold counts again when asked about an earlier instant.
	if got := CommittedSeats(rows, now.Add(-2*time.Minute)); got != 12 {
		t.Errorf("expected 12 committed seats before the hold lapsed, got %d", got)
	}
}

func TestFreeSeats(t *testing.T) {
	now := time.Now()
	future := now.Add(10 * time.Minute)
	session := domain.Session{MaxSeatsTotal: 10}

	rows := []domain.Commitment{
		{Status: domain.StatusConfirmed, TotalPax: 6},
		{Status: domain.StatusHold, HoldExpiresAt: &future, TotalPax: 3},
	}
	if got := FreeSeats(session, rows, now); got != 1 {
		t.Errorf("expected 1 free seat, got %d", got)
	}

	if got := FreeSeats(session, nil, now); got != 10 {
		t.Errorf("expected empty session to be fully free, got %d", got)
	}

	// Admin capacity cuts can leave sessions oversubscribed; free never goes
	// negative.
	small := domain.Session{MaxSeatsTotal: 4}
	if got := FreeSeats(small, rows, now); got != 0 {
		t.Errorf("expected oversubscribed session to report 0 free, got %d", got)
	}
}

func TestGuideLoads(t *testing.T) {
	now := time.Now()
	future := now.Add(10 * time.Minute)
	past := now.Add(-time.Minute)
	g1 := uuid.New()
	g2 := uuid.New()

	rows := []domain.Commitment{
		{Status: domain.StatusConfirmed, TotalPax: 2, GuideUserID: &g1},
		{Status: domain.StatusHold, HoldExpiresAt: &future, TotalPax: 3, GuideUserID: &g1},
		{Status: domain.StatusHold, HoldExpiresAt: &past, TotalPax: 4, GuideUserID: &g2},
		{Status: domain.StatusWaiting, TotalPax: 2},
	}

	loads := GuideLoads(rows, now)
	if loads[g1] != 5 {
		t.Errorf("expected guide1 load 5, got %d", loads[g1])
	}
	if loads[g2] != 0 {
		t.Errorf("expected guide2 load 0 after hold lapsed, got %d", loads[g2])
	}
}
