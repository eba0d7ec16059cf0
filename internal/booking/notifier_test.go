package booking

import (
	"testing"

	"github.com/veloztours/booking-engine/internal/domain"
)

func TestPlanNotifications(t *testing.T) {
	waiting := []domain.Reservation{
		{TotalPax: 4},
		{TotalPax: 3},
		{TotalPax: 2},
	}

	fit := PlanNotifications(6, waiting)
	if len(fit) != 2 {
		t.Fatalf("expected 2 parties to fit, got %d", len(fit))
	}
	// The 4-pax party takes the pool to 2, the 3-pax party is skipped rather
	// than blocking, and the 2-pax party behind it still fits.
	if fit[0].TotalPax != 4 || fit[1].TotalPax != 2 {
		t.Errorf("expected parties of 4 and 2, got %d and %d", fit[0].TotalPax, fit[1].TotalPax)
	}
}

func TestPlanNotifications_NoSeats(t *testing.T) {
	waiting := []domain.Reservation{{TotalPax: 1}}
	if fit := PlanNotifications(0, waiting); len(fit) != 0 {
		t.Errorf("expected nobody to fit with no free seats, got %d", len(fit))
	}
}

func TestPlanNotifications_ArrivalOrderPriority(t *testing.T) {
	waiting := []domain.Reservation{
		{TotalPax: 2},
		{TotalPax: 2},
		{TotalPax: 2},
	}

	fit := PlanNotifications(4, waiting)
	if len(fit) != 2 {
		t.Fatalf("expected exactly the first 2 parties, got %d", len(fit))
	}
}
