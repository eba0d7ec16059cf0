package domain_test

import (
	"testing"
	"time"

	"github.com/veloztours/booking-engine/internal/domain"
)

func TestSessionBookingOpen(t *testing.T) {
	now := time.Now()

	open := domain.Session{BookingClosesAt: now.Add(time.Hour)}
	if !open.BookingOpen(now) {
		t.Error("expected session to be open before close")
	}

	closed := domain.Session{BookingClosesAt: now.Add(-time.Minute)}
	if closed.BookingOpen(now) {
		t.Error("expected session to be closed after close")
	}

	cancelled := domain.Session{BookingClosesAt: now.Add(time.Hour), Cancelled: true}
	if cancelled.BookingOpen(now) {
		t.Error("expected cancelled session to be closed")
	}
}

func TestSessionPriceCents(t *testing.T) {
	s := domain.Session{AdultPriceCents: 5000, MinorPriceCents: 2500}
	if got := s.PriceCents(2, 3); got != 17500 {
		t.Errorf("expected 17500, got %d", got)
	}
	if got := s.PriceCents(1, 0); got != 5000 {
		t.Errorf("expected 5000, got %d", got)
	}
}

func TestPaymentMatches(t *testing.T) {
	p := domain.Payment{AmountCents: 10000, Currency: "EUR"}
	if !p.Matches(10000, "eur") {
		t.Error("expected currency match to be case-insensitive")
	}
	if p.Matches(9999, "EUR") {
		t.Error("expected amount mismatch to fail")
	}
	if p.Matches(10000, "USD") {
		t.Error("expected currency mismatch to fail")
	}
}

func TestPaymentCancellable(t *testing.T) {
	if !(domain.Payment{Status: domain.PaymentPending}).Cancellable() {
		t.Error("expected PENDING to be cancellable")
	}
	if !(domain.Payment{Status: domain.PaymentRequiresPayment}).Cancellable() {
		t.Error("expected REQUIRES_PAYMENT to be cancellable")
	}
	if (domain.Payment{Status: domain.PaymentSucceeded}).Cancellable() {
		t.Error("expected SUCCEEDED to not be cancellable")
	}
}
