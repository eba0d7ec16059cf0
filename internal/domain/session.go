package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is a bookable time slot of an experience. The reservation core
// treats it as read-only; admin tooling owns creation and cancellation.
type Session struct {
	ID              uuid.UUID
	ExperienceName  string
	StartAt         time.Time
	BookingClosesAt time.Time
	MaxSeatsTotal   int
	MaxPerGuide     int
	AdultPriceCents int64
	MinorPriceCents int64
	Currency        string
	Cancelled       bool
}

func (s Session) BookingOpen(now time.Time) bool {
	return !s.Cancelled && now.Before(s.BookingClosesAt)
}

// PriceCents is the server-side source of truth for what a party owes.
// Oracle-reported amounts must match it before a charge is trusted.
func (s Session) PriceCents(adults, minors int) int64 {
	return int64(adults)*s.AdultPriceCents + int64(minors)*s.MinorPriceCents
}
