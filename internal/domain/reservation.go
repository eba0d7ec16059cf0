package domain

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

type Status string

const (
	StatusHold      Status = "HOLD"
	StatusWaiting   Status = "WAITING"
	StatusConfirmed Status = "CONFIRMED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// transitions lists every legal status edge. CONFIRMED, EXPIRED and
// CANCELLED are terminal: a late webhook can never revive them. CANCELLED
// rows are written by admin tooling outside this core, so no edge leads
// there from within.
var transitions = map[Status][]Status{
	StatusWaiting: {StatusHold},
	StatusHold:    {StatusConfirmed, StatusExpired},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition fails closed on any edge not in the table.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
	}
	return nil
}

// Party is the adults+minors group behind one reservation.
type Party struct {
	Adults int
	Minors int
}

func (p Party) TotalPax() int { return p.Adults + p.Minors }

func (p Party) Validate() error {
	if p.Adults < 1 {
		return errors.Wrap(ErrInvalidInput, "at least one adult required")
	}
	if p.Minors < 0 {
		return errors.Wrap(ErrInvalidInput, "minors must be non-negative")
	}
	return nil
}

// Reservation is one customer-party's claim on a session. Status and
// HoldExpiresAt are owned by the lifecycle state machine; every persisted
// transition is guarded by a conditional update on the source status.
type Reservation struct {
	ID           uuid.UUID
	SessionID    uuid.UUID
	CustomerID   uuid.UUID
	Status       Status
	HoldExpiresAt *time.Time
	AdultsCount  int
	MinorsCount  int
	TotalPax     int
	GuideUserID  *uuid.UUID
	TourLanguage *string

	// One-shot notification gates, set via conditional set-if-unset updates.
	CreatedEmailSentAt      *time.Time
	ConfirmedEmailSentAt    *time.Time
	AvailabilityEmailSentAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r Reservation) Party() Party {
	return Party{Adults: r.AdultsCount, Minors: r.MinorsCount}
}

// HoldLive reports whether the reservation is a hold whose payment window
// has not lapsed. Expiry is detected lazily against now; the sweeper only
// persists it eventually.
func (r Reservation) HoldLive(now time.Time) bool {
	return r.Status == StatusHold && r.HoldExpiresAt != nil && r.HoldExpiresAt.After(now)
}

// Commitment is one live reservation row's claim on a session's seat pool,
// loaded fresh inside the deciding transaction. The capacity ledger is
// computed from these rows, never from a stored counter.
type Commitment struct {
	Status        Status
	HoldExpiresAt *time.Time
	TotalPax      int
	GuideUserID   *uuid.UUID
}

// Counts reports whether the row occupies seats at instant now: confirmed
// rows always do, holds only until their expiry instant.
func (c Commitment) Counts(now time.Time) bool {
	switch c.Status {
	case StatusConfirmed:
		return true
	case StatusHold:
		return c.HoldExpiresAt != nil && c.HoldExpiresAt.After(now)
	}
	return false
}

func NewHold(sessionID, customerID uuid.UUID, party Party, guideID uuid.UUID, lang *string, ttl time.Duration, now time.Time) Reservation {
	expires := now.Add(ttl)
	return Reservation{
		ID:            uuid.New(),
		SessionID:     sessionID,
		CustomerID:    customerID,
		Status:        StatusHold,
		HoldExpiresAt: &expires,
		AdultsCount:   party.Adults,
		MinorsCount:   party.Minors,
		TotalPax:      party.TotalPax(),
		GuideUserID:   &guideID,
		TourLanguage:  lang,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func NewWaiting(sessionID, customerID uuid.UUID, party Party, lang *string, now time.Time) Reservation {
	return Reservation{
		ID:           uuid.New(),
		SessionID:    sessionID,
		CustomerID:   customerID,
		Status:       StatusWaiting,
		AdultsCount:  party.Adults,
		MinorsCount:  party.Minors,
		TotalPax:     party.TotalPax(),
		TourLanguage: lang,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
