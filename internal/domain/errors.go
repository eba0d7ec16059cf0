package domain

import "github.com/cockroachdb/errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")

	ErrNoSeats              = errors.New("no seats available")
	ErrNoGuide              = errors.New("no guide available")
	ErrNotWaiting           = errors.New("reservation is not waiting")
	ErrNotHold              = errors.New("reservation is not an active hold")
	ErrBookingClosed        = errors.New("booking closed")
	ErrSessionCancelled     = errors.New("session cancelled")
	ErrDuplicateReservation = errors.New("customer already has a reservation for this session")
	ErrInvalidTransition    = errors.New("illegal status transition")

	// ErrAmountMismatch means the payment oracle reported a charge that does
	// not match the server-computed total. Never silently accepted.
	ErrAmountMismatch = errors.New("charge does not match server-side amount")
)
