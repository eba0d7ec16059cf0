package pg

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/veloztours/booking-engine/internal/domain"
)

func (r *Repository) GetSession(ctx context.Context, q Querier, id uuid.UUID) (*domain.Session, error) {
	var s domain.Session
	err := q.QueryRow(ctx, `
		SELECT id, experience_name, start_at, booking_closes_at, max_seats_total,
		       max_per_guide, adult_price_cents, minor_price_cents, currency, cancelled
		FROM sessions WHERE id = $1
	`, id).Scan(&s.ID, &s.ExperienceName, &s.StartAt, &s.BookingClosesAt, &s.MaxSeatsTotal,
		&s.MaxPerGuide, &s.AdultPriceCents, &s.MinorPriceCents, &s.Currency, &s.Cancelled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SessionsWithUnnotifiedWaitlist returns the ids of open sessions that have
// at least one WAITING reservation whose availability mail has not been
// sent. An optional filter narrows the scan to a single session.
func (r *Repository) SessionsWithUnnotifiedWaitlist(ctx context.Context, q Querier, now time.Time, filter *uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `
		SELECT DISTINCT s.id
		FROM sessions s
		JOIN reservations res ON res.session_id = s.id
		WHERE NOT s.cancelled
		  AND s.booking_closes_at > $1
		  AND res.status = 'WAITING'
		  AND res.availability_email_sent_at IS NULL
		  AND ($2::uuid IS NULL OR s.id = $2)
	`, now, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
