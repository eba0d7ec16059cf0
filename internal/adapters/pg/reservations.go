package pg

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/veloztours/booking-engine/internal/domain"
)

const reservationColumns = `
	id, session_id, customer_id, status, hold_expires_at,
	adults_count, minors_count, total_pax, guide_user_id, tour_language,
	created_email_sent_at, confirmed_email_sent_at, availability_email_sent_at,
	created_at, updated_at`

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	var status string
	err := row.Scan(&res.ID, &res.SessionID, &res.CustomerID, &status, &res.HoldExpiresAt,
		&res.AdultsCount, &res.MinorsCount, &res.TotalPax, &res.GuideUserID, &res.TourLanguage,
		&res.CreatedEmailSentAt, &res.ConfirmedEmailSentAt, &res.AvailabilityEmailSentAt,
		&res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	res.Status = domain.Status(status)
	return &res, nil
}

func (r *Repository) GetReservation(ctx context.Context, q Querier, id uuid.UUID) (*domain.Reservation, error) {
	return scanReservation(q.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id))
}

func (r *Repository) GetReservationBySessionCustomer(ctx context.Context, q Querier, sessionID, customerID uuid.UUID) (*domain.Reservation, error) {
	return scanReservation(q.QueryRow(ctx, `
		SELECT `+reservationColumns+` FROM reservations WHERE session_id = $1 AND customer_id = $2
	`, sessionID, customerID))
}

func (r *Repository) InsertReservation(ctx context.Context, q Querier, res domain.Reservation) error {
	_, err := q.Exec(ctx, `
		INSERT INTO reservations (
			id, session_id, customer_id, status, hold_expires_at,
			adults_count, minors_count, total_pax, guide_user_id, tour_language,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, res.ID, res.SessionID, res.CustomerID, string(res.Status), res.HoldExpiresAt,
		res.AdultsCount, res.MinorsCount, res.TotalPax, res.GuideUserID, res.TourLanguage,
		res.CreatedAt, res.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return domain.ErrDuplicateReservation
	}
	return err
}

// SeatCommitments loads the rows that can occupy seats for a session. Must
// be called inside the transaction that makes the allocation decision so
// the ledger is never computed from stale state.
func (r *Repository) SeatCommitments(ctx context.Context, q Querier, sessionID uuid.UUID) ([]domain.Commitment, error) {
	rows, err := q.Query(ctx, `
		SELECT status, hold_expires_at, total_pax, guide_user_id
		FROM reservations
		WHERE session_id = $1 AND status IN ('HOLD', 'CONFIRMED')
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commitments []domain.Commitment
	for rows.Next() {
		var c domain.Commitment
		var status string
		if err := rows.Scan(&status, &c.HoldExpiresAt, &c.TotalPax, &c.GuideUserID); err != nil {
			return nil, err
		}
		c.Status = domain.Status(status)
		commitments = append(commitments, c)
	}
	return commitments, rows.Err()
}

// ClaimWaiting promotes WAITING -> HOLD only if the row is still WAITING.
// Zero rows affected means another claim or cleanup got there first.
func (r *Repository) ClaimWaiting(ctx context.Context, q Querier, id, guideID uuid.UUID, expiresAt, now time.Time) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE reservations
		SET status = 'HOLD', hold_expires_at = $2, guide_user_id = $3, updated_at = $4
		WHERE id = $1 AND status = 'WAITING'
	`, id, expiresAt, guideID, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ConfirmHold transitions HOLD -> CONFIRMED and clears the hold timer.
func (r *Repository) ConfirmHold(ctx context.Context, q Querier, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE reservations
		SET status = 'CONFIRMED', hold_expires_at = NULL, updated_at = $2
		WHERE id = $1 AND status = 'HOLD'
	`, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireHold force-expires a single hold, used by the oracle's
// checkout-expired signal. Confirmed reservations are never touched.
func (r *Repository) ExpireHold(ctx context.Context, q Querier, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE reservations SET status = 'EXPIRED', updated_at = $2
		WHERE id = $1 AND status = 'HOLD'
	`, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ExpiredHold pairs a force-expired reservation with the checkout session
// the sweeper should void at the oracle.
type ExpiredHold struct {
	ReservationID     uuid.UUID
	SessionID         uuid.UUID
	CheckoutSessionID *string
}

// ExpireDueHolds bulk-transitions every lapsed hold to EXPIRED and voids
// its pending payment, all in the caller's transaction. Idempotent: a
// second run with no new expirations matches nothing.
func (r *Repository) ExpireDueHolds(ctx context.Context, q Querier, now time.Time) ([]ExpiredHold, error) {
	rows, err := q.Query(ctx, `
		WITH expired AS (
			UPDATE reservations
			SET status = 'EXPIRED', updated_at = $1
			WHERE status = 'HOLD' AND hold_expires_at < $1
			RETURNING id, session_id
		), voided AS (
			UPDATE payments
			SET status = 'CANCELED', updated_at = $1
			WHERE reservation_id IN (SELECT id FROM expired)
			  AND status IN ('PENDING', 'REQUIRES_PAYMENT')
		)
		SELECT e.id, e.session_id, p.checkout_session_id
		FROM expired e
		LEFT JOIN payments p ON p.reservation_id = e.id
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []ExpiredHold
	for rows.Next() {
		var e ExpiredHold
		if err := rows.Scan(&e.ReservationID, &e.SessionID, &e.CheckoutSessionID); err != nil {
			return nil, err
		}
		expired = append(expired, e)
	}
	return expired, rows.Err()
}

// UpdateHoldDetails changes the tour language only while the reservation is
// a live hold; otherwise the conditional matches nothing and callers reject.
func (r *Repository) UpdateHoldDetails(ctx context.Context, q Querier, id uuid.UUID, lang *string, now time.Time) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE reservations
		SET tour_language = COALESCE($2, tour_language), updated_at = $3
		WHERE id = $1 AND status = 'HOLD' AND hold_expires_at > $3
	`, id, lang, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// WaitingUnnotified lists a session's waitlist in arrival order, skipping
// parties already notified.
func (r *Repository) WaitingUnnotified(ctx context.Context, q Querier, sessionID uuid.UUID) ([]domain.Reservation, error) {
	rows, err := q.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE session_id = $1 AND status = 'WAITING' AND availability_email_sent_at IS NULL
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var waiting []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		waiting = append(waiting, *res)
	}
	return waiting, rows.Err()
}

// One-shot notification gates. Each mark sets the timestamp only if it is
// still unset; the winner of the conditional update owns the side effect.

func (r *Repository) MarkCreatedEmailSent(ctx context.Context, q Querier, id uuid.UUID, now time.Time) (bool, error) {
	return r.markGate(ctx, q, `created_email_sent_at`, id, now)
}

func (r *Repository) MarkConfirmedEmailSent(ctx context.Context, q Querier, id uuid.UUID, now time.Time) (bool, error) {
	return r.markGate(ctx, q, `confirmed_email_sent_at`, id, now)
}

func (r *Repository) MarkAvailabilityEmailSent(ctx context.Context, q Querier, id uuid.UUID, now time.Time) (bool, error) {
	return r.markGate(ctx, q, `availability_email_sent_at`, id, now)
}

func (r *Repository) markGate(ctx context.Context, q Querier, column string, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := q.Exec(ctx,
		`UPDATE reservations SET `+column+` = $2 WHERE id = $1 AND `+column+` IS NULL`,
		id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ClearCreatedEmailGate rolls the one-shot marker back after a failed send
// so the notification can be retried later.
func (r *Repository) ClearCreatedEmailGate(ctx context.Context, q Querier, id uuid.UUID) error {
	_, err := q.Exec(ctx, `UPDATE reservations SET created_email_sent_at = NULL WHERE id = $1`, id)
	return err
}

func (r *Repository) ClearConfirmedEmailGate(ctx context.Context, q Querier, id uuid.UUID) error {
	_, err := q.Exec(ctx, `UPDATE reservations SET confirmed_email_sent_at = NULL WHERE id = $1`, id)
	return err
}

// ClearAvailabilityGate re-arms the waitlist notification, either after a
// failed publish or via an explicit resubscribe.
func (r *Repository) ClearAvailabilityGate(ctx context.Context, q Querier, id uuid.UUID) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE reservations SET availability_email_sent_at = NULL
		WHERE id = $1 AND status = 'WAITING'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
