package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/veloztours/booking-engine/internal/adapters/rabbit"
	"github.com/veloztours/booking-engine/internal/domain"
)

// Mailer is the outbound notification sink. Callers enforce at-most-once
// delivery intent through the reservation's one-shot gates; a returned
// error tells the caller to roll its gate back so the event can be retried.
type Mailer interface {
	ReservationCreated(ctx context.Context, res domain.Reservation, customer domain.Customer) error
	ReservationConfirmed(ctx context.Context, res domain.Reservation, customer domain.Customer) error
	SeatsAvailable(ctx context.Context, res domain.Reservation, customer domain.Customer) error
}

// EventMailer publishes email events to the broker; the actual sender is a
// separate consumer outside this service.
type EventMailer struct {
	pub *rabbit.Publisher
}

func NewEventMailer(pub *rabbit.Publisher) *EventMailer {
	return &EventMailer{pub: pub}
}

func (m *EventMailer) ReservationCreated(ctx context.Context, res domain.Reservation, customer domain.Customer) error {
	return m.publish(ctx, "email.reservation.created", res, customer)
}

func (m *EventMailer) ReservationConfirmed(ctx context.Context, res domain.Reservation, customer domain.Customer) error {
	return m.publish(ctx, "email.reservation.confirmed", res, customer)
}

func (m *EventMailer) SeatsAvailable(ctx context.Context, res domain.Reservation, customer domain.Customer) error {
	return m.publish(ctx, "email.waitlist.seats-available", res, customer)
}

func (m *EventMailer) publish(ctx context.Context, key string, res domain.Reservation, customer domain.Customer) error {
	payload, err := json.Marshal(map[string]interface{}{
		"reservation_id": res.ID,
		"session_id":     res.SessionID,
		"status":         res.Status,
		"total_pax":      res.TotalPax,
		"email":          customer.Email,
		"name":           customer.Name,
		"sent_at":        time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		MessageId:   uuid.New().String(),
		ContentType: "application/json",
		Body:        payload,
	}
	return m.pub.Publish(ctx, key, msg)
}
