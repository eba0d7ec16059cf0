package pg

import (
	"context"

	"github.com/google/uuid"
	"github.com/veloztours/booking-engine/internal/domain"
)

// UpsertCustomer deduplicates customers by email. Blank name/phone in the
// request never wipe values already on file.
func (r *Repository) UpsertCustomer(ctx context.Context, q Querier, email, name, phone string) (domain.Customer, error) {
	var c domain.Customer
	err := q.QueryRow(ctx, `
		INSERT INTO customers (id, email, name, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			name  = CASE WHEN EXCLUDED.name  <> '' THEN EXCLUDED.name  ELSE customers.name  END,
			phone = CASE WHEN EXCLUDED.phone <> '' THEN EXCLUDED.phone ELSE customers.phone END
		RETURNING id, email, name, phone
	`, uuid.New(), email, name, phone).Scan(&c.ID, &c.Email, &c.Name, &c.Phone)
	return c, err
}

func (r *Repository) GetCustomer(ctx context.Context, q Querier, id uuid.UUID) (domain.Customer, error) {
	var c domain.Customer
	err := q.QueryRow(ctx, `SELECT id, email, name, phone FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Email, &c.Name, &c.Phone)
	return c, err
}

// UpdateCustomerContact is used by hold detail updates.
func (r *Repository) UpdateCustomerContact(ctx context.Context, q Querier, id uuid.UUID, name, phone string) error {
	_, err := q.Exec(ctx, `
		UPDATE customers SET
			name  = CASE WHEN $2 <> '' THEN $2 ELSE name  END,
			phone = CASE WHEN $3 <> '' THEN $3 ELSE phone END
		WHERE id = $1
	`, id, name, phone)
	return err
}
