package pg

import (
	"context"

	"github.com/veloztours/booking-engine/internal/domain"
)

func (r *Repository) ActiveGuides(ctx context.Context, q Querier) ([]domain.Guide, error) {
	rows, err := q.Query(ctx, `
		SELECT id, name, active, languages FROM guides WHERE active ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guides []domain.Guide
	for rows.Next() {
		var g domain.Guide
		if err := rows.Scan(&g.ID, &g.Name, &g.Active, &g.Languages); err != nil {
			return nil, err
		}
		guides = append(guides, g)
	}
	return guides, rows.Err()
}
