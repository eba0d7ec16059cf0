package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/veloztours/booking-engine/internal/domain"
)

// The capacity ledger is derived state: seats committed to a session are
// the sum of party sizes over confirmed rows and live holds, recomputed
// from rows loaded inside the deciding transaction. There is no stored
// counter and no cache, because holds lapse continuously and must stop
// counting at their expiry instant.

func CommittedSeats(rows []domain.Commitment, now time.Time) int {
	total := 0
	for _, c := range rows {
		if c.Counts(now) {
			total += c.TotalPax
		}
	}
	return total
}

func FreeSeats(session domain.Session, rows []domain.Commitment, now time.Time) int {
	free := session.MaxSeatsTotal - CommittedSeats(rows, now)
	if free < 0 {
		free = 0
	}
	return free
}

// GuideLoads returns committed seats per assigned guide, same liveness rule
// as the session-wide ledger.
func GuideLoads(rows []domain.Commitment, now time.Time) map[uuid.UUID]int {
	loads := make(map[uuid.UUID]int)
	for _, c := range rows {
		if c.GuideUserID != nil && c.Counts(now) {
			loads[*c.GuideUserID] += c.TotalPax
		}
	}
	return loads
}
