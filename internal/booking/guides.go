package booking

import (
	"sort"

	"github.com/google/uuid"
	"github.com/veloztours/booking-engine/internal/domain"
)

// PickGuide selects the least-loaded guide with room for the party under
// the per-guide cap. Guides cover all base languages by contract, so a base
// language never filters the pool; a non-base preference first tries guides
// who speak it and falls back to everyone when none has room. Equal loads
// break by guide id so assignment is reproducible. Returns nil when nobody
// fits; callers treat that as no capacity, not an error.
func PickGuide(session domain.Session, guides []domain.Guide, loads map[uuid.UUID]int, partySize int, lang *string, base domain.LanguageSet) *uuid.UUID {
	if lang != nil && !base.IsBase(*lang) {
		var speakers []domain.Guide
		for _, g := range guides {
			if g.Speaks(*lang) {
				speakers = append(speakers, g)
			}
		}
		if id := pickLeastLoaded(session, speakers, loads, partySize); id != nil {
			return id
		}
	}
	return pickLeastLoaded(session, guides, loads, partySize)
}

func pickLeastLoaded(session domain.Session, guides []domain.Guide, loads map[uuid.UUID]int, partySize int) *uuid.UUID {
	sorted := make([]domain.Guide, len(guides))
	copy(sorted, guides)
	sort.Slice(sorted, func(i, j int) bool {
		li, lj := loads[sorted[i].ID], loads[sorted[j].ID]
		if li != lj {
			return li < lj
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	for _, g := range sorted {
		if !g.Active {
			continue
		}
		if loads[g.ID]+partySize <= session.MaxPerGuide {
			id := g.ID
			return &id
		}
	}
	return nil
}
