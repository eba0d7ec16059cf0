package domain

import "github.com/google/uuid"

// Customer is deduplicated by email: joins and reservations upsert into the
// same row across sessions.
type Customer struct {
	ID    uuid.UUID
	Email string
	Name  string
	Phone string
}

type Guide struct {
	ID        uuid.UUID
	Name      string
	Active    bool
	Languages []string
}

func (g Guide) Speaks(lang string) bool {
	for _, l := range g.Languages {
		if EqualLang(l, lang) {
			return true
		}
	}
	return false
}
