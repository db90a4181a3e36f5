package catalog

import (
	"card-optimiser/internal/models"
)

// Snapshot is an immutable view of the three catalogs for the lifetime of a
// computation. Lookups use exact, case-sensitive key equality; offers keep
// their document order because the first structurally-matching entry wins.
// Catalog authors must therefore order merchant rules and offers from
// most-specific to least-specific.
type Snapshot struct {
	cards       []models.Card
	cardsByID   map[string]models.Card
	rulesByCard map[string]models.RewardRule
	offers      []models.Offer
}

// NewSnapshot builds an indexed snapshot from raw catalog documents. When a
// card id carries more than one reward rule the first one wins; later
// duplicates are dropped rather than rejected.
func NewSnapshot(cards []models.Card, rules []models.RewardRule, offers []models.Offer) *Snapshot {
	s := &Snapshot{
		cards:       cards,
		cardsByID:   make(map[string]models.Card, len(cards)),
		rulesByCard: make(map[string]models.RewardRule, len(rules)),
		offers:      offers,
	}
	for _, c := range cards {
		if _, ok := s.cardsByID[c.ID]; !ok {
			s.cardsByID[c.ID] = c
		}
	}
	for _, r := range rules {
		if _, ok := s.rulesByCard[r.CardID]; !ok {
			s.rulesByCard[r.CardID] = r
		}
	}
	return s
}

// Card returns the card with the given id.
func (s *Snapshot) Card(id string) (models.Card, bool) {
	c, ok := s.cardsByID[id]
	return c, ok
}

// RewardRule returns the reward rule for the given card id.
func (s *Snapshot) RewardRule(cardID string) (models.RewardRule, bool) {
	r, ok := s.rulesByCard[cardID]
	return r, ok
}

// Cards returns all cards in document order.
func (s *Snapshot) Cards() []models.Card {
	return s.cards
}

// Offers returns all offers in document order.
func (s *Snapshot) Offers() []models.Offer {
	return s.offers
}
