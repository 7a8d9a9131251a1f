package game

// Card is one card instance inside a game. A card belongs to exactly one
// zone at a time; it is mutated only by validated game commands running on
// the game's command loop.
type Card struct {
	ID         string
	Name       string
	OwnerID    string
	Token      bool
	FaceDown   bool
	Tapped     bool
	X          int
	Y          int
	Annotation string
	Counters   Counters
	// Attachments holds ids of cards attached to this card.
	Attachments map[string]struct{}
	// AttachedTo is the id of the card this card is attached to, if any.
	AttachedTo string

	zone *Zone
}

func newCard(id, name, owner string, token bool) *Card {
	return &Card{
		ID:          id,
		Name:        name,
		OwnerID:     owner,
		Token:       token,
		Counters:    make(Counters),
		Attachments: make(map[string]struct{}),
	}
}

// Zone returns the zone currently holding the card, nil if detached
// (which is an invariant violation outside of a move in progress).
func (c *Card) Zone() *Zone {
	return c.zone
}

// identityVisibleTo reports whether viewer may learn the card's identity
// where it currently sits. Face-down cards reveal identity to their owner
// only; otherwise the zone's visibility decides.
func (c *Card) identityVisibleTo(viewer string) bool {
	if c.OwnerID == viewer {
		return true
	}
	if c.FaceDown {
		return false
	}
	if c.zone == nil {
		return false
	}
	return c.zone.visibleTo(viewer)
}
