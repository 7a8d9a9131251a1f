package game

import "github.com/cardfree/card-server-go/internal/protocol"

// ZoneKind names a zone category. The kind determines default visibility
// and whether card order is semantically significant.
type ZoneKind string

const (
	ZoneHand        ZoneKind = "hand"
	ZoneLibrary     ZoneKind = "library"
	ZoneBattlefield ZoneKind = "battlefield"
	ZoneGraveyard   ZoneKind = "graveyard"
	ZoneExile       ZoneKind = "exile"
	ZoneStack       ZoneKind = "stack"
)

// Ordered reports whether position within the zone is significant.
func (k ZoneKind) Ordered() bool {
	switch k {
	case ZoneLibrary, ZoneStack, ZoneHand:
		return true
	}
	return false
}

// sharedZoneKinds are owned by the game itself rather than a participant.
var sharedZoneKinds = []ZoneKind{ZoneBattlefield, ZoneExile, ZoneStack}

// playerZoneKinds are created per player when they join.
var playerZoneKinds = []ZoneKind{ZoneHand, ZoneLibrary, ZoneGraveyard}

// knownZoneKind reports whether k names a valid zone kind.
func knownZoneKind(k ZoneKind) bool {
	switch k {
	case ZoneHand, ZoneLibrary, ZoneBattlefield, ZoneGraveyard, ZoneExile, ZoneStack:
		return true
	}
	return false
}

// zoneKey identifies a zone inside one game. Owner is empty for shared zones.
type zoneKey struct {
	Owner string
	Kind  ZoneKind
}

func (k zoneKey) ref() protocol.ZoneRef {
	return protocol.ZoneRef{Owner: k.Owner, Kind: string(k.Kind)}
}

// Zone is an ordered container of cards owned by a participant or shared.
type Zone struct {
	Key   zoneKey
	Cards []*Card
}

func newZone(owner string, kind ZoneKind) *Zone {
	return &Zone{Key: zoneKey{Owner: owner, Kind: kind}}
}

// visibleTo reports whether the contents of this zone are visible to viewer.
// Hands are visible to their owner only, libraries to nobody, everything
// else is public.
func (z *Zone) visibleTo(viewer string) bool {
	switch z.Key.Kind {
	case ZoneHand:
		return z.Key.Owner == viewer
	case ZoneLibrary:
		return false
	}
	return true
}

// indexOf returns the position of card in the zone, -1 if absent.
func (z *Zone) indexOf(card *Card) int {
	for i, c := range z.Cards {
		if c == card {
			return i
		}
	}
	return -1
}

// insertAt places card at index, clamping into [0, len].
func (z *Zone) insertAt(card *Card, index int) int {
	if index < 0 {
		index = 0
	}
	if index > len(z.Cards) {
		index = len(z.Cards)
	}
	z.Cards = append(z.Cards, nil)
	copy(z.Cards[index+1:], z.Cards[index:])
	z.Cards[index] = card
	card.zone = z
	return index
}

// remove detaches card from the zone and returns its former index,
// -1 if the card was not present.
func (z *Zone) remove(card *Card) int {
	idx := z.indexOf(card)
	if idx < 0 {
		return -1
	}
	z.Cards = append(z.Cards[:idx], z.Cards[idx+1:]...)
	card.zone = nil
	return idx
}

// cardIDs returns the ids of the contained cards in order.
func (z *Zone) cardIDs() []string {
	ids := make([]string, len(z.Cards))
	for i, c := range z.Cards {
		ids[i] = c.ID
	}
	return ids
}
