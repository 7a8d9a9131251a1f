package game

import "github.com/cardfree/card-server-go/internal/protocol"

// zoneRefVisibleTo mirrors Zone.visibleTo for a zone reference inside an
// event, so filtering does not need the live zone object.
func zoneRefVisibleTo(ref protocol.ZoneRef, viewer string) bool {
	switch ZoneKind(ref.Kind) {
	case ZoneHand:
		return ref.Owner == viewer
	case ZoneLibrary:
		return false
	}
	return true
}

// filterPayload computes the visibility-filtered projection of a canonical
// event payload for one viewer. Concealed identities are redacted; the
// opaque card id always survives so clients can track object lifetimes.
func filterPayload(ev eventRecord, viewer string) any {
	switch p := ev.Payload.(type) {
	case MoveCardEvent:
		// The identity travels with the event only when the viewer could
		// see the card at either endpoint. A face-down destination hides
		// it from everyone but the acting owner.
		canSee := ev.PlayerID == viewer
		if !canSee && !p.FaceDown {
			canSee = zoneRefVisibleTo(p.From, viewer) || zoneRefVisibleTo(p.To, viewer)
		}
		if !canSee {
			p.Card.Name = ""
		}
		return p
	case DrawCardsEvent:
		if ev.PlayerID != viewer {
			p.Cards = nil
		}
		return p
	case ShuffleEvent:
		// The resulting order is replay-only information.
		p.Order = nil
		return p
	default:
		return ev.Payload
	}
}
