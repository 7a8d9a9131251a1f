package game

import "github.com/cardfree/card-server-go/internal/protocol"

// Canonical game event types. The replay log stores these unfiltered; each
// live recipient gets a visibility-filtered projection.
const (
	EventJoin             = "Join"
	EventLeave            = "Leave"
	EventConcede          = "Concede"
	EventMoveCard         = "MoveCard"
	EventDrawCards        = "DrawCards"
	EventShuffle          = "Shuffle"
	EventCreateToken      = "CreateToken"
	EventDestroyCard      = "DestroyCard"
	EventSetCardAttribute = "SetCardAttribute"
	EventAddCounter       = "AddCounter"
	EventMulligan         = "Mulligan"
	EventRollDie          = "RollDie"
	EventCreateArrow      = "CreateArrow"
	EventDeleteArrow      = "DeleteArrow"
	EventGameSay          = "GameSay"
	EventGameClosed       = "GameClosed"
)

// CardFace identifies a card in an event. Name is empty when the recipient
// lacks visibility; the id stays as an opaque handle.
type CardFace struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// MoveCardEvent records one zone transfer.
type MoveCardEvent struct {
	Card      CardFace         `json:"card"`
	From      protocol.ZoneRef `json:"from"`
	FromIndex int              `json:"fromIndex"`
	To        protocol.ZoneRef `json:"to"`
	ToIndex   int              `json:"toIndex"`
	FaceDown  bool             `json:"faceDown,omitempty"`
	X         int              `json:"x,omitempty"`
	Y         int              `json:"y,omitempty"`
}

// DrawCardsEvent records a draw. Cards carries identities; recipients other
// than the drawer only get the count.
type DrawCardsEvent struct {
	Count int        `json:"count"`
	Cards []CardFace `json:"cards,omitempty"`
}

// ShuffleEvent records the resulting order of an ordered zone. The order is
// part of the canonical event so replays stay valid even if the RNG
// algorithm changes; live recipients never see it.
type ShuffleEvent struct {
	Zone  protocol.ZoneRef `json:"zone"`
	Order []string         `json:"order,omitempty"`
}

type CreateTokenEvent struct {
	Card CardFace `json:"card"`
	X    int      `json:"x,omitempty"`
	Y    int      `json:"y,omitempty"`
}

type DestroyCardEvent struct {
	Card CardFace         `json:"card"`
	Zone protocol.ZoneRef `json:"zone"`
}

type SetCardAttributeEvent struct {
	CardID    string `json:"cardId"`
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}

type AddCounterEvent struct {
	CardID  string `json:"cardId"`
	Counter string `json:"counter"`
	Delta   int    `json:"delta"`
	Value   int    `json:"value"`
}

type MulliganEvent struct {
	HandSize int `json:"handSize"`
}

type RollDieEvent struct {
	Sides int `json:"sides"`
	Value int `json:"value"`
}

type ArrowEvent struct {
	ArrowID      string `json:"arrowId"`
	FromCardID   string `json:"fromCardId,omitempty"`
	FromPlayerID string `json:"fromPlayerId,omitempty"`
	ToCardID     string `json:"toCardId,omitempty"`
	ToPlayerID   string `json:"toPlayerId,omitempty"`
	ArrowType    string `json:"arrowType,omitempty"`
}

type SayEvent struct {
	Message string `json:"message"`
}

type JoinEvent struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

type LeaveEvent struct {
	Name string `json:"name"`
}

type GameClosedEvent struct {
	Reason string `json:"reason,omitempty"`
}

// eventRecord is one canonical event produced by a command before sequence
// assignment and per-recipient filtering.
type eventRecord struct {
	Type     string
	PlayerID string
	Payload  any
}
