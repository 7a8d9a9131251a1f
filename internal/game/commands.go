package game

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"

	"github.com/cardfree/card-server-go/internal/protocol"
)

// handleCommand validates and applies one game command. Failures respond to
// the issuer only: no state is mutated and no events are emitted.
func (g *Game) handleCommand(actor string, cmdType protocol.CommandType, payload json.RawMessage) Result {
	p, ok := g.participants[actor]
	if !ok {
		return Result{Code: protocol.RespPermissionDenied}
	}

	if p.Role == RoleSpectator {
		switch cmdType {
		case protocol.CmdGameSay, protocol.CmdResyncGame, protocol.CmdLeaveGame:
		default:
			return Result{Code: protocol.RespPermissionDenied}
		}
	}

	// While a player is disconnected and the game pauses on disconnect,
	// only chat, resync, concession and leaving go through. Play resumes
	// when the player reconnects or leaves.
	if g.cfg.PauseOnDisconnect && g.hasDisconnectedPlayer() {
		switch cmdType {
		case protocol.CmdGameSay, protocol.CmdResyncGame, protocol.CmdLeaveGame, protocol.CmdConcede:
		default:
			return Result{Code: protocol.RespGamePaused}
		}
	}

	switch cmdType {
	case protocol.CmdMoveCard:
		return g.moveCard(p, payload)
	case protocol.CmdDrawCards:
		return g.drawCards(p, payload)
	case protocol.CmdShuffle:
		return g.shuffle(p, payload)
	case protocol.CmdCreateToken:
		return g.createToken(p, payload)
	case protocol.CmdDestroyCard:
		return g.destroyCard(p, payload)
	case protocol.CmdSetCardAttribute:
		return g.setCardAttribute(p, payload)
	case protocol.CmdAddCounter:
		return g.addCounter(p, payload)
	case protocol.CmdMulligan:
		return g.mulligan(p)
	case protocol.CmdRollDie:
		return g.rollDie(p, payload)
	case protocol.CmdCreateArrow:
		return g.createArrow(p, payload)
	case protocol.CmdDeleteArrow:
		return g.deleteArrow(p, payload)
	case protocol.CmdGameSay:
		return g.gameSay(p, payload)
	case protocol.CmdConcede:
		return g.concede(p)
	case protocol.CmdLeaveGame:
		return g.leaveGame(p)
	case protocol.CmdResyncGame:
		return g.resync(p)
	}
	return Result{Code: protocol.RespInvalidCommand}
}

// resolveZone maps a zone reference from a command to the live zone, with
// ownership rules: shared kinds take no owner, player kinds must name the
// acting player (a player may not manipulate another player's hand or
// library contents directly).
func (g *Game) resolveZone(actor string, ref protocol.ZoneRef) (*Zone, protocol.ResponseCode) {
	kind := ZoneKind(ref.Kind)
	if !knownZoneKind(kind) {
		return nil, protocol.RespZoneNotFound
	}

	owner := ref.Owner
	for _, shared := range sharedZoneKinds {
		if kind == shared {
			if owner != "" {
				return nil, protocol.RespZoneNotFound
			}
			return g.zones[zoneKey{Kind: kind}], protocol.RespOk
		}
	}

	if owner == "" {
		owner = actor
	}
	if owner != actor {
		return nil, protocol.RespPermissionDenied
	}
	zone, ok := g.zones[zoneKey{Owner: owner, Kind: kind}]
	if !ok {
		return nil, protocol.RespZoneNotFound
	}
	return zone, protocol.RespOk
}

func (g *Game) moveCard(p *Participant, payload json.RawMessage) Result {
	var cmd protocol.MoveCardPayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Result{Code: protocol.RespInvalidCommand}
	}

	card, ok := g.cards[cmd.CardID]
	if !ok {
		return Result{Code: protocol.RespCardNotFound}
	}
	if card.OwnerID != p.Name {
		return Result{Code: protocol.RespPermissionDenied}
	}

	to, code := g.resolveZone(p.Name, cmd.To)
	if code != protocol.RespOk {
		return Result{Code: code}
	}

	from := card.zone
	if from == nil {
		panic("card " + card.ID + " has no owning zone")
	}

	// Validate the target index before mutating anything.
	targetLen := len(to.Cards)
	if from == to {
		targetLen--
	}
	var toIdx int
	switch cmd.Position {
	case protocol.PositionBottom:
		toIdx = targetLen
	case protocol.PositionIndex:
		if cmd.Index < 0 || cmd.Index > targetLen {
			return Result{Code: protocol.RespIndexOutOfRange}
		}
		toIdx = cmd.Index
	case protocol.PositionRandom:
		toIdx = g.rng.IntN(targetLen + 1)
	case protocol.PositionTop, "":
		toIdx = 0
	default:
		return Result{Code: protocol.RespInvalidCommand}
	}

	fromRef := from.Key.ref()
	fromIdx := from.remove(card)
	toIdx = to.insertAt(card, toIdx)

	card.FaceDown = cmd.FaceDown && to.Key.Kind == ZoneBattlefield
	if to.Key.Kind == ZoneBattlefield {
		card.X, card.Y = cmd.X, cmd.Y
	} else {
		// Leaving the battlefield resets board-only state.
		card.Tapped = false
		card.X, card.Y = 0, 0
		card.Annotation = ""
		card.Counters = make(Counters)
		g.detachAll(card)
	}

	records := []eventRecord{{
		Type:     EventMoveCard,
		PlayerID: p.Name,
		Payload: MoveCardEvent{
			Card:      CardFace{ID: card.ID, Name: card.Name},
			From:      fromRef,
			FromIndex: fromIdx,
			To:        to.Key.ref(),
			ToIndex:   toIdx,
			FaceDown:  card.FaceDown,
			X:         card.X,
			Y:         card.Y,
		},
	}}
	records = append(records, g.removeArrowsForCard(p.Name, card.ID)...)

	g.broadcast(records)
	return Result{Code: protocol.RespOk}
}

func (g *Game) drawCards(p *Participant, payload json.RawMessage) Result {
	var cmd protocol.DrawCardsPayload
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.Count < 1 {
		return Result{Code: protocol.RespInvalidCommand}
	}

	library := g.zones[zoneKey{Owner: p.Name, Kind: ZoneLibrary}]
	hand := g.zones[zoneKey{Owner: p.Name, Kind: ZoneHand}]
	if library == nil || hand == nil {
		return Result{Code: protocol.RespZoneNotFound}
	}
	if len(library.Cards) < cmd.Count {
		return Result{Code: protocol.RespInsufficientCards}
	}

	faces := make([]CardFace, 0, cmd.Count)
	for i := 0; i < cmd.Count; i++ {
		card := library.Cards[0]
		library.remove(card)
		hand.insertAt(card, len(hand.Cards))
		faces = append(faces, CardFace{ID: card.ID, Name: card.Name})
	}

	g.broadcast([]eventRecord{{
		Type:     EventDrawCards,
		PlayerID: p.Name,
		Payload:  DrawCardsEvent{Count: cmd.Count, Cards: faces},
	}})
	return Result{Code: protocol.RespOk}
}

func (g *Game) shuffle(p *Participant, payload json.RawMessage) Result {
	var cmd protocol.ShufflePayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Result{Code: protocol.RespInvalidCommand}
	}
	if cmd.Zone.Kind == "" {
		cmd.Zone = protocol.ZoneRef{Owner: p.Name, Kind: string(ZoneLibrary)}
	}
	if ZoneKind(cmd.Zone.Kind) != ZoneLibrary {
		// Only libraries are shuffled; shared ordered zones keep their order.
		return Result{Code: protocol.RespInvalidCommand}
	}

	zone, code := g.resolveZone(p.Name, cmd.Zone)
	if code != protocol.RespOk {
		return Result{Code: code}
	}

	g.rng.Shuffle(len(zone.Cards), func(i, j int) {
		zone.Cards[i], zone.Cards[j] = zone.Cards[j], zone.Cards[i]
	})

	// The canonical event records the resulting order, not the seed, so
	// replays remain valid even if the RNG algorithm changes.
	g.broadcast([]eventRecord{{
		Type:     EventShuffle,
		PlayerID: p.Name,
		Payload:  ShuffleEvent{Zone: zone.Key.ref(), Order: zone.cardIDs()},
	}})
	return Result{Code: protocol.RespOk}
}

func (g *Game) createToken(p *Participant, payload json.RawMessage) Result {
	var cmd protocol.CreateTokenPayload
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.Name == "" {
		return Result{Code: protocol.RespInvalidCommand}
	}

	card := newCard(uuid.NewString(), cmd.Name, p.Name, true)
	card.X, card.Y = cmd.X, cmd.Y
	g.cards[card.ID] = card
	battlefield := g.zones[zoneKey{Kind: ZoneBattlefield}]
	battlefield.insertAt(card, len(battlefield.Cards))

	g.broadcast([]eventRecord{{
		Type:     EventCreateToken,
		PlayerID: p.Name,
		Payload:  CreateTokenEvent{Card: CardFace{ID: card.ID, Name: card.Name}, X: cmd.X, Y: cmd.Y},
	}})
	return Result{Code: protocol.RespOk, Data: map[string]string{"cardId": card.ID}}
}

func (g *Game) destroyCard(p *Participant, payload json.RawMessage) Result {
	var cmd protocol.DestroyCardPayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Result{Code: protocol.RespInvalidCommand}
	}

	card, ok := g.cards[cmd.CardID]
	if !ok {
		return Result{Code: protocol.RespCardNotFound}
	}
	if card.OwnerID != p.Name {
		return Result{Code: protocol.RespPermissionDenied}
	}

	zoneRef := card.zone.Key.ref()
	card.zone.remove(card)
	g.detachAll(card)
	delete(g.cards, card.ID)

	records := []eventRecord{{
		Type:     EventDestroyCard,
		PlayerID: p.Name,
		Payload:  DestroyCardEvent{Card: CardFace{ID: card.ID, Name: card.Name}, Zone: zoneRef},
	}}
	records = append(records, g.removeArrowsForCard(p.Name, card.ID)...)

	g.broadcast(records)
	return Result{Code: protocol.RespOk}
}

func (g *Game) setCardAttribute(p *Participant, payload json.RawMessage) Result {
	var cmd protocol.SetCardAttributePayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Result{Code: protocol.RespInvalidCommand}
	}

	card, ok := g.cards[cmd.CardID]
	if !ok {
		return Result{Code: protocol.RespCardNotFound}
	}
	if card.OwnerID != p.Name {
		return Result{Code: protocol.RespPermissionDenied}
	}

	switch cmd.Attribute {
	case "tapped":
		v, err := strconv.ParseBool(cmd.Value)
		if err != nil {
			return Result{Code: protocol.RespInvalidCommand}
		}
		card.Tapped = v
	case "faceDown":
		v, err := strconv.ParseBool(cmd.Value)
		if err != nil {
			return Result{Code: protocol.RespInvalidCommand}
		}
		card.FaceDown = v
	case "annotation":
		card.Annotation = cmd.Value
	case "x", "y":
		v, err := strconv.Atoi(cmd.Value)
		if err != nil {
			return Result{Code: protocol.RespInvalidCommand}
		}
		if cmd.Attribute == "x" {
			card.X = v
		} else {
			card.Y = v
		}
	case "attachedTo":
		if cmd.Value == "" {
			g.detach(card)
			break
		}
		host, ok := g.cards[cmd.Value]
		if !ok {
			return Result{Code: protocol.RespCardNotFound}
		}
		if host == card {
			return Result{Code: protocol.RespInvalidCommand}
		}
		g.detach(card)
		card.AttachedTo = host.ID
		host.Attachments[card.ID] = struct{}{}
	default:
		return Result{Code: protocol.RespInvalidCommand}
	}

	g.broadcast([]eventRecord{{
		Type:     EventSetCardAttribute,
		PlayerID: p.Name,
		Payload:  SetCardAttributeEvent{CardID: card.ID, Attribute: cmd.Attribute, Value: cmd.Value},
	}})
	return Result{Code: protocol.RespOk}
}

func (g *Game) addCounter(p *Participant, payload json.RawMessage) Result {
	var cmd protocol.AddCounterPayload
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.Counter == "" {
		return Result{Code: protocol.RespInvalidCommand}
	}

	card, ok := g.cards[cmd.CardID]
	if !ok {
		return Result{Code: protocol.RespCardNotFound}
	}
	if card.OwnerID != p.Name {
		return Result{Code: protocol.RespPermissionDenied}
	}

	value := card.Counters.Add(cmd.Counter, cmd.Delta)

	g.broadcast([]eventRecord{{
		Type:     EventAddCounter,
		PlayerID: p.Name,
		Payload:  AddCounterEvent{CardID: card.ID, Counter: cmd.Counter, Delta: cmd.Delta, Value: value},
	}})
	return Result{Code: protocol.RespOk, Data: map[string]int{"value": value}}
}

// mulligan returns the hand to the library, shuffles, and draws one card
// fewer than the previous hand would have held.
func (g *Game) mulligan(p *Participant) Result {
	library := g.zones[zoneKey{Owner: p.Name, Kind: ZoneLibrary}]
	hand := g.zones[zoneKey{Owner: p.Name, Kind: ZoneHand}]
	if library == nil || hand == nil {
		return Result{Code: protocol.RespZoneNotFound}
	}

	p.MulliganCount++
	target := startingHandSize - p.MulliganCount
	if target < 0 {
		target = 0
	}
	if len(library.Cards)+len(hand.Cards) < target {
		p.MulliganCount--
		return Result{Code: protocol.RespInsufficientCards}
	}

	for len(hand.Cards) > 0 {
		card := hand.Cards[0]
		hand.remove(card)
		library.insertAt(card, len(library.Cards))
	}
	g.rng.Shuffle(len(library.Cards), func(i, j int) {
		library.Cards[i], library.Cards[j] = library.Cards[j], library.Cards[i]
	})

	faces := make([]CardFace, 0, target)
	for i := 0; i < target; i++ {
		card := library.Cards[0]
		library.remove(card)
		hand.insertAt(card, len(hand.Cards))
		faces = append(faces, CardFace{ID: card.ID, Name: card.Name})
	}

	g.broadcast([]eventRecord{
		{Type: EventShuffle, PlayerID: p.Name, Payload: ShuffleEvent{Zone: library.Key.ref(), Order: library.cardIDs()}},
		{Type: EventDrawCards, PlayerID: p.Name, Payload: DrawCardsEvent{Count: target, Cards: faces}},
		{Type: EventMulligan, PlayerID: p.Name, Payload: MulliganEvent{HandSize: target}},
	})
	return Result{Code: protocol.RespOk}
}

func (g *Game) rollDie(p *Participant, payload json.RawMessage) Result {
	var cmd protocol.RollDiePayload
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.Sides < 2 || cmd.Sides > 1000 {
		return Result{Code: protocol.RespInvalidCommand}
	}

	value := g.rng.Roll(cmd.Sides)
	g.broadcast([]eventRecord{{
		Type:     EventRollDie,
		PlayerID: p.Name,
		Payload:  RollDieEvent{Sides: cmd.Sides, Value: value},
	}})
	return Result{Code: protocol.RespOk, Data: map[string]int{"value": value}}
}

func (g *Game) createArrow(p *Participant, payload json.RawMessage) Result {
	var cmd protocol.CreateArrowPayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Result{Code: protocol.RespInvalidCommand}
	}
	if cmd.FromCardID == "" && cmd.FromPlayerID == "" {
		return Result{Code: protocol.RespInvalidCommand}
	}
	if cmd.ToCardID == "" && cmd.ToPlayerID == "" {
		return Result{Code: protocol.RespInvalidCommand}
	}

	for _, cardID := range []string{cmd.FromCardID, cmd.ToCardID} {
		if cardID == "" {
			continue
		}
		if _, ok := g.cards[cardID]; !ok {
			return Result{Code: protocol.RespCardNotFound}
		}
	}
	for _, playerID := range []string{cmd.FromPlayerID, cmd.ToPlayerID} {
		if playerID == "" {
			continue
		}
		if _, ok := g.participants[playerID]; !ok {
			return Result{Code: protocol.RespInvalidCommand}
		}
	}

	arrow := &Arrow{
		ID:           uuid.NewString(),
		FromCardID:   cmd.FromCardID,
		FromPlayerID: cmd.FromPlayerID,
		ToCardID:     cmd.ToCardID,
		ToPlayerID:   cmd.ToPlayerID,
		ArrowType:    cmd.ArrowType,
		CreatedBy:    p.Name,
	}
	g.arrows[arrow.ID] = arrow

	g.broadcast([]eventRecord{{
		Type:     EventCreateArrow,
		PlayerID: p.Name,
		Payload:  arrowEventFor(arrow),
	}})
	return Result{Code: protocol.RespOk, Data: map[string]string{"arrowId": arrow.ID}}
}

func (g *Game) deleteArrow(p *Participant, payload json.RawMessage) Result {
	var cmd protocol.DeleteArrowPayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Result{Code: protocol.RespInvalidCommand}
	}

	arrow, ok := g.arrows[cmd.ArrowID]
	if !ok {
		return Result{Code: protocol.RespInvalidCommand}
	}
	if arrow.CreatedBy != p.Name {
		return Result{Code: protocol.RespPermissionDenied}
	}
	delete(g.arrows, arrow.ID)

	g.broadcast([]eventRecord{{
		Type:     EventDeleteArrow,
		PlayerID: p.Name,
		Payload:  ArrowEvent{ArrowID: arrow.ID},
	}})
	return Result{Code: protocol.RespOk}
}

func (g *Game) gameSay(p *Participant, payload json.RawMessage) Result {
	var cmd protocol.GameSayPayload
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.Message == "" {
		return Result{Code: protocol.RespInvalidCommand}
	}

	g.broadcast([]eventRecord{{
		Type:     EventGameSay,
		PlayerID: p.Name,
		Payload:  SayEvent{Message: cmd.Message},
	}})
	return Result{Code: protocol.RespOk}
}

// concede takes the player out of the running: their cards and arrows are
// removed from play and they stay on as a spectator.
func (g *Game) concede(p *Participant) Result {
	if p.Role != RolePlayer {
		return Result{Code: protocol.RespPermissionDenied}
	}

	records := []eventRecord{{
		Type:     EventConcede,
		PlayerID: p.Name,
		Payload:  LeaveEvent{Name: p.Name},
	}}
	records = append(records, g.releasePlayerState(p)...)

	p.Role = RoleSpectator
	g.refreshStats()

	g.broadcast(records)
	return Result{Code: protocol.RespOk}
}

// releasePlayerState removes every card the participant owns, their private
// zones and any arrow touching them, returning the matching delete events.
func (g *Game) releasePlayerState(p *Participant) []eventRecord {
	var records []eventRecord

	for id, arrow := range g.arrows {
		if arrow.referencesPlayer(p.Name) || arrow.CreatedBy == p.Name {
			delete(g.arrows, id)
			records = append(records, eventRecord{
				Type:     EventDeleteArrow,
				PlayerID: p.Name,
				Payload:  ArrowEvent{ArrowID: id},
			})
		}
	}

	for id, card := range g.cards {
		if card.OwnerID != p.Name {
			continue
		}
		if card.zone != nil {
			card.zone.remove(card)
		}
		g.detachAll(card)
		delete(g.cards, id)
		records = append(records, g.removeArrowsForCard(p.Name, id)...)
	}

	for _, kind := range playerZoneKinds {
		delete(g.zones, zoneKey{Owner: p.Name, Kind: kind})
	}

	return records
}

// leaveGame removes the participant together with every card they own and
// any arrow touching them or their cards.
func (g *Game) leaveGame(p *Participant) Result {
	records := []eventRecord{{
		Type:     EventLeave,
		PlayerID: p.Name,
		Payload:  LeaveEvent{Name: p.Name},
	}}
	records = append(records, g.releasePlayerState(p)...)

	delete(g.participants, p.Name)
	for i, name := range g.order {
		if name == p.Name {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	g.refreshStats()

	g.broadcast(records)
	return Result{Code: protocol.RespOk, Data: map[string]int{"remaining": len(g.participants)}}
}

func (g *Game) resync(p *Participant) Result {
	p.NeedsResync = false
	p.Disconnected = false
	return Result{Code: protocol.RespOk, Data: g.stateViewFor(p.Name)}
}

// removeArrowsForCard deletes arrows referencing the card and returns the
// matching delete events. Arrows exist only while both endpoints exist.
func (g *Game) removeArrowsForCard(actor, cardID string) []eventRecord {
	var records []eventRecord
	for id, arrow := range g.arrows {
		if arrow.referencesCard(cardID) {
			delete(g.arrows, id)
			records = append(records, eventRecord{
				Type:     EventDeleteArrow,
				PlayerID: actor,
				Payload:  ArrowEvent{ArrowID: id},
			})
		}
	}
	return records
}

// detach unhooks card from its host, if any.
func (g *Game) detach(card *Card) {
	if card.AttachedTo == "" {
		return
	}
	if host, ok := g.cards[card.AttachedTo]; ok {
		delete(host.Attachments, card.ID)
	}
	card.AttachedTo = ""
}

// detachAll unhooks card from its host and releases its own attachments.
func (g *Game) detachAll(card *Card) {
	g.detach(card)
	for id := range card.Attachments {
		if attached, ok := g.cards[id]; ok {
			attached.AttachedTo = ""
		}
		delete(card.Attachments, id)
	}
}

func arrowEventFor(a *Arrow) ArrowEvent {
	return ArrowEvent{
		ArrowID:      a.ID,
		FromCardID:   a.FromCardID,
		FromPlayerID: a.FromPlayerID,
		ToCardID:     a.ToCardID,
		ToPlayerID:   a.ToPlayerID,
		ArrowType:    a.ArrowType,
	}
}
