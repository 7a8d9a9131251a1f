package game

import "sort"

// StateView is the full visibility-filtered snapshot of a game, used for
// reconnect resynchronization and spectator catch-up.
type StateView struct {
	GameID       string            `json:"gameId"`
	Description  string            `json:"description,omitempty"`
	Participants []ParticipantView `json:"participants"`
	Zones        []ZoneView        `json:"zones"`
	Arrows       []ArrowEvent      `json:"arrows,omitempty"`
	LastSeq      uint64            `json:"lastSeq"`
}

type ParticipantView struct {
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	Disconnected bool   `json:"disconnected,omitempty"`
}

type CardView struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	FaceDown   bool           `json:"faceDown,omitempty"`
	Tapped     bool           `json:"tapped,omitempty"`
	X          int            `json:"x,omitempty"`
	Y          int            `json:"y,omitempty"`
	Annotation string         `json:"annotation,omitempty"`
	Counters   map[string]int `json:"counters,omitempty"`
	AttachedTo string         `json:"attachedTo,omitempty"`
}

// ZoneView lists a zone's contents. Zones concealed from the viewer carry
// only the card count.
type ZoneView struct {
	Owner string     `json:"owner,omitempty"`
	Kind  ZoneKind   `json:"kind"`
	Count int        `json:"count"`
	Cards []CardView `json:"cards,omitempty"`
}

// stateViewFor builds the filtered snapshot for one viewer. Runs on the
// game loop.
func (g *Game) stateViewFor(viewer string) StateView {
	view := StateView{
		GameID:      g.ID,
		Description: g.cfg.Description,
	}
	if g.recorder != nil {
		view.LastSeq = g.recorder.LastSeq()
	}

	for _, name := range g.order {
		p := g.participants[name]
		view.Participants = append(view.Participants, ParticipantView{
			Name:         p.Name,
			Role:         p.Role,
			Disconnected: p.Disconnected,
		})
	}

	keys := make([]zoneKey, 0, len(g.zones))
	for key := range g.zones {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Owner != keys[j].Owner {
			return keys[i].Owner < keys[j].Owner
		}
		return keys[i].Kind < keys[j].Kind
	})

	for _, key := range keys {
		zone := g.zones[key]
		zv := ZoneView{Owner: key.Owner, Kind: key.Kind, Count: len(zone.Cards)}
		if zone.visibleTo(viewer) {
			zv.Cards = make([]CardView, 0, len(zone.Cards))
			for _, card := range zone.Cards {
				cv := CardView{
					ID:         card.ID,
					FaceDown:   card.FaceDown,
					Tapped:     card.Tapped,
					X:          card.X,
					Y:          card.Y,
					Annotation: card.Annotation,
					AttachedTo: card.AttachedTo,
				}
				if card.identityVisibleTo(viewer) {
					cv.Name = card.Name
				}
				if len(card.Counters) > 0 {
					cv.Counters = card.Counters.Copy()
				}
				zv.Cards = append(zv.Cards, cv)
			}
		}
		view.Zones = append(view.Zones, zv)
	}

	for _, arrow := range g.arrows {
		view.Arrows = append(view.Arrows, arrowEventFor(arrow))
	}
	sort.Slice(view.Arrows, func(i, j int) bool { return view.Arrows[i].ArrowID < view.Arrows[j].ArrowID })

	return view
}
