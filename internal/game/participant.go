package game

// Role distinguishes players from spectators.
type Role string

const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// Participant is a player or spectator attached to a game. It holds a
// non-owning reference to its session; the connection worker owns the
// session itself.
type Participant struct {
	Name      string
	Role      Role
	SessionID string

	// Disconnected participants stay in the game; their events are not
	// delivered until they reconnect and resync.
	Disconnected bool
	// NeedsResync is set when a delivery to this participant was dropped;
	// cleared by a successful ResyncGame.
	NeedsResync bool

	MulliganCount int
	KeptHand      bool
}

// Arrow is a visual pointer between two endpoints (cards or players).
// It exists only while both endpoints exist.
type Arrow struct {
	ID           string
	FromCardID   string
	FromPlayerID string
	ToCardID     string
	ToPlayerID   string
	ArrowType    string
	CreatedBy    string
}

// references reports whether the arrow touches the given card id.
func (a *Arrow) referencesCard(cardID string) bool {
	return a.FromCardID == cardID || a.ToCardID == cardID
}

// referencesPlayer reports whether the arrow touches the given player name.
func (a *Arrow) referencesPlayer(name string) bool {
	return a.FromPlayerID == name || a.ToPlayerID == name
}
