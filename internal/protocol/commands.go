package protocol

// CommandType identifies a client command inside a CommandContainer.
type CommandType string

// Session commands.
const (
	CmdPing                CommandType = "Ping"
	CmdRequestPasswordSalt CommandType = "RequestPasswordSalt"
	CmdLogin               CommandType = "Login"
	CmdRegister            CommandType = "Register"
	CmdActivate            CommandType = "Activate"
	CmdForgotPassword      CommandType = "ForgotPassword"
	CmdResetPassword       CommandType = "ResetPassword"
	CmdListUsers           CommandType = "ListUsers"
	CmdSaveDeck            CommandType = "SaveDeck"
	CmdLoadDeck            CommandType = "LoadDeck"
)

// Room commands.
const (
	CmdJoinRoom   CommandType = "JoinRoom"
	CmdLeaveRoom  CommandType = "LeaveRoom"
	CmdListGames  CommandType = "ListGames"
	CmdCreateGame CommandType = "CreateGame"
	CmdJoinGame   CommandType = "JoinGame"
	CmdRoomSay    CommandType = "RoomSay"
)

// Game commands.
const (
	CmdMoveCard         CommandType = "MoveCard"
	CmdDrawCards        CommandType = "DrawCards"
	CmdShuffle          CommandType = "Shuffle"
	CmdCreateToken      CommandType = "CreateToken"
	CmdDestroyCard      CommandType = "DestroyCard"
	CmdSetCardAttribute CommandType = "SetCardAttribute"
	CmdAddCounter       CommandType = "AddCounter"
	CmdMulligan         CommandType = "Mulligan"
	CmdRollDie          CommandType = "RollDie"
	CmdCreateArrow      CommandType = "CreateArrow"
	CmdDeleteArrow      CommandType = "DeleteArrow"
	CmdGameSay          CommandType = "GameSay"
	CmdLeaveGame        CommandType = "LeaveGame"
	CmdConcede          CommandType = "Concede"
	CmdResyncGame       CommandType = "ResyncGame"
)

// Admin commands. All require an elevated session, checked server-side.
const (
	CmdKickFromGame CommandType = "KickFromGame"
	CmdBanUser      CommandType = "BanUser"
	CmdAdjustMod    CommandType = "AdjustMod"
)

// IsRoomCommand reports whether t is routed through the room directory.
func (t CommandType) IsRoomCommand() bool {
	switch t {
	case CmdJoinRoom, CmdLeaveRoom, CmdListGames, CmdCreateGame, CmdJoinGame, CmdRoomSay:
		return true
	}
	return false
}

// IsGameCommand reports whether t is routed to a game engine instance.
func (t CommandType) IsGameCommand() bool {
	switch t {
	case CmdMoveCard, CmdDrawCards, CmdShuffle, CmdCreateToken, CmdDestroyCard,
		CmdSetCardAttribute, CmdAddCounter, CmdMulligan, CmdRollDie,
		CmdCreateArrow, CmdDeleteArrow, CmdGameSay, CmdLeaveGame, CmdConcede, CmdResyncGame:
		return true
	}
	return false
}

// IsAdminCommand reports whether t requires an elevated session.
func (t CommandType) IsAdminCommand() bool {
	switch t {
	case CmdKickFromGame, CmdBanUser, CmdAdjustMod:
		return true
	}
	return false
}

// ---- Session command payloads ----

type RequestPasswordSaltPayload struct {
	UserName string `json:"userName"`
}

type LoginPayload struct {
	UserName string `json:"userName"`
	// Proof is the hex PBKDF2 of the password under the salt returned by
	// RequestPasswordSalt. Empty for guest logins when the server policy allows them.
	Proof string `json:"proof,omitempty"`
}

type RegisterPayload struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

type ActivatePayload struct {
	UserName string `json:"userName"`
	Token    string `json:"token"`
}

type ForgotPasswordPayload struct {
	UserName string `json:"userName"`
}

type ResetPasswordPayload struct {
	UserName    string `json:"userName"`
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type SaveDeckPayload struct {
	Name  string   `json:"name"`
	Cards []string `json:"cards"`
}

type LoadDeckPayload struct {
	Name string `json:"name"`
}

// ---- Room command payloads ----

type CreateGamePayload struct {
	Description       string `json:"description,omitempty"`
	Password          string `json:"password,omitempty"`
	MaxPlayers        int    `json:"maxPlayers"`
	SpectatorsAllowed bool   `json:"spectatorsAllowed"`
}

type JoinGamePayload struct {
	Password    string `json:"password,omitempty"`
	AsSpectator bool   `json:"asSpectator,omitempty"`
	// Deck lists the card names placed into the joining player's library,
	// in order. Ignored for spectators.
	Deck []string `json:"deck,omitempty"`
}

type RoomSayPayload struct {
	Message string `json:"message"`
}

// ---- Game command payloads ----

// PositionKind selects where a moved card lands inside an ordered zone.
type PositionKind string

const (
	PositionTop    PositionKind = "top"
	PositionBottom PositionKind = "bottom"
	PositionIndex  PositionKind = "index"
	PositionRandom PositionKind = "random"
)

// ZoneRef names a zone by its owner and kind. Owner is empty for shared zones.
type ZoneRef struct {
	Owner string `json:"owner,omitempty"`
	Kind  string `json:"kind"`
}

type MoveCardPayload struct {
	CardID   string       `json:"cardId"`
	To       ZoneRef      `json:"to"`
	Position PositionKind `json:"position,omitempty"`
	Index    int          `json:"index,omitempty"`
	FaceDown bool         `json:"faceDown,omitempty"`
	X        int          `json:"x,omitempty"`
	Y        int          `json:"y,omitempty"`
}

type DrawCardsPayload struct {
	Count int `json:"count"`
}

type ShufflePayload struct {
	Zone ZoneRef `json:"zone"`
}

type CreateTokenPayload struct {
	Name string `json:"name"`
	X    int    `json:"x,omitempty"`
	Y    int    `json:"y,omitempty"`
}

type DestroyCardPayload struct {
	CardID string `json:"cardId"`
}

type SetCardAttributePayload struct {
	CardID    string `json:"cardId"`
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}

type AddCounterPayload struct {
	CardID  string `json:"cardId"`
	Counter string `json:"counter"`
	Delta   int    `json:"delta"`
}

type RollDiePayload struct {
	Sides int `json:"sides"`
}

type CreateArrowPayload struct {
	FromCardID   string `json:"fromCardId,omitempty"`
	FromPlayerID string `json:"fromPlayerId,omitempty"`
	ToCardID     string `json:"toCardId,omitempty"`
	ToPlayerID   string `json:"toPlayerId,omitempty"`
	ArrowType    string `json:"arrowType,omitempty"`
}

type DeleteArrowPayload struct {
	ArrowID string `json:"arrowId"`
}

type GameSayPayload struct {
	Message string `json:"message"`
}

// ---- Admin command payloads ----

type KickFromGamePayload struct {
	GameID   string `json:"gameId"`
	UserName string `json:"userName"`
}

type BanUserPayload struct {
	UserName string `json:"userName"`
	Reason   string `json:"reason,omitempty"`
	Minutes  int    `json:"minutes,omitempty"` // 0 means permanent
}

type AdjustModPayload struct {
	UserName string `json:"userName"`
	Level    int    `json:"level"`
}
