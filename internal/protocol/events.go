package protocol

// ResponseCode is the result of exactly one command.
type ResponseCode string

const (
	RespOk ResponseCode = "Ok"

	// Session errors.
	RespInvalidSessionState ResponseCode = "InvalidSessionState"
	RespLoginFailed         ResponseCode = "LoginFailed"
	RespUserBanned          ResponseCode = "UserBanned"
	RespRegistrationFailed  ResponseCode = "RegistrationFailed"
	RespActivationFailed    ResponseCode = "ActivationFailed"
	RespUserNotFound        ResponseCode = "UserNotFound"

	// Room errors.
	RespRoomNotFound  ResponseCode = "RoomNotFound"
	RespAlreadyMember ResponseCode = "AlreadyMember"
	RespNotMember     ResponseCode = "NotMember"
	RespInvalidConfig ResponseCode = "InvalidConfig"
	RespWrongPassword ResponseCode = "WrongPassword"
	RespGameFull      ResponseCode = "GameFull"
	RespGameNotFound  ResponseCode = "GameNotFound"
	RespDeckNotFound  ResponseCode = "DeckNotFound"

	// Structural validation errors.
	RespCardNotFound      ResponseCode = "CardNotFound"
	RespZoneNotFound      ResponseCode = "ZoneNotFound"
	RespIndexOutOfRange   ResponseCode = "IndexOutOfRange"
	RespInsufficientCards ResponseCode = "InsufficientCards"
	RespPermissionDenied  ResponseCode = "PermissionDenied"
	RespInvalidCommand    ResponseCode = "InvalidCommand"
	RespGamePaused        ResponseCode = "GamePaused"

	// Resource errors.
	RespServerBusy ResponseCode = "ServerBusy"

	// Collaborator / internal errors.
	RespStorageFailure ResponseCode = "StorageFailure"
	RespInternalError  ResponseCode = "InternalError"
)

// SessionEventType identifies a server-to-client session notification.
type SessionEventType string

const (
	SessionEventServerIdentification SessionEventType = "ServerIdentification"
	SessionEventServerMessage        SessionEventType = "ServerMessage"
	SessionEventConnectionClosed     SessionEventType = "ConnectionClosed"
)

// RoomEventType identifies a room broadcast.
type RoomEventType string

const (
	RoomEventUserJoined  RoomEventType = "UserJoined"
	RoomEventUserLeft    RoomEventType = "UserLeft"
	RoomEventListGames   RoomEventType = "ListGames"
	RoomEventGameCreated RoomEventType = "GameCreated"
	RoomEventGameClosed  RoomEventType = "GameClosed"
	RoomEventRoomSay     RoomEventType = "RoomSay"
)

// ---- Session event payloads ----

type ServerIdentificationPayload struct {
	ServerName      string `json:"serverName"`
	ServerVersion   string `json:"serverVersion"`
	ProtocolVersion int    `json:"protocolVersion"`
	SessionID       string `json:"sessionId"`
}

type ServerMessagePayload struct {
	Message string `json:"message"`
}

type ConnectionClosedPayload struct {
	Reason string `json:"reason"`
}

type PasswordSaltPayload struct {
	Salt string `json:"salt"`
}

type LoginResultPayload struct {
	UserName string `json:"userName"`
	Guest    bool   `json:"guest,omitempty"`
	ModLevel int    `json:"modLevel,omitempty"`
}

type UserListPayload struct {
	Users []string `json:"users"`
}

type DeckPayload struct {
	Name  string   `json:"name"`
	Cards []string `json:"cards"`
}

type DeckListPayload struct {
	Names []string `json:"names"`
}

// ---- Room event payloads ----

type UserJoinedPayload struct {
	UserName string `json:"userName"`
}

type UserLeftPayload struct {
	UserName string `json:"userName"`
}

type RoomSayEventPayload struct {
	UserName string `json:"userName"`
	Message  string `json:"message"`
}

// GameSummary describes one game inside a room listing.
type GameSummary struct {
	GameID            string `json:"gameId"`
	Description       string `json:"description,omitempty"`
	HasPassword       bool   `json:"hasPassword"`
	PlayerCount       int    `json:"playerCount"`
	MaxPlayers        int    `json:"maxPlayers"`
	SpectatorsAllowed bool   `json:"spectatorsAllowed"`
	SpectatorCount    int    `json:"spectatorCount"`
	Started           bool   `json:"started"`
}

type ListGamesPayload struct {
	Games []GameSummary `json:"games"`
}

type GameCreatedPayload struct {
	Game GameSummary `json:"game"`
}

type GameClosedPayload struct {
	GameID string `json:"gameId"`
}
