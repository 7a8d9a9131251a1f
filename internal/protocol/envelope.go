package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is the outermost wire message. Exactly one payload field is set;
// anything else fails decoding with ErrMalformedFrame.
type Envelope struct {
	Command  *CommandContainer   `json:"command,omitempty"`
	Response *Response           `json:"response,omitempty"`
	Session  *SessionEvent       `json:"sessionEvent,omitempty"`
	Room     *RoomEvent          `json:"roomEvent,omitempty"`
	Game     *GameEventContainer `json:"gameEvent,omitempty"`
}

// CommandContainer carries one client command. The ID is chosen by the client and
// echoed back in the correlated Response. RoomID/GameID route room and game commands.
type CommandContainer struct {
	ID      uint64          `json:"id"`
	Type    CommandType     `json:"type"`
	RoomID  string          `json:"roomId,omitempty"`
	GameID  string          `json:"gameId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response correlates to exactly one CommandContainer by ID.
type Response struct {
	CommandID uint64          `json:"commandId"`
	Code      ResponseCode    `json:"code"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SessionEvent is a server-to-client notification scoped to the session.
type SessionEvent struct {
	Type    SessionEventType `json:"type"`
	Payload json.RawMessage  `json:"payload,omitempty"`
}

// RoomEvent is broadcast to all members of a room.
type RoomEvent struct {
	RoomID  string          `json:"roomId"`
	Type    RoomEventType   `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// GameEventContainer carries one or more ordered, visibility-filtered game events.
type GameEventContainer struct {
	GameID string      `json:"gameId"`
	Events []GameEvent `json:"events"`
}

// GameEvent is a single filtered game event as delivered to one recipient.
// Seq matches the canonical replay sequence number of the event it projects.
type GameEvent struct {
	Seq      uint64          `json:"seq"`
	Type     string          `json:"type"`
	PlayerID string          `json:"playerId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// DecodeEnvelope parses a frame body into an envelope. It is side-effect-free.
func DecodeEnvelope(b []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	count := 0
	if env.Command != nil {
		count++
	}
	if env.Response != nil {
		count++
	}
	if env.Session != nil {
		count++
	}
	if env.Room != nil {
		count++
	}
	if env.Game != nil {
		count++
	}
	if count != 1 {
		return nil, fmt.Errorf("%w: envelope carries %d payloads, want exactly 1", ErrMalformedFrame, count)
	}
	return &env, nil
}

// EncodeEnvelope serializes an envelope into a frame body.
func EncodeEnvelope(env *Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode envelope: %w", err)
	}
	return b, nil
}

// OkResponse builds a success response for the given command ID.
func OkResponse(commandID uint64) *Envelope {
	return &Envelope{Response: &Response{CommandID: commandID, Code: RespOk}}
}

// ErrorResponse builds an error response for the given command ID.
func ErrorResponse(commandID uint64, code ResponseCode) *Envelope {
	return &Envelope{Response: &Response{CommandID: commandID, Code: code}}
}

// DataResponse builds a success response with a JSON data payload.
func DataResponse(commandID uint64, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode response data: %w", err)
	}
	return &Envelope{Response: &Response{CommandID: commandID, Code: RespOk, Data: raw}}, nil
}

// NewSessionEvent builds a session event envelope with a JSON payload.
func NewSessionEvent(t SessionEventType, payload any) (*Envelope, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Session: &SessionEvent{Type: t, Payload: raw}}, nil
}

// NewRoomEvent builds a room event envelope with a JSON payload.
func NewRoomEvent(roomID string, t RoomEventType, payload any) (*Envelope, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Room: &RoomEvent{RoomID: roomID, Type: t, Payload: raw}}, nil
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode event payload: %w", err)
	}
	return raw, nil
}
