package server

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/cardfree/card-server-go/internal/game"
	"github.com/cardfree/card-server-go/internal/protocol"
	"github.com/cardfree/card-server-go/internal/session"
)

// route dispatches one command and always produces exactly one response.
// Room, game and admin commands require a completed login; admin commands
// additionally require moderator rights.
func (s *Server) route(ctx context.Context, sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	sess.Touch()

	switch {
	case cmd.Type.IsAdminCommand():
		if !sess.LoggedIn() {
			return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidSessionState)
		}
		if !sess.IsAdmin() {
			s.logger.Warn("admin command from non-admin session",
				zap.String("session_id", sess.ID),
				zap.String("username", sess.Username()),
				zap.String("command", string(cmd.Type)),
			)
			return protocol.ErrorResponse(cmd.ID, protocol.RespPermissionDenied)
		}
		return s.handleAdminCommand(ctx, sess, cmd)

	case cmd.Type.IsGameCommand():
		if !sess.LoggedIn() {
			return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidSessionState)
		}
		return s.handleGameCommand(ctx, sess, cmd)

	case cmd.Type.IsRoomCommand():
		if !sess.LoggedIn() {
			return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidSessionState)
		}
		return s.handleRoomCommand(ctx, sess, cmd)

	default:
		return s.handleSessionCommand(ctx, sess, cmd)
	}
}

// decodePayload parses a command payload, treating an absent payload as the
// zero value.
func decodePayload[T any](raw json.RawMessage) (T, bool) {
	var v T
	if len(raw) == 0 {
		return v, true
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false
	}
	return v, true
}

// resultEnvelope converts an engine result into the command's response.
func resultEnvelope(commandID uint64, res game.Result) *protocol.Envelope {
	if res.Code != protocol.RespOk {
		return protocol.ErrorResponse(commandID, res.Code)
	}
	if res.Data == nil {
		return protocol.OkResponse(commandID)
	}
	env, err := protocol.DataResponse(commandID, res.Data)
	if err != nil {
		return protocol.ErrorResponse(commandID, protocol.RespInternalError)
	}
	return env
}
