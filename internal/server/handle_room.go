package server

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cardfree/card-server-go/internal/game"
	"github.com/cardfree/card-server-go/internal/protocol"
	"github.com/cardfree/card-server-go/internal/room"
	"github.com/cardfree/card-server-go/internal/session"
)

func (s *Server) handleRoomCommand(ctx context.Context, sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	switch cmd.Type {
	case protocol.CmdJoinRoom:
		return roomErrorEnvelope(cmd.ID, s.rooms.Join(cmd.RoomID, sess.Username()))
	case protocol.CmdLeaveRoom:
		return roomErrorEnvelope(cmd.ID, s.rooms.Leave(cmd.RoomID, sess.Username()))
	case protocol.CmdRoomSay:
		payload, ok := decodePayload[protocol.RoomSayPayload](cmd.Payload)
		if !ok || payload.Message == "" {
			return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
		}
		return roomErrorEnvelope(cmd.ID, s.rooms.Say(cmd.RoomID, sess.Username(), payload.Message))
	case protocol.CmdListGames:
		return s.handleListGames(sess, cmd)
	case protocol.CmdCreateGame:
		return s.handleCreateGame(sess, cmd)
	case protocol.CmdJoinGame:
		return s.handleJoinGame(ctx, sess, cmd)
	}
	return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
}

func roomErrorEnvelope(commandID uint64, err error) *protocol.Envelope {
	switch {
	case err == nil:
		return protocol.OkResponse(commandID)
	case errors.Is(err, room.ErrRoomNotFound):
		return protocol.ErrorResponse(commandID, protocol.RespRoomNotFound)
	case errors.Is(err, room.ErrAlreadyMember):
		return protocol.ErrorResponse(commandID, protocol.RespAlreadyMember)
	case errors.Is(err, room.ErrNotMember):
		return protocol.ErrorResponse(commandID, protocol.RespNotMember)
	default:
		return protocol.ErrorResponse(commandID, protocol.RespInternalError)
	}
}

func (s *Server) handleListGames(sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	r, ok := s.rooms.GetRoom(cmd.RoomID)
	if !ok {
		return protocol.ErrorResponse(cmd.ID, protocol.RespRoomNotFound)
	}
	if !r.HasMember(sess.Username()) {
		return protocol.ErrorResponse(cmd.ID, protocol.RespNotMember)
	}
	return dataOrInternal(cmd.ID, protocol.ListGamesPayload{Games: s.games.GamesInRoom(cmd.RoomID)})
}

func (s *Server) handleCreateGame(sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	r, ok := s.rooms.GetRoom(cmd.RoomID)
	if !ok {
		return protocol.ErrorResponse(cmd.ID, protocol.RespRoomNotFound)
	}
	if !r.HasMember(sess.Username()) {
		return protocol.ErrorResponse(cmd.ID, protocol.RespNotMember)
	}
	payload, ok := decodePayload[protocol.CreateGamePayload](cmd.Payload)
	if !ok {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
	}

	g, err := s.games.CreateGame(game.Config{
		RoomID:            cmd.RoomID,
		Description:       payload.Description,
		Password:          payload.Password,
		MaxPlayers:        payload.MaxPlayers,
		SpectatorsAllowed: payload.SpectatorsAllowed,
		Creator:           sess.Username(),
		PauseOnDisconnect: s.cfg.Game.PauseOnDisconnect,
	})
	if err != nil {
		if errors.Is(err, game.ErrInvalidConfig) {
			return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidConfig)
		}
		s.logger.Error("game creation failed",
			zap.String("room_id", cmd.RoomID),
			zap.String("creator", sess.Username()),
			zap.Error(err),
		)
		return protocol.ErrorResponse(cmd.ID, protocol.RespInternalError)
	}

	s.rooms.AnnounceGameCreated(cmd.RoomID, g.Summary())
	return dataOrInternal(cmd.ID, map[string]string{"gameId": g.ID})
}

func (s *Server) handleJoinGame(ctx context.Context, sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	g, ok := s.games.GetGame(cmd.GameID)
	if !ok {
		return protocol.ErrorResponse(cmd.ID, protocol.RespGameNotFound)
	}
	r, ok := s.rooms.GetRoom(g.Config().RoomID)
	if !ok || !r.HasMember(sess.Username()) {
		return protocol.ErrorResponse(cmd.ID, protocol.RespNotMember)
	}
	payload, ok := decodePayload[protocol.JoinGamePayload](cmd.Payload)
	if !ok {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
	}

	res := g.Join(ctx, sess.Username(), sess.ID, payload.Password, payload.AsSpectator, payload.Deck)
	return resultEnvelope(cmd.ID, res)
}
