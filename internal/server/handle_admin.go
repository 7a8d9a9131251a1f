package server

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cardfree/card-server-go/internal/protocol"
	"github.com/cardfree/card-server-go/internal/session"
	"github.com/cardfree/card-server-go/internal/user"
)

func (s *Server) handleAdminCommand(ctx context.Context, sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	switch cmd.Type {
	case protocol.CmdKickFromGame:
		return s.handleKickFromGame(ctx, sess, cmd)
	case protocol.CmdBanUser:
		return s.handleBanUser(ctx, sess, cmd)
	case protocol.CmdAdjustMod:
		return s.handleAdjustMod(ctx, sess, cmd)
	}
	return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
}

// handleKickFromGame forces a participant out of a game as if they had left
// themselves.
func (s *Server) handleKickFromGame(ctx context.Context, sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	payload, ok := decodePayload[protocol.KickFromGamePayload](cmd.Payload)
	if !ok || payload.GameID == "" || payload.UserName == "" {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
	}

	g, found := s.games.GetGame(payload.GameID)
	if !found {
		return protocol.ErrorResponse(cmd.ID, protocol.RespGameNotFound)
	}

	res := g.Submit(ctx, payload.UserName, protocol.CmdLeaveGame, nil)
	if res.Code != protocol.RespOk {
		return protocol.ErrorResponse(cmd.ID, res.Code)
	}

	roomID := g.Config().RoomID
	if s.games.DestroyIfEmpty(payload.GameID) {
		s.rooms.AnnounceGameClosed(roomID, payload.GameID)
	}

	s.logger.Info("user kicked from game",
		zap.String("game_id", payload.GameID),
		zap.String("username", payload.UserName),
		zap.String("admin", sess.Username()),
	)
	return protocol.OkResponse(cmd.ID)
}

// handleBanUser records the ban and tears down the user's live presence.
func (s *Server) handleBanUser(ctx context.Context, sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	payload, ok := decodePayload[protocol.BanUserPayload](cmd.Payload)
	if !ok || payload.UserName == "" {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
	}

	var until time.Time
	if payload.Minutes > 0 {
		until = time.Now().Add(time.Duration(payload.Minutes) * time.Minute)
	}
	if err := s.users.BanUser(ctx, payload.UserName, payload.Reason, sess.Username(), until); err != nil {
		return protocol.ErrorResponse(cmd.ID, protocol.RespStorageFailure)
	}

	if target, found := s.sessions.SessionForUser(payload.UserName); found {
		if env, err := protocol.NewSessionEvent(protocol.SessionEventConnectionClosed,
			protocol.ConnectionClosedPayload{Reason: "banned: " + payload.Reason}); err == nil {
			target.Enqueue(env)
		}
		s.rooms.RemoveEverywhere(payload.UserName)
		for _, g := range s.games.GamesWithParticipant(payload.UserName) {
			g.Submit(ctx, payload.UserName, protocol.CmdLeaveGame, nil)
			if s.games.DestroyIfEmpty(g.ID) {
				s.rooms.AnnounceGameClosed(g.Config().RoomID, g.ID)
			}
		}
		s.sessions.RemoveSession(target.ID)
	}
	return protocol.OkResponse(cmd.ID)
}

func (s *Server) handleAdjustMod(ctx context.Context, sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	payload, ok := decodePayload[protocol.AdjustModPayload](cmd.Payload)
	if !ok || payload.UserName == "" {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
	}

	if err := s.users.AdjustMod(ctx, payload.UserName, payload.Level > 0); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return protocol.ErrorResponse(cmd.ID, protocol.RespUserNotFound)
		}
		return protocol.ErrorResponse(cmd.ID, protocol.RespStorageFailure)
	}

	s.logger.Info("mod level adjusted",
		zap.String("username", payload.UserName),
		zap.Int("level", payload.Level),
		zap.String("admin", sess.Username()),
	)
	return protocol.OkResponse(cmd.ID)
}
