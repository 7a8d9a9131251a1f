package server

import (
	"context"

	"github.com/cardfree/card-server-go/internal/protocol"
	"github.com/cardfree/card-server-go/internal/session"
)

func (s *Server) handleGameCommand(ctx context.Context, sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	g, ok := s.games.GetGame(cmd.GameID)
	if !ok {
		return protocol.ErrorResponse(cmd.ID, protocol.RespGameNotFound)
	}

	res := g.Submit(ctx, sess.Username(), cmd.Type, cmd.Payload)

	// The last participant leaving ends the game.
	if cmd.Type == protocol.CmdLeaveGame && res.Code == protocol.RespOk {
		roomID := g.Config().RoomID
		if s.games.DestroyIfEmpty(cmd.GameID) {
			s.rooms.AnnounceGameClosed(roomID, cmd.GameID)
		}
	}
	return resultEnvelope(cmd.ID, res)
}
