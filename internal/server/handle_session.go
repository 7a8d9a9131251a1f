package server

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cardfree/card-server-go/internal/protocol"
	"github.com/cardfree/card-server-go/internal/repository"
	"github.com/cardfree/card-server-go/internal/session"
	"github.com/cardfree/card-server-go/internal/user"
)

func (s *Server) handleSessionCommand(ctx context.Context, sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	switch cmd.Type {
	case protocol.CmdPing:
		return protocol.OkResponse(cmd.ID)
	case protocol.CmdRequestPasswordSalt:
		return s.handleRequestPasswordSalt(ctx, sess, cmd)
	case protocol.CmdLogin:
		return s.handleLogin(ctx, sess, cmd)
	case protocol.CmdRegister:
		return s.handleRegister(ctx, sess, cmd)
	case protocol.CmdActivate:
		return s.handleActivate(ctx, sess, cmd)
	case protocol.CmdForgotPassword:
		return s.handleForgotPassword(ctx, sess, cmd)
	case protocol.CmdResetPassword:
		return s.handleResetPassword(ctx, sess, cmd)
	case protocol.CmdListUsers:
		if !sess.LoggedIn() {
			return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidSessionState)
		}
		return dataOrInternal(cmd.ID, protocol.UserListPayload{Users: s.sessions.OnlineUsers()})
	case protocol.CmdSaveDeck:
		return s.handleSaveDeck(ctx, sess, cmd)
	case protocol.CmdLoadDeck:
		return s.handleLoadDeck(ctx, sess, cmd)
	}
	return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
}

func (s *Server) handleRequestPasswordSalt(ctx context.Context, sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	payload, ok := decodePayload[protocol.RequestPasswordSaltPayload](cmd.Payload)
	if !ok || payload.UserName == "" {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
	}
	if err := sess.BeginSaltRequest(); err != nil {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidSessionState)
	}

	salt, err := s.users.Salt(ctx, payload.UserName)
	if err != nil {
		s.logger.Error("salt lookup failed",
			zap.String("username", payload.UserName),
			zap.Error(err),
		)
		return protocol.ErrorResponse(cmd.ID, protocol.RespStorageFailure)
	}
	return dataOrInternal(cmd.ID, protocol.PasswordSaltPayload{Salt: salt})
}

func (s *Server) handleLogin(ctx context.Context, sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	payload, ok := decodePayload[protocol.LoginPayload](cmd.Payload)
	if !ok || payload.UserName == "" {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
	}
	if err := sess.BeginLogin(); err != nil {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidSessionState)
	}

	guest := payload.Proof == ""
	var admin bool
	if guest {
		if err := s.users.CheckGuestName(ctx, payload.UserName); err != nil {
			sess.LoginFailed()
			return protocol.ErrorResponse(cmd.ID, loginErrorCode(err))
		}
	} else {
		rec, err := s.users.Authenticate(ctx, payload.UserName, payload.Proof)
		if err != nil {
			sess.LoginFailed()
			s.logger.Info("login failed",
				zap.String("username", payload.UserName),
				zap.String("session_id", sess.ID),
				zap.Error(err),
			)
			return protocol.ErrorResponse(cmd.ID, loginErrorCode(err))
		}
		admin = rec.Admin
	}

	if err := sess.LoginSucceeded(payload.UserName, admin); err != nil {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidSessionState)
	}

	// A second login on the same account replaces the old connection.
	if prev := s.sessions.BindUser(payload.UserName, sess.ID); prev != nil {
		if env, err := protocol.NewSessionEvent(protocol.SessionEventConnectionClosed,
			protocol.ConnectionClosedPayload{Reason: "logged in from another connection"}); err == nil {
			prev.Enqueue(env)
		}
		s.sessions.RemoveSession(prev.ID)
	}

	s.logger.Info("user logged in",
		zap.String("username", payload.UserName),
		zap.String("session_id", sess.ID),
		zap.Bool("guest", guest),
		zap.Bool("admin", admin),
	)

	modLevel := 0
	if admin {
		modLevel = 1
	}
	return dataOrInternal(cmd.ID, protocol.LoginResultPayload{
		UserName: payload.UserName,
		Guest:    guest,
		ModLevel: modLevel,
	})
}

func loginErrorCode(err error) protocol.ResponseCode {
	switch {
	case errors.Is(err, user.ErrBanned):
		return protocol.RespUserBanned
	case errors.Is(err, user.ErrNotActivated):
		return protocol.RespActivationFailed
	case errors.Is(err, user.ErrLoginFailed), errors.Is(err, user.ErrInvalidName),
		errors.Is(err, user.ErrUserExists):
		return protocol.RespLoginFailed
	default:
		return protocol.RespStorageFailure
	}
}

func (s *Server) handleRegister(ctx context.Context, sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	payload, ok := decodePayload[protocol.RegisterPayload](cmd.Payload)
	if !ok || payload.UserName == "" {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
	}
	if err := sess.BeginRegistration(); err != nil {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidSessionState)
	}
	defer sess.RegistrationDone()

	rec, err := s.users.Register(ctx, payload.UserName, payload.Email, payload.Password)
	if err != nil {
		s.logger.Info("registration failed",
			zap.String("username", payload.UserName),
			zap.Error(err),
		)
		return protocol.ErrorResponse(cmd.ID, protocol.RespRegistrationFailed)
	}

	if !rec.Active {
		token, err := s.tokens.GenerateToken(rec.Name)
		if err != nil {
			s.logger.Error("failed to mint activation token",
				zap.String("username", rec.Name),
				zap.Error(err),
			)
			return protocol.ErrorResponse(cmd.ID, protocol.RespInternalError)
		}
		if err := s.mailer.SendActivationToken(ctx, rec.Email, rec.Name, token); err != nil {
			s.logger.Warn("activation mail failed",
				zap.String("username", rec.Name),
				zap.Error(err),
			)
		}
	}
	return protocol.OkResponse(cmd.ID)
}

func (s *Server) handleActivate(ctx context.Context, sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	payload, ok := decodePayload[protocol.ActivatePayload](cmd.Payload)
	if !ok || payload.UserName == "" || payload.Token == "" {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
	}
	if err := sess.BeginActivation(); err != nil {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidSessionState)
	}

	username, ok := s.tokens.ConsumeToken(payload.Token)
	if !ok || username != payload.UserName {
		sess.ActivationFailed()
		return protocol.ErrorResponse(cmd.ID, protocol.RespActivationFailed)
	}
	if err := s.users.Activate(ctx, username); err != nil {
		sess.ActivationFailed()
		if errors.Is(err, user.ErrUserNotFound) {
			return protocol.ErrorResponse(cmd.ID, protocol.RespUserNotFound)
		}
		return protocol.ErrorResponse(cmd.ID, protocol.RespStorageFailure)
	}

	sess.ActivationDone()
	return protocol.OkResponse(cmd.ID)
}

// handleForgotPassword always reports success so the endpoint cannot be
// used to probe account existence. A reset token goes out only for known
// accounts with an email on file.
func (s *Server) handleForgotPassword(ctx context.Context, _ *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	payload, ok := decodePayload[protocol.ForgotPasswordPayload](cmd.Payload)
	if !ok || payload.UserName == "" {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
	}

	rec, err := s.users.Lookup(ctx, payload.UserName)
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		return protocol.OkResponse(cmd.ID)
	case err != nil:
		return protocol.ErrorResponse(cmd.ID, protocol.RespStorageFailure)
	case rec.Email == "":
		return protocol.OkResponse(cmd.ID)
	}

	token, err := s.tokens.GenerateToken(rec.Name)
	if err != nil {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInternalError)
	}
	if mailErr := s.mailer.SendPasswordResetToken(ctx, rec.Email, rec.Name, token); mailErr != nil {
		s.logger.Warn("password reset mail failed",
			zap.String("username", rec.Name),
			zap.Error(mailErr),
		)
	}
	return protocol.OkResponse(cmd.ID)
}

// handleResetPassword redeems a reset token minted by ForgotPassword.
func (s *Server) handleResetPassword(ctx context.Context, _ *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	payload, ok := decodePayload[protocol.ResetPasswordPayload](cmd.Payload)
	if !ok || payload.UserName == "" || payload.Token == "" {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
	}

	username, ok := s.tokens.ConsumeToken(payload.Token)
	if !ok || username != payload.UserName {
		return protocol.ErrorResponse(cmd.ID, protocol.RespPermissionDenied)
	}
	if err := s.users.ResetPassword(ctx, username, payload.NewPassword); err != nil {
		if errors.Is(err, user.ErrWeakPassword) {
			return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
		}
		return protocol.ErrorResponse(cmd.ID, protocol.RespStorageFailure)
	}

	s.logger.Info("password reset completed", zap.String("username", username))
	return protocol.OkResponse(cmd.ID)
}

func (s *Server) handleSaveDeck(ctx context.Context, sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	if !sess.LoggedIn() {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidSessionState)
	}
	if s.decks == nil {
		return protocol.ErrorResponse(cmd.ID, protocol.RespStorageFailure)
	}
	payload, ok := decodePayload[protocol.SaveDeckPayload](cmd.Payload)
	if !ok || payload.Name == "" {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
	}

	if err := s.decks.SaveDeck(ctx, sess.Username(), payload.Name, payload.Cards); err != nil {
		s.logger.Error("deck save failed",
			zap.String("username", sess.Username()),
			zap.String("deck", payload.Name),
			zap.Error(err),
		)
		return protocol.ErrorResponse(cmd.ID, protocol.RespStorageFailure)
	}
	return protocol.OkResponse(cmd.ID)
}

func (s *Server) handleLoadDeck(ctx context.Context, sess *session.Session, cmd *protocol.CommandContainer) *protocol.Envelope {
	if !sess.LoggedIn() {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidSessionState)
	}
	if s.decks == nil {
		return protocol.ErrorResponse(cmd.ID, protocol.RespStorageFailure)
	}
	payload, ok := decodePayload[protocol.LoadDeckPayload](cmd.Payload)
	if !ok {
		return protocol.ErrorResponse(cmd.ID, protocol.RespInvalidCommand)
	}

	// An empty name lists the user's saved decks.
	if payload.Name == "" {
		names, err := s.decks.ListDecks(ctx, sess.Username())
		if err != nil {
			return protocol.ErrorResponse(cmd.ID, protocol.RespStorageFailure)
		}
		return dataOrInternal(cmd.ID, protocol.DeckListPayload{Names: names})
	}

	cards, err := s.decks.LoadDeck(ctx, sess.Username(), payload.Name)
	if errors.Is(err, repository.ErrDeckNotFound) {
		return protocol.ErrorResponse(cmd.ID, protocol.RespDeckNotFound)
	}
	if err != nil {
		return protocol.ErrorResponse(cmd.ID, protocol.RespStorageFailure)
	}
	return dataOrInternal(cmd.ID, protocol.DeckPayload{Name: payload.Name, Cards: cards})
}

func dataOrInternal(commandID uint64, data any) *protocol.Envelope {
	env, err := protocol.DataResponse(commandID, data)
	if err != nil {
		return protocol.ErrorResponse(commandID, protocol.RespInternalError)
	}
	return env
}
