package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/cardfree/card-server-go/internal/config"
)

// Client delivers account lifecycle mail. The server treats delivery as
// best effort; a failure never blocks registration or password reset.
type Client interface {
	SendActivationToken(ctx context.Context, email, username, token string) error
	SendPasswordResetToken(ctx context.Context, email, username, token string) error
}

// NewClient returns the configured mail client. Without a configured
// provider the disabled client is used, which logs tokens instead of
// sending them so that local setups stay usable.
func NewClient(cfg config.MailConfig, logger *zap.Logger) Client {
	if !cfg.Enabled {
		return &disabledClient{logger: logger}
	}
	// No outbound provider is wired yet; log until one is.
	return &disabledClient{logger: logger}
}

type disabledClient struct {
	logger *zap.Logger
}

func (c *disabledClient) SendActivationToken(_ context.Context, email, username, token string) error {
	c.logger.Info("mail disabled, activation token not sent",
		zap.String("username", username),
		zap.String("email", email),
		zap.String("token", token),
	)
	return nil
}

func (c *disabledClient) SendPasswordResetToken(_ context.Context, email, username, token string) error {
	c.logger.Info("mail disabled, password reset token not sent",
		zap.String("username", username),
		zap.String("email", email),
		zap.String("token", token),
	)
	return nil
}
