// Package notify delivers one time codes and password reset tokens to users.
package notify

import (
	"context"

	"github.com/jrsteele09/go-session-server/internal/config"
	"github.com/rs/zerolog"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Notifier sends out-of-band messages. Implementations must not log the
// code or token they deliver.
type Notifier interface {
	SendMFACode(ctx context.Context, channel Channel, destination, code string) error
	SendPasswordReset(ctx context.Context, email, resetToken string) error
}

// FromConfig returns a webhook notifier when one is configured and a
// LogNotifier otherwise.
func FromConfig(cfg config.NotifyConfig, logger zerolog.Logger) Notifier {
	if cfg.GetNotifyWebhookURL() == "" {
		return NewLogNotifier(logger)
	}
	return NewWebhookNotifier(cfg.GetNotifyWebhookURL(), cfg.GetNotifyWebhookKey(), WithTimeout(cfg.GetNotifyTimeout()))
}

// LogNotifier records that a message would have been sent. Used in
// development when no webhook is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendMFACode(_ context.Context, channel Channel, destination, _ string) error {
	n.logger.Info().Str("channel", string(channel)).Str("to", mask(destination)).Msg("mfa code issued (no delivery configured)")
	return nil
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, email, _ string) error {
	n.logger.Info().Str("to", mask(email)).Msg("password reset issued (no delivery configured)")
	return nil
}

// mask keeps the first and last two characters of a destination.
func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
