// Package notify pushes trade events to a chat.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"
)

// Notifier delivers a short text message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Noop drops every message.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(context.Context, string) error { return nil }

// Telegram sends messages to one chat through the bot API.
type Telegram struct {
	bot  *tele.Bot
	chat tele.ChatID
	log  zerolog.Logger
}

// TelegramOption configures the bot settings.
type TelegramOption func(*tele.Settings)

// WithAPIURL points the bot at a different Bot API server.
func WithAPIURL(u string) TelegramOption {
	return func(s *tele.Settings) { s.URL = u }
}

// NewTelegram creates a send-only bot. It does not poll for updates.
func NewTelegram(token string, chatID int64, log zerolog.Logger, opts ...TelegramOption) (*Telegram, error) {
	settings := tele.Settings{Token: token, Offline: true}
	for _, opt := range opts {
		opt(&settings)
	}
	bot, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{
		bot:  bot,
		chat: tele.ChatID(chatID),
		log:  log.With().Str("component", "telegram").Logger(),
	}, nil
}

// Notify sends text. The bot API call is not cancellable, so ctx is only
// checked before sending.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(t.chat, text); err != nil {
		t.log.Warn().Err(err).Msg("telegram send failed")
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// New returns a Telegram notifier when token and chat are set, otherwise Noop.
func New(token string, chatID int64, log zerolog.Logger) Notifier {
	if token == "" || chatID == 0 {
		log.Info().Msg("telegram not configured, notifications disabled (degraded)")
		return Noop{}
	}
	t, err := NewTelegram(token, chatID, log)
	if err != nil {
		log.Warn().Err(err).Msg("telegram unavailable, notifications disabled")
		return Noop{}
	}
	return t
}

var (
	_ Notifier = Noop{}
	_ Notifier = (*Telegram)(nil)
)
