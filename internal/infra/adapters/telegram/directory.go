package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-pix-manager/internal/domain/ports/adapter"
	"telegram-pix-manager/internal/infra/logging"
)

var _ adapter.BotDirectory = (*Directory)(nil)

// Directory makes one-off Bot API calls with an arbitrary bot token: clearing
// webhooks, resolving identities and messaging owners from their own bot.
type Directory struct {
	endpoint string
	timeout  time.Duration
	log      *zerolog.Logger
}

func NewDirectory(endpoint string, timeout time.Duration, logger *zerolog.Logger) *Directory {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	l := logger.With().Str("component", "TelegramDirectory").Logger()
	return &Directory{endpoint: endpoint, timeout: timeout, log: &l}
}

func (d *Directory) open(ctx context.Context, botToken string) (*tgbotapi.BotAPI, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	api, err := newShortLivedAPI(botToken, d.endpoint, d.timeout)
	if err != nil {
		return nil, fmt.Errorf("bot %s: %w", logging.BotID(botToken), err)
	}
	return api, nil
}

func (d *Directory) DropWebhook(ctx context.Context, botToken string) error {
	api, err := d.open(ctx, botToken)
	if err != nil {
		return err
	}
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

func (d *Directory) Identify(ctx context.Context, botToken string) (adapter.BotInfo, error) {
	api, err := d.open(ctx, botToken)
	if err != nil {
		return adapter.BotInfo{}, err
	}
	return adapter.BotInfo{
		ID:        api.Self.ID,
		Username:  api.Self.UserName,
		FirstName: api.Self.FirstName,
	}, nil
}

// Username returns configured without a leading "@", or the bot's own
// username from getMe when nothing was configured.
func (d *Directory) Username(ctx context.Context, botToken, configured string) (string, error) {
	if name := strings.TrimPrefix(strings.TrimSpace(configured), "@"); name != "" {
		return name, nil
	}
	info, err := d.Identify(ctx, botToken)
	if err != nil {
		return "", err
	}
	return info.Username, nil
}

func (d *Directory) SendText(ctx context.Context, botToken string, chatID int64, text string) error {
	api, err := d.open(ctx, botToken)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	d.log.Debug().Str("bot", logging.BotID(botToken)).Int64("chat", chatID).Msg("message sent")
	return nil
}
