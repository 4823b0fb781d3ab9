package telegram

import (
	"context"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Endpoint resolves the Bot API endpoint template ("<base>/bot%s/%s").
// An empty override means the public Bot API.
func Endpoint(override string) string {
	override = strings.TrimSpace(override)
	if override == "" {
		return tgbotapi.APIEndpoint
	}
	if strings.Contains(override, "%s") {
		return override
	}
	return strings.TrimRight(override, "/") + "/bot%s/%s"
}

// NewAPI connects a long-polling client. The Bot API answers getMe during
// construction, so an invalid token fails here.
func NewAPI(token, endpoint string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPIWithAPIEndpoint(token, Endpoint(endpoint))
}

func newShortLivedAPI(token, endpoint string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPIWithClient(token, Endpoint(endpoint), &http.Client{Timeout: timeout})
}

func sendMarkdown(s Sender, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := s.Send(msg)
	return err
}

// APINotifier sends from an already connected bot without polling it.
type APINotifier struct {
	sender Sender
}

func NewNotifier(api *tgbotapi.BotAPI) *APINotifier {
	return &APINotifier{sender: api}
}

func (n *APINotifier) SendMessage(ctx context.Context, telegramID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return sendMarkdown(n.sender, telegramID, text)
}
