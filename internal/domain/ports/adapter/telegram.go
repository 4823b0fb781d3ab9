// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// BotInfo is the platform identity returned by getMe.
type BotInfo struct {
	ID        int64
	Username  string
	FirstName string
}

// BotDirectory performs one-off Bot API calls on behalf of an arbitrary bot token.
type BotDirectory interface {
	// DropWebhook deletes any webhook and discards pending updates.
	DropWebhook(ctx context.Context, botToken string) error
	Identify(ctx context.Context, botToken string) (BotInfo, error)
	SendText(ctx context.Context, botToken string, chatID int64, text string) error
}

// Notifier sends a message from the process' own bot identity.
type Notifier interface {
	SendMessage(ctx context.Context, telegramID int64, text string) error
}
