package model

import "strings"

const (
	// BotTokenSeparator splits a Telegram bot token into id and secret.
	BotTokenSeparator = ":"
	// PushInPayTokenSeparator splits a PushInPay API token into id and secret.
	PushInPayTokenSeparator = "|"

	minTokenSecretLen = 30
)

// ValidTokenShape reports whether token is "<digits><sep><secret>" with a
// secret of at least 30 characters.
func ValidTokenShape(token, sep string) bool {
	parts := strings.Split(token, sep)
	if len(parts) != 2 {
		return false
	}
	if parts[0] == "" {
		return false
	}
	for _, r := range parts[0] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(parts[1]) >= minTokenSecretLen
}

// ValidBotToken validates the shape of a Telegram bot token.
func ValidBotToken(token string) bool { return ValidTokenShape(token, BotTokenSeparator) }

// ValidPushInPayToken validates the shape of a PushInPay API token.
func ValidPushInPayToken(token string) bool { return ValidTokenShape(token, PushInPayTokenSeparator) }
