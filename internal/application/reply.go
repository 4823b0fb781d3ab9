package application

import "telegram-pix-manager/internal/domain/ports/adapter"

// Reply is what a handler wants the chat to show. The Telegram adapter only
// forwards it. An empty Text sends nothing.
type Reply struct {
	Text    string
	Buttons [][]adapter.InlineButton
	// Edit rewrites the message carrying the pressed button instead of sending a new one.
	Edit bool
	// DeleteIncoming removes the user's message, used when it carried a secret.
	DeleteIncoming bool
	// Notice answers the button press; Alert shows it as a dialog.
	Notice string
	Alert  bool
}

func row(buttons ...adapter.InlineButton) []adapter.InlineButton { return buttons }

func cb(text, data string) adapter.InlineButton { return adapter.InlineButton{Text: text, Data: data} }

func link(text, url string) adapter.InlineButton { return adapter.InlineButton{Text: text, URL: url} }
