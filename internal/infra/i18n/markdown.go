package i18n

import "strings"

var mdEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// EscapeMarkdown escapes user-supplied text for Telegram's legacy Markdown.
func EscapeMarkdown(s string) string { return mdEscaper.Replace(s) }
