package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-pix-manager/internal/application"
	"telegram-pix-manager/internal/domain/ports/adapter"
	"telegram-pix-manager/internal/domain/ports/repository"
	"telegram-pix-manager/internal/infra/i18n"
	"telegram-pix-manager/internal/infra/metrics"
	red "telegram-pix-manager/internal/infra/redis"
)

var _ adapter.Notifier = (*Bot)(nil)

// Sender is the slice of *tgbotapi.BotAPI the runtime needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Options struct {
	// Scope namespaces rate-limit keys, usually the bot id.
	Scope              string
	Workers            int
	RateLimitPerMinute int
	// Quote answers messages as replies to them.
	Quote bool
}

// Bot polls one bot identity and routes updates through a route table.
// Updates from the same user are handled in arrival order by a single
// goroutine; different users run in parallel.
type Bot struct {
	api     *tgbotapi.BotAPI
	sender  Sender
	routes  routes
	limiter repository.RateLimiter
	t       *i18n.Translator
	opts    Options
	log     *zerolog.Logger
}

func newBot(api *tgbotapi.BotAPI, rt routes, limiter repository.RateLimiter, translator *i18n.Translator, opts Options, logger *zerolog.Logger) *Bot {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 30
	}
	b := &Bot{
		api:     api,
		routes:  rt,
		limiter: limiter,
		t:       translator,
		opts:    opts,
		log:     logger,
	}
	if api != nil {
		b.sender = api
	}
	return b
}

// Username is the bot's own @handle.
func (b *Bot) Username() string {
	if b.api == nil {
		return ""
	}
	return b.api.Self.UserName
}

// StartPolling blocks until ctx is cancelled.
func (b *Bot) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	shards := make([]chan tgbotapi.Update, b.opts.Workers)
	for i := range shards {
		shards[i] = make(chan tgbotapi.Update, 32)
		wg.Add(1)
		go func(id int, in <-chan tgbotapi.Update) {
			defer wg.Done()
			for up := range in {
				if err := b.handleUpdate(ctx, up); err != nil {
					b.log.Warn().Err(err).Int("worker", id).Msg("update failed")
				}
			}
		}(i, shards[i])
	}

	b.log.Info().Str("username", b.Username()).Int("workers", b.opts.Workers).Msg("polling started")
	defer func() {
		b.api.StopReceivingUpdates()
		for _, ch := range shards {
			close(ch)
		}
		wg.Wait()
		b.log.Info().Msg("polling stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			select {
			case shards[shardOf(up, len(shards))] <- up:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// shardOf pins every update of one user to the same worker.
func shardOf(up tgbotapi.Update, n int) int {
	var id int64
	if from := up.SentFrom(); from != nil {
		id = from.ID
	}
	if id < 0 {
		id = -id
	}
	return int(id % int64(n))
}

// SendMessage sends Markdown text from this bot.
func (b *Bot) SendMessage(ctx context.Context, telegramID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return sendMarkdown(b.sender, telegramID, text)
}

func (b *Bot) allow(ctx context.Context, userID int64, command string) bool {
	if b.limiter == nil {
		return true
	}
	allowed, err := b.limiter.Allow(ctx, red.UserCommandKey(b.opts.Scope, userID, command), b.opts.RateLimitPerMinute, time.Minute)
	if err != nil {
		b.log.Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !allowed {
		metrics.IncRateLimitTriggered()
	}
	return allowed
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return b.handleQuery(ctx, update.CallbackQuery)
	}
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}

	command := "message"
	if msg.IsCommand() {
		command = "/" + msg.Command()
	}
	if !b.allow(ctx, msg.From.ID, command) {
		return b.SendMessage(ctx, msg.Chat.ID, b.t.T("rate_limited"))
	}

	if msg.IsCommand() {
		metrics.IncTelegramCommand(command)
		if fn, ok := b.routes.commands[msg.Command()]; ok {
			return b.render(ctx, msg, nil, fn(ctx, msg))
		}
		// unknown commands still leave any pending flow
		if b.routes.cancel != nil {
			b.routes.cancel(ctx, msg.From.ID)
		}
		return nil
	}
	if msg.Text == "" || b.routes.text == nil {
		return nil
	}
	return b.render(ctx, msg, nil, b.routes.text(ctx, msg))
}

func (b *Bot) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query.From == nil {
		return errors.New("invalid callback query")
	}
	data := strings.TrimSpace(query.Data)

	if !b.allow(ctx, query.From.ID, "cb:"+data) {
		_, err := b.sender.Request(tgbotapi.NewCallback(query.ID, b.t.T("rate_limited")))
		return err
	}

	var reply application.Reply
	if fn, ok := b.routes.callbacks[data]; ok {
		reply = fn(ctx, query)
	} else {
		for _, pr := range b.routes.prefixes {
			if strings.HasPrefix(data, pr.Prefix) {
				reply = pr.Fn(ctx, query)
				break
			}
		}
	}
	return b.render(ctx, nil, query, reply)
}

// render delivers a Reply. Exactly one of msg and query is set.
func (b *Bot) render(ctx context.Context, msg *tgbotapi.Message, query *tgbotapi.CallbackQuery, r application.Reply) error {
	var errs []error

	if query != nil {
		ack := tgbotapi.NewCallback(query.ID, r.Notice)
		if r.Alert {
			ack = tgbotapi.NewCallbackWithAlert(query.ID, r.Notice)
		}
		if _, err := b.sender.Request(ack); err != nil {
			errs = append(errs, err)
		}
	}

	if r.Text != "" {
		if err := b.deliver(msg, query, r); err != nil {
			errs = append(errs, err)
		}
	}

	if r.DeleteIncoming && msg != nil {
		if _, err := b.sender.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
			b.log.Warn().Err(err).Msg("delete incoming message")
		}
	}
	return errors.Join(errs...)
}

func (b *Bot) deliver(msg *tgbotapi.Message, query *tgbotapi.CallbackQuery, r application.Reply) error {
	markup := inlineKeyboard(r.Buttons)

	if query != nil && query.Message != nil && query.Message.Chat != nil && r.Edit {
		edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, r.Text)
		edit.ParseMode = tgbotapi.ModeMarkdown
		edit.ReplyMarkup = markup
		_, err := b.sender.Send(edit)
		return err
	}

	var chatID int64
	switch {
	case msg != nil:
		chatID = msg.Chat.ID
	case query.Message != nil && query.Message.Chat != nil:
		chatID = query.Message.Chat.ID
	default:
		chatID = query.From.ID
	}
	out := tgbotapi.NewMessage(chatID, r.Text)
	out.ParseMode = tgbotapi.ModeMarkdown
	out.DisableWebPagePreview = true
	if markup != nil {
		out.ReplyMarkup = *markup
	}
	if msg != nil && b.opts.Quote && !r.DeleteIncoming {
		out.ReplyToMessageID = msg.MessageID
	}
	_, err := b.sender.Send(out)
	return err
}

// inlineKeyboard converts button rows. A URL button opens a link; otherwise
// the button sends its Data, or its Text when Data is empty.
func inlineKeyboard(rows [][]adapter.InlineButton) *tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, r)
	}
	if len(kbRows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	return &markup
}
