package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-pix-manager/internal/application"
	"telegram-pix-manager/internal/domain/ports/repository"
	"telegram-pix-manager/internal/infra/i18n"
	"telegram-pix-manager/internal/usecase"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) application.Reply

type textHandler func(ctx context.Context, message *tgbotapi.Message) application.Reply

// routes is the dispatch table of one bot.
type routes struct {
	commands  map[string]commandHandler
	callbacks map[string]cbHandler
	prefixes  []prefixCB
	text      textHandler
	cancel    func(ctx context.Context, userID int64)
}

// NewWorkerBot wires a tenant bot to its facade.
func NewWorkerBot(api *tgbotapi.BotAPI, facade *application.WorkerFacade, limiter repository.RateLimiter, translator *i18n.Translator, opts Options, logger *zerolog.Logger) *Bot {
	l := logger.With().Str("component", "WorkerBot").Logger()
	opts.Quote = true
	return newBot(api, workerRoutes(facade), limiter, translator, opts, &l)
}

func workerRoutes(f *application.WorkerFacade) routes {
	return routes{
		commands: map[string]commandHandler{
			"start": func(ctx context.Context, m *tgbotapi.Message) application.Reply {
				return f.HandleStart(ctx, m.From.ID)
			},
			"pix": func(ctx context.Context, m *tgbotapi.Message) application.Reply {
				return f.HandlePix(ctx, m.From.ID)
			},
			"gateway": func(ctx context.Context, m *tgbotapi.Message) application.Reply {
				return f.HandleGateway(ctx, m.From.ID)
			},
			"livre": func(ctx context.Context, m *tgbotapi.Message) application.Reply {
				return f.HandleLivre(ctx, m.From.ID)
			},
		},
		callbacks: workerCallbacks(f),
		prefixes:  workerPrefixCallbacks(f),
		text: func(ctx context.Context, m *tgbotapi.Message) application.Reply {
			return f.HandleText(ctx, m.From.ID, m.Text)
		},
		cancel: f.Cancel,
	}
}

// NewRegistrationBot wires the onboarding bot to its facade.
func NewRegistrationBot(api *tgbotapi.BotAPI, facade *application.RegistrationFacade, limiter repository.RateLimiter, translator *i18n.Translator, opts Options, logger *zerolog.Logger) *Bot {
	l := logger.With().Str("component", "RegistrationBot").Logger()
	return newBot(api, registrationRoutes(facade), limiter, translator, opts, &l)
}

func registrationRoutes(f *application.RegistrationFacade) routes {
	return routes{
		commands: map[string]commandHandler{
			"start": func(ctx context.Context, m *tgbotapi.Message) application.Reply {
				return f.HandleStart(ctx, m.From.ID)
			},
		},
		callbacks: registrationCallbacks(f),
		text: func(ctx context.Context, m *tgbotapi.Message) application.Reply {
			return f.HandleText(ctx, registrantOf(m.From), m.Text)
		},
		cancel: f.Cancel,
	}
}

func registrantOf(u *tgbotapi.User) usecase.Registrant {
	return usecase.Registrant{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.UserName,
	}
}
