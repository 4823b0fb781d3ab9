package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-pix-manager/internal/application"
)

type cbHandler func(ctx context.Context, query *tgbotapi.CallbackQuery) application.Reply

type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

// Exact-match callbacks of a tenant bot.
func workerCallbacks(f *application.WorkerFacade) map[string]cbHandler {
	forward := func(ctx context.Context, q *tgbotapi.CallbackQuery) application.Reply {
		return f.HandleCallback(ctx, q.From.ID, q.Data)
	}
	return map[string]cbHandler{
		application.CbSelectMercadoPago: forward,
		application.CbSelectPushInPay:   forward,
		application.CbCancelGateway:     forward,
		application.CbGatewayMenu:       forward,
	}
}

// Prefix-match callbacks of a tenant bot.
func workerPrefixCallbacks(f *application.WorkerFacade) []prefixCB {
	return []prefixCB{
		{
			Prefix: application.CbLivrePrefix,
			Fn: func(ctx context.Context, q *tgbotapi.CallbackQuery) application.Reply {
				return f.HandleCallback(ctx, q.From.ID, q.Data)
			},
		},
	}
}

func registrationCallbacks(f *application.RegistrationFacade) map[string]cbHandler {
	forward := func(ctx context.Context, q *tgbotapi.CallbackQuery) application.Reply {
		return f.HandleCallback(ctx, q.From.ID, q.Data)
	}
	routes := make(map[string]cbHandler)
	for _, data := range []string{
		application.CbStart,
		application.CbRegisterBot,
		application.CbListBots,
		application.CbFees,
		application.CbHelp,
		application.CbTerms,
		application.CbBotInfo,
	} {
		routes[data] = forward
	}
	return routes
}
