package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/model"
	"telegram-pix-manager/internal/domain/ports/adapter"
	"telegram-pix-manager/internal/infra/i18n"
	"telegram-pix-manager/internal/infra/logging"
	"telegram-pix-manager/internal/usecase"
)

// Worker callback data.
const (
	CbSelectMercadoPago = "select_mp"
	CbSelectPushInPay   = "select_pushinpay"
	CbCancelGateway     = "cancel_gateway"
	CbGatewayMenu       = "gateway"
	CbLivrePrefix       = "livre_"
	CbLivreYes          = "livre_sim"
	CbLivreNo           = "livre_nao"
)

// WorkerFacade drives one tenant bot: commands, buttons and free-text input
// for the gateway and PIX flows.
type WorkerFacade struct {
	token           string
	registrationBot string
	bots            usecase.BotUseCase
	pix             usecase.PixUseCase
	oauth           usecase.OAuthUseCase
	conv            *Conversation
	t               *i18n.Translator
	log             *zerolog.Logger
}

func NewWorkerFacade(
	token, registrationBot string,
	bots usecase.BotUseCase,
	pix usecase.PixUseCase,
	oauth usecase.OAuthUseCase,
	conv *Conversation,
	translator *i18n.Translator,
	logger *zerolog.Logger,
) *WorkerFacade {
	l := logger.With().Str("component", "WorkerFacade").Str("bot", logging.BotID(token)).Logger()
	return &WorkerFacade{
		token:           token,
		registrationBot: registrationBot,
		bots:            bots,
		pix:             pix,
		oauth:           oauth,
		conv:            conv,
		t:               translator,
		log:             &l,
	}
}

func (w *WorkerFacade) privateNotice() Reply {
	if w.registrationBot == "" {
		return Reply{Text: w.t.T("worker_private_closed")}
	}
	return Reply{Text: w.t.T("worker_private", i18n.EscapeMarkdown(w.registrationBot))}
}

func (w *WorkerFacade) genericError(err error) Reply {
	w.log.Error().Err(err).Msg("worker handler failed")
	return Reply{Text: w.t.T("error_generic")}
}

// Cancel returns the user to Idle. Every command runs it first.
func (w *WorkerFacade) Cancel(ctx context.Context, userID int64) {
	w.conv.Cancel(ctx, userID)
}

// AwaitsText reports whether userID's next plain message is flow input.
func (w *WorkerFacade) AwaitsText(ctx context.Context, userID int64) bool {
	return w.conv.Current(ctx, userID).AwaitsText()
}

func (w *WorkerFacade) HandleStart(ctx context.Context, userID int64) Reply {
	w.Cancel(ctx, userID)
	w.bots.Touch(ctx, w.token)

	bot, err := w.bots.Get(ctx, w.token)
	if err != nil {
		return w.genericError(err)
	}
	switch {
	case bot.IsOwner(userID):
		return Reply{Text: w.t.T("worker_welcome_owner")}
	case bot.IsPublic:
		return Reply{Text: w.t.T("worker_welcome_public")}
	default:
		return w.privateNotice()
	}
}

func (w *WorkerFacade) HandlePix(ctx context.Context, userID int64) Reply {
	w.Cancel(ctx, userID)
	bot, err := w.bots.Authorize(ctx, w.token, userID, model.CommandPix)
	if errors.Is(err, domain.ErrOwnerOnly) {
		return w.privateNotice()
	}
	if err != nil {
		return w.genericError(err)
	}
	w.bots.Touch(ctx, w.token)

	ready, err := w.pix.Ready(ctx, w.token)
	if err != nil {
		return w.genericError(err)
	}
	if !ready {
		if bot.IsOwner(userID) {
			return Reply{Text: w.t.T("pix_gateway_missing_owner")}
		}
		return Reply{Text: w.t.T("pix_gateway_missing_user")}
	}
	w.conv.Move(ctx, userID, StepWaitingPixValue)
	return Reply{Text: w.t.T("pix_amount_prompt")}
}

func (w *WorkerFacade) HandleGateway(ctx context.Context, userID int64) Reply {
	w.Cancel(ctx, userID)
	if _, err := w.bots.Authorize(ctx, w.token, userID, model.CommandGateway); err != nil {
		if errors.Is(err, domain.ErrOwnerOnly) {
			return w.privateNotice()
		}
		return w.genericError(err)
	}
	w.bots.Touch(ctx, w.token)

	w.conv.Move(ctx, userID, StepSelectingGateway)
	return Reply{
		Text: w.t.T("gateway_prompt"),
		Buttons: [][]adapter.InlineButton{
			row(cb(w.t.T("gateway_btn_mp"), CbSelectMercadoPago), cb(w.t.T("gateway_btn_pushinpay"), CbSelectPushInPay)),
			row(cb(w.t.T("btn_cancel"), CbCancelGateway)),
		},
	}
}

func (w *WorkerFacade) livreButtons(public bool) [][]adapter.InlineButton {
	yes, no := "", "✅"
	if public {
		yes, no = "✅", ""
	}
	return [][]adapter.InlineButton{row(
		cb(strings.TrimSpace(w.t.T("livre_yes", yes)), CbLivreYes),
		cb(strings.TrimSpace(w.t.T("livre_no", no)), CbLivreNo),
	)}
}

func (w *WorkerFacade) HandleLivre(ctx context.Context, userID int64) Reply {
	w.Cancel(ctx, userID)
	bot, err := w.bots.Authorize(ctx, w.token, userID, model.CommandLivre)
	if errors.Is(err, domain.ErrOwnerOnly) {
		return w.privateNotice()
	}
	if err != nil {
		return w.genericError(err)
	}
	w.bots.Touch(ctx, w.token)
	return Reply{Text: w.t.T("livre_prompt"), Buttons: w.livreButtons(bot.IsPublic)}
}

// HandleText consumes free text for the step the user is in. Outside a flow
// the message is ignored.
func (w *WorkerFacade) HandleText(ctx context.Context, userID int64, text string) Reply {
	switch w.conv.Current(ctx, userID) {
	case StepWaitingGatewayToken:
		return w.gatewayToken(ctx, userID, text)
	case StepWaitingPixValue:
		return w.pixValue(ctx, userID, text)
	default:
		return Reply{}
	}
}

// gatewayToken accepts one attempt; an invalid token also ends the flow.
func (w *WorkerFacade) gatewayToken(ctx context.Context, userID int64, text string) Reply {
	w.conv.Cancel(ctx, userID)
	err := w.bots.SavePushInPayToken(ctx, w.token, userID, strings.TrimSpace(text))
	switch {
	case err == nil:
		w.bots.Touch(ctx, w.token)
		return Reply{Text: w.t.T("gateway_token_saved"), DeleteIncoming: true}
	case errors.Is(err, domain.ErrOwnerOnly):
		return Reply{}
	case errors.Is(err, domain.ErrInvalidGatewayToken):
		return Reply{Text: w.t.T("gateway_token_invalid")}
	default:
		w.log.Error().Err(err).Msg("save pushinpay token")
		return Reply{Text: w.t.T("gateway_token_error")}
	}
}

func (w *WorkerFacade) pixValue(ctx context.Context, userID int64, text string) Reply {
	w.conv.Cancel(ctx, userID)
	if _, err := w.bots.Authorize(ctx, w.token, userID, model.CommandPix); err != nil {
		return Reply{}
	}
	w.bots.Touch(ctx, w.token)

	charge, err := w.pix.Generate(ctx, w.token, userID, text)
	switch {
	case err == nil:
		return Reply{Text: w.t.T("pix_created",
			fmt.Sprintf("%.2f", charge.Amount),
			fmt.Sprintf("%.2f", charge.Fee),
			charge.Code,
		)}
	case errors.Is(err, domain.ErrAmountNotNumeric):
		return Reply{Text: w.t.T("pix_amount_invalid")}
	case errors.Is(err, domain.ErrAmountOutOfRange):
		return Reply{Text: w.t.T("pix_amount_out_of_range")}
	case errors.Is(err, domain.ErrGatewayNotConfigured):
		return Reply{Text: w.t.T("pix_gateway_missing_user")}
	case charge != nil && charge.Gateway == model.GatewayMercadoPago:
		return Reply{Text: w.t.T("pix_failed_mercadopago")}
	default:
		return Reply{Text: w.t.T("pix_failed_pushinpay")}
	}
}

// HandleCallback routes an inline button press.
func (w *WorkerFacade) HandleCallback(ctx context.Context, userID int64, data string) Reply {
	switch {
	case strings.HasPrefix(data, CbLivrePrefix):
		return w.livreCallback(ctx, userID, data == CbLivreYes)
	case data == CbCancelGateway:
		return w.cancelGateway(ctx, userID)
	case data == CbSelectPushInPay:
		return w.selectGateway(ctx, userID, model.GatewayPushInPay)
	case data == CbSelectMercadoPago:
		return w.selectGateway(ctx, userID, model.GatewayMercadoPago)
	case data == CbGatewayMenu:
		return w.gatewayMenu(ctx, userID)
	default:
		return Reply{}
	}
}

func (w *WorkerFacade) livreCallback(ctx context.Context, userID int64, public bool) Reply {
	err := w.bots.SetPublicAccess(ctx, w.token, userID, public)
	if errors.Is(err, domain.ErrOwnerOnly) {
		return Reply{Notice: w.t.T("livre_owner_only"), Alert: true}
	}
	if err != nil {
		r := w.genericError(err)
		return Reply{Notice: r.Text, Alert: true}
	}
	w.bots.Touch(ctx, w.token)

	notice := w.t.T("livre_private_set")
	if public {
		notice = w.t.T("livre_public_set")
	}
	return Reply{
		Text:    w.t.T("livre_prompt"),
		Buttons: w.livreButtons(public),
		Edit:    true,
		Notice:  notice,
	}
}

func (w *WorkerFacade) cancelGateway(ctx context.Context, userID int64) Reply {
	w.Cancel(ctx, userID)
	text := w.t.T("worker_menu")
	if bot, err := w.bots.Get(ctx, w.token); err == nil && bot.IsOwner(userID) {
		text += w.t.T("worker_menu_livre")
	}
	return Reply{Text: text, Edit: true}
}

func (w *WorkerFacade) selectGateway(ctx context.Context, userID int64, kind model.GatewayKind) Reply {
	err := w.bots.SelectGateway(ctx, w.token, userID, kind)
	if errors.Is(err, domain.ErrOwnerOnly) {
		return Reply{Notice: w.t.T("livre_owner_only"), Alert: true}
	}
	if err != nil {
		w.log.Error().Err(err).Str("gateway", string(kind)).Msg("select gateway")
		return Reply{
			Text:    w.t.T("gateway_update_error"),
			Buttons: [][]adapter.InlineButton{row(cb(w.t.T("gateway_btn_back"), CbGatewayMenu))},
			Edit:    true,
		}
	}
	w.bots.Touch(ctx, w.token)

	if kind == model.GatewayPushInPay {
		w.conv.Move(ctx, userID, StepWaitingGatewayToken)
		return Reply{
			Text:    w.t.T("pushinpay_token_prompt"),
			Buttons: [][]adapter.InlineButton{row(cb(w.t.T("btn_cancel"), CbCancelGateway))},
			Edit:    true,
		}
	}

	// the OAuth redirect completes out of band
	w.conv.Cancel(ctx, userID)
	authURL, err := w.oauth.AuthorizationURL(w.token)
	if err != nil {
		w.log.Error().Err(err).Msg("build authorization url")
		return Reply{
			Text:    w.t.T("gateway_update_error"),
			Buttons: [][]adapter.InlineButton{row(cb(w.t.T("gateway_btn_back"), CbGatewayMenu))},
			Edit:    true,
		}
	}
	return Reply{
		Text: w.t.T("mp_connect_prompt"),
		Buttons: [][]adapter.InlineButton{
			row(link(w.t.T("mp_connect_btn"), authURL)),
			row(cb(w.t.T("btn_cancel"), CbCancelGateway)),
		},
		Edit: true,
	}
}

func (w *WorkerFacade) gatewayMenu(ctx context.Context, userID int64) Reply {
	if _, err := w.bots.Authorize(ctx, w.token, userID, model.CommandGateway); err != nil {
		return Reply{Notice: w.t.T("livre_owner_only"), Alert: true}
	}
	w.conv.Move(ctx, userID, StepSelectingGateway)
	return Reply{
		Text: w.t.T("gateway_reselect_prompt"),
		Buttons: [][]adapter.InlineButton{
			row(cb(w.t.T("gateway_reselect_btn_mp"), CbSelectMercadoPago)),
			row(cb(w.t.T("gateway_reselect_btn_pushinpay"), CbSelectPushInPay)),
			row(cb(w.t.T("btn_cancel"), CbCancelGateway)),
		},
		Edit: true,
	}
}
