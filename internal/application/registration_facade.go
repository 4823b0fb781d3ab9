package application

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/ports/adapter"
	"telegram-pix-manager/internal/infra/i18n"
	"telegram-pix-manager/internal/usecase"
)

// Registration bot callback data.
const (
	CbStart        = "start"
	CbRegisterBot  = "register_bot"
	CbListBots     = "list_bots"
	CbFees         = "fees"
	CbHelp         = "help"
	CbTerms        = "terms"
	CbBotInfo      = "bot_info_disabled"
	telegramMeBase = "https://t.me/"
)

// RegistrationFacade drives the onboarding bot menu and token submission.
type RegistrationFacade struct {
	reg  usecase.RegistrationUseCase
	conv *Conversation
	t    *i18n.Translator
	log  *zerolog.Logger
}

func NewRegistrationFacade(reg usecase.RegistrationUseCase, conv *Conversation, translator *i18n.Translator, logger *zerolog.Logger) *RegistrationFacade {
	l := logger.With().Str("component", "RegistrationFacade").Logger()
	return &RegistrationFacade{reg: reg, conv: conv, t: translator, log: &l}
}

func (f *RegistrationFacade) Cancel(ctx context.Context, userID int64) {
	f.conv.Cancel(ctx, userID)
}

func (f *RegistrationFacade) AwaitsText(ctx context.Context, userID int64) bool {
	return f.conv.Current(ctx, userID).AwaitsText()
}

func (f *RegistrationFacade) menu() [][]adapter.InlineButton {
	return [][]adapter.InlineButton{
		row(cb(f.t.T("reg_btn_register"), CbRegisterBot), cb(f.t.T("reg_btn_list"), CbListBots)),
		row(cb(f.t.T("reg_btn_fees"), CbFees), cb(f.t.T("reg_btn_help"), CbHelp), cb(f.t.T("reg_btn_terms"), CbTerms)),
	}
}

func (f *RegistrationFacade) back() [][]adapter.InlineButton {
	return [][]adapter.InlineButton{row(cb(f.t.T("reg_btn_back"), CbStart))}
}

func (f *RegistrationFacade) HandleStart(ctx context.Context, userID int64) Reply {
	f.Cancel(ctx, userID)
	return Reply{Text: f.t.T("reg_welcome"), Buttons: f.menu()}
}

func (f *RegistrationFacade) HandleCallback(ctx context.Context, userID int64, data string) Reply {
	switch data {
	case CbStart:
		r := f.HandleStart(ctx, userID)
		r.Edit = true
		return r
	case CbRegisterBot:
		f.Cancel(ctx, userID)
		f.conv.Move(ctx, userID, StepAwaitingBotToken)
		return Reply{
			Text:    f.t.T("reg_instructions"),
			Buttons: [][]adapter.InlineButton{row(cb(f.t.T("btn_cancel"), CbStart))},
			Edit:    true,
		}
	case CbListBots:
		return f.listBots(ctx, userID)
	case CbFees:
		return Reply{Text: f.t.T("reg_fees"), Buttons: f.back(), Edit: true}
	case CbHelp:
		return Reply{Text: f.t.T("reg_help"), Buttons: f.back(), Edit: true}
	case CbTerms:
		return Reply{Text: f.t.Policy(), Buttons: f.back(), Edit: true}
	case CbBotInfo:
		return Reply{Notice: f.t.T("reg_bot_no_action")}
	default:
		return Reply{}
	}
}

func (f *RegistrationFacade) listBots(ctx context.Context, userID int64) Reply {
	bots, err := f.reg.ListOwned(ctx, userID)
	if err != nil {
		f.log.Error().Err(err).Int64("tg_id", userID).Msg("list owned bots")
		return Reply{Text: f.t.T("error_generic"), Buttons: f.back(), Edit: true}
	}
	if len(bots) == 0 {
		return Reply{Text: f.t.T("reg_list_empty"), Buttons: f.back(), Edit: true}
	}
	rows := make([][]adapter.InlineButton, 0, len(bots)+1)
	for _, b := range bots {
		rows = append(rows, row(cb("@"+b.BotUsername, CbBotInfo)))
	}
	rows = append(rows, f.back()...)
	return Reply{Text: f.t.T("reg_list_title"), Buttons: rows, Edit: true}
}

// HandleText registers the submitted token when the user is in the
// registration flow. The flow ends whatever the outcome.
func (f *RegistrationFacade) HandleText(ctx context.Context, who usecase.Registrant, text string) Reply {
	if f.conv.Current(ctx, who.ID) != StepAwaitingBotToken {
		return Reply{}
	}
	f.conv.Cancel(ctx, who.ID)

	retry := row(cb(f.t.T("reg_btn_retry"), CbRegisterBot))
	home := row(cb(f.t.T("reg_btn_back_start"), CbStart))

	bot, err := f.reg.Register(ctx, who, text)
	switch {
	case err == nil:
		return Reply{
			Text: f.t.T("reg_success"),
			Buttons: [][]adapter.InlineButton{
				row(link(f.t.T("reg_btn_open_bot"), telegramMeBase+bot.BotUsername)),
				home,
			},
			DeleteIncoming: true,
		}
	case errors.Is(err, domain.ErrInvalidBotToken):
		return Reply{Text: f.t.T("reg_token_invalid"), Buttons: [][]adapter.InlineButton{retry}}
	case errors.Is(err, domain.ErrAlreadyRegistered):
		return Reply{Text: f.t.T("reg_token_duplicate"), Buttons: [][]adapter.InlineButton{retry, home}}
	case errors.Is(err, domain.ErrLockHeld):
		return Reply{Text: f.t.T("reg_busy"), Buttons: [][]adapter.InlineButton{home}}
	default:
		return Reply{Text: f.t.T("reg_failed"), Buttons: [][]adapter.InlineButton{retry}}
	}
}
