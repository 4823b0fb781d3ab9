// File: internal/usecase/oauth_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/ports/adapter"
	"telegram-pix-manager/internal/domain/ports/repository"
	"telegram-pix-manager/internal/infra/i18n"
	"telegram-pix-manager/internal/infra/logging"
	"telegram-pix-manager/internal/infra/metrics"
)

// Compile-time check
var _ OAuthUseCase = (*oauthUC)(nil)

// StateCodec turns a bot token into the opaque OAuth state and back.
type StateCodec interface {
	Encode(botToken string) (string, error)
	Decode(state string) (string, error)
}

type OAuthUseCase interface {
	// AuthorizationURL is the link an owner opens to connect Mercado Pago.
	AuthorizationURL(botToken string) (string, error)
	// CompleteLink exchanges code, stores the credential for the bot named by
	// state and tells the owner. Bad input is ErrInvalidArgument; an unknown
	// bot is ErrNotFound.
	CompleteLink(ctx context.Context, code, state string) error
}

type oauthUC struct {
	client     adapter.OAuthClient
	validator  adapter.TokenValidator
	bots       repository.BotRepository
	directory  adapter.BotDirectory
	states     StateCodec
	translator *i18n.Translator
	log        *zerolog.Logger
}

func NewOAuthUseCase(
	client adapter.OAuthClient,
	validator adapter.TokenValidator,
	bots repository.BotRepository,
	directory adapter.BotDirectory,
	states StateCodec,
	translator *i18n.Translator,
	logger *zerolog.Logger,
) *oauthUC {
	return &oauthUC{
		client:     client,
		validator:  validator,
		bots:       bots,
		directory:  directory,
		states:     states,
		translator: translator,
		log:        logger,
	}
}

func (u *oauthUC) AuthorizationURL(botToken string) (string, error) {
	if u.client == nil {
		return "", fmt.Errorf("mercado pago oauth: %w", domain.ErrGatewayNotConfigured)
	}
	state, err := u.states.Encode(botToken)
	if err != nil {
		return "", err
	}
	return u.client.AuthorizationURL(state), nil
}

func (u *oauthUC) CompleteLink(ctx context.Context, code, state string) error {
	if code == "" || state == "" {
		metrics.IncOAuthLink("invalid")
		return fmt.Errorf("missing code or state: %w", domain.ErrInvalidArgument)
	}
	token, err := u.states.Decode(state)
	if err != nil {
		metrics.IncOAuthLink("invalid")
		return fmt.Errorf("state: %v: %w", err, domain.ErrInvalidArgument)
	}
	ctx = logging.WithBot(ctx, token)
	log := logging.With(ctx, u.log)
	if u.client == nil {
		return fmt.Errorf("mercado pago oauth: %w", domain.ErrGatewayNotConfigured)
	}

	cred, err := u.client.ExchangeCode(ctx, code)
	if err != nil {
		metrics.IncOAuthLink("exchange_failed")
		log.Error().Err(err).Msg("oauth exchange failed")
		return err
	}
	if u.validator != nil && !u.validator.ValidateAccessToken(ctx, cred.AccessToken) {
		metrics.IncOAuthLink("rejected")
		return fmt.Errorf("%w: access token rejected by payment methods check", domain.ErrOAuthExchange)
	}

	if err := u.bots.SetMercadoPagoCredential(ctx, token, cred); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncOAuthLink("unknown_bot")
		} else {
			metrics.IncOAuthLink("store_failed")
		}
		return err
	}
	metrics.IncOAuthLink("ok")
	log.Info().Str("mp_user", cred.UserID).Msg("mercado pago linked")

	bot, err := u.bots.FindByToken(ctx, token)
	if err != nil {
		log.Warn().Err(err).Msg("owner lookup after link failed")
		return nil
	}
	if err := u.directory.SendText(ctx, token, bot.OwnerID, u.translator.T("mp_linked")); err != nil {
		log.Warn().Err(err).Msg("owner notification failed")
	}
	return nil
}
