// File: internal/infra/adapters/payment/gateway.go
package payment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/model"
	"telegram-pix-manager/internal/domain/ports/adapter"
	"telegram-pix-manager/internal/infra/logging"
	"telegram-pix-manager/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*Gateway)(nil)

// CredentialSource resolves the configured gateway and its bearer token for a bot.
type CredentialSource interface {
	GatewayCredential(ctx context.Context, botToken string) (model.GatewayKind, string, error)
}

// Gateway picks the provider from the bot's registration and performs one
// HTTP exchange with it. Failures are not retried here.
type Gateway struct {
	creds     CredentialSource
	providers map[model.GatewayKind]adapter.PaymentProvider
	client    *http.Client
	log       *zerolog.Logger
}

func NewGateway(creds CredentialSource, timeout time.Duration, logger *zerolog.Logger, providers ...adapter.PaymentProvider) *Gateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	l := logger.With().Str("component", "PaymentGateway").Logger()
	m := make(map[model.GatewayKind]adapter.PaymentProvider, len(providers))
	for _, p := range providers {
		m[p.Kind()] = p
	}
	return &Gateway{
		creds:     creds,
		providers: m,
		client:    &http.Client{Timeout: timeout},
		log:       &l,
	}
}

func (g *Gateway) CreatePayment(ctx context.Context, botToken string, amount float64, payerID int64) (model.GatewayKind, string, error) {
	kind, cred, err := g.creds.GatewayCredential(ctx, botToken)
	if err != nil {
		return kind, "", err
	}
	p, ok := g.providers[kind]
	if !ok {
		return kind, "", fmt.Errorf("no provider for %s: %w", kind, domain.ErrGatewayNotConfigured)
	}

	log := logging.With(ctx, g.log)
	req, err := p.BuildRequest(ctx, adapter.PixRequest{
		BotToken:       botToken,
		Credential:     cred,
		Amount:         amount,
		PayerID:        payerID,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return kind, "", fmt.Errorf("%w: build %s request: %v", domain.ErrPaymentFailed, kind, err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.IncPixPayment(string(kind), "failed")
		log.Error().Err(err).Str("gateway", string(kind)).Msg("pix request failed")
		return kind, "", fmt.Errorf("%w: %s: %v", domain.ErrPaymentFailed, kind, err)
	}
	defer resp.Body.Close()

	code, err := p.ParseResponse(resp)
	if err != nil {
		metrics.IncPixPayment(string(kind), "failed")
		log.Error().Err(err).Str("gateway", string(kind)).Int("status", resp.StatusCode).Msg("pix request rejected")
		return kind, "", fmt.Errorf("%w: %v", domain.ErrPaymentFailed, err)
	}

	metrics.IncPixPayment(string(kind), "created")
	metrics.AddPixAmount(string(kind), model.AmountInCents(amount))
	log.Info().Str("gateway", string(kind)).Int64("payer", payerID).Msg("pix created")
	return kind, code, nil
}
