package adapter

import (
	"context"
	"net/http"

	"telegram-pix-manager/internal/domain/model"
)

// PixRequest is one attempt to create a PIX charge.
type PixRequest struct {
	BotToken   string
	Credential string
	Amount     float64
	PayerID    int64
	// IdempotencyKey is generated per attempt and never persisted.
	IdempotencyKey string
}

// PaymentProvider shapes the HTTP exchange for one gateway.
type PaymentProvider interface {
	Kind() model.GatewayKind
	BuildRequest(ctx context.Context, req PixRequest) (*http.Request, error)
	// ParseResponse returns the PIX copy-paste code or an error for any non-success status.
	ParseResponse(resp *http.Response) (string, error)
}

// PaymentGateway creates PIX charges for a bot, hiding which provider is configured.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, botToken string, amount float64, payerID int64) (model.GatewayKind, string, error)
}

// TokenValidator checks a provider access token with a live call.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, accessToken string) bool
}

// OAuthClient performs the Mercado Pago authorization-code flow.
type OAuthClient interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (model.MercadoPagoCredential, error)
}
