package model

import (
	"strings"
	"time"
)

// GatewayKind selects which payment provider a bot uses to issue PIX codes.
type GatewayKind string

const (
	GatewayNone        GatewayKind = "none"
	GatewayPushInPay   GatewayKind = "pushinpay"
	GatewayMercadoPago GatewayKind = "mercadopago"
)

// ParseGatewayKind maps a stored column value to a GatewayKind. Unknown values
// fall back to PushInPay, the column default.
func ParseGatewayKind(s string) GatewayKind {
	switch GatewayKind(strings.ToLower(strings.TrimSpace(s))) {
	case GatewayNone:
		return GatewayNone
	case GatewayMercadoPago:
		return GatewayMercadoPago
	default:
		return GatewayPushInPay
	}
}

// DisplayName is the label shown to users.
func (k GatewayKind) DisplayName() string {
	switch k {
	case GatewayMercadoPago:
		return "Mercado Pago"
	case GatewayPushInPay:
		return "PushInPay"
	default:
		return "-"
	}
}

// MercadoPagoCredential is the OAuth triple obtained when an owner links an account.
type MercadoPagoCredential struct {
	AccessToken  string
	RefreshToken string
	UserID       string
}

// Complete reports whether every part of the triple is present.
func (c MercadoPagoCredential) Complete() bool {
	return c.AccessToken != "" && c.RefreshToken != "" && c.UserID != ""
}

// BotRegistration is one tenant bot. Token is the only stable identity shared
// between processes.
type BotRegistration struct {
	Token        string
	OwnerID      int64
	BotID        int64
	BotUsername  string
	CreatedAt    time.Time
	IsActive     bool
	LastActivity *time.Time
	IsPublic     bool
	Gateway      GatewayKind

	PushInPayToken string
	MercadoPago    MercadoPagoCredential
}

// Credential resolves the bearer token for the configured gateway. ok is false
// when the gateway has no usable credential.
func (b *BotRegistration) Credential() (token string, ok bool) {
	switch b.Gateway {
	case GatewayPushInPay:
		return b.PushInPayToken, b.PushInPayToken != ""
	case GatewayMercadoPago:
		if !b.MercadoPago.Complete() {
			return "", false
		}
		return b.MercadoPago.AccessToken, true
	default:
		return "", false
	}
}

// IsOwner reports whether userID owns the bot.
func (b *BotRegistration) IsOwner(userID int64) bool { return b.OwnerID == userID }

// InactiveSince reports whether the bot has been idle since before threshold.
// A bot that never saw activity is judged by its creation time.
func (b *BotRegistration) InactiveSince(threshold time.Time) bool {
	if !b.IsActive {
		return false
	}
	if b.LastActivity == nil {
		return b.CreatedAt.Before(threshold)
	}
	return b.LastActivity.Before(threshold)
}

// ProcessRecord is an advisory liveness hint: the OS pid a Worker recorded for its token.
type ProcessRecord struct {
	Token string
	PID   int
}
