package repository

import (
	"context"

	"telegram-pix-manager/internal/domain/model"
)

// -----------------------------
// Bot registrations
// -----------------------------

// BotRepository is the shared store every process opens. Implementations must
// treat a busy database as retryable and make every write durable before returning.
type BotRepository interface {
	// Insert requires Purge(token) to have run first; a live row for the token is ErrAlreadyExists.
	Insert(ctx context.Context, b *model.BotRegistration) error
	// Purge deletes the registration and process row for token. Missing rows are not an error.
	Purge(ctx context.Context, token string) error
	// RemoveCompletely is Purge with a bounded retry on lock contention.
	RemoveCompletely(ctx context.Context, token string) error

	FindByToken(ctx context.Context, token string) (*model.BotRegistration, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*model.BotRegistration, error)
	ListActive(ctx context.Context) ([]*model.BotRegistration, error)
	// ListInactive returns active bots idle for longer than thresholdMinutes.
	ListInactive(ctx context.Context, thresholdMinutes int) ([]*model.BotRegistration, error)

	// GatewayCredential resolves the bearer token of the configured gateway;
	// ErrGatewayNotConfigured when absent or incomplete.
	GatewayCredential(ctx context.Context, token string) (model.GatewayKind, string, error)
	SetPushInPayToken(ctx context.Context, token, gatewayToken string) error
	SetMercadoPagoCredential(ctx context.Context, token string, cred model.MercadoPagoCredential) error
	SetGatewayKind(ctx context.Context, token string, kind model.GatewayKind) error
	SetPublicAccess(ctx context.Context, token string, public bool) error
	TouchActivity(ctx context.Context, token string) error
	Deactivate(ctx context.Context, token string) error

	// Compact reclaims free pages after deletions.
	Compact(ctx context.Context) error
}

// -----------------------------
// Process records
// -----------------------------

type ProcessRepository interface {
	// SaveProcess overwrites any previous record for the token.
	SaveProcess(ctx context.Context, rec model.ProcessRecord) error
	FindProcess(ctx context.Context, token string) (*model.ProcessRecord, error)
	DeleteProcess(ctx context.Context, token string) error
	ClearProcesses(ctx context.Context) error
}
