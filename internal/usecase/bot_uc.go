// File: internal/usecase/bot_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/model"
	"telegram-pix-manager/internal/domain/ports/repository"
	"telegram-pix-manager/internal/infra/logging"
)

// Compile-time check
var _ BotUseCase = (*botUC)(nil)

// BotUseCase is what a worker does to its own registration.
type BotUseCase interface {
	Get(ctx context.Context, token string) (*model.BotRegistration, error)
	// Touch records activity. Failures are logged, never returned.
	Touch(ctx context.Context, token string)
	// Authorize applies the access rule. On ErrOwnerOnly the registration is
	// still returned so callers can tailor the refusal.
	Authorize(ctx context.Context, token string, userID int64, kind model.CommandKind) (*model.BotRegistration, error)
	SetPublicAccess(ctx context.Context, token string, userID int64, public bool) error
	SelectGateway(ctx context.Context, token string, userID int64, kind model.GatewayKind) error
	SavePushInPayToken(ctx context.Context, token string, userID int64, raw string) error
	RecordProcess(ctx context.Context, token string, pid int) error
}

type botUC struct {
	bots  repository.BotRepository
	procs repository.ProcessRepository
	log   *zerolog.Logger
}

func NewBotUseCase(bots repository.BotRepository, procs repository.ProcessRepository, logger *zerolog.Logger) *botUC {
	return &botUC{bots: bots, procs: procs, log: logger}
}

func (u *botUC) Get(ctx context.Context, token string) (*model.BotRegistration, error) {
	return u.bots.FindByToken(ctx, token)
}

func (u *botUC) Touch(ctx context.Context, token string) {
	if err := u.bots.TouchActivity(ctx, token); err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Msg("touch activity failed")
	}
}

func (u *botUC) Authorize(ctx context.Context, token string, userID int64, kind model.CommandKind) (*model.BotRegistration, error) {
	b, err := u.bots.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !model.Permit(b.IsOwner(userID), b.IsPublic, kind) {
		return b, domain.ErrOwnerOnly
	}
	return b, nil
}

func (u *botUC) SetPublicAccess(ctx context.Context, token string, userID int64, public bool) error {
	if _, err := u.Authorize(ctx, token, userID, model.CommandLivre); err != nil {
		return err
	}
	return u.bots.SetPublicAccess(ctx, token, public)
}

func (u *botUC) SelectGateway(ctx context.Context, token string, userID int64, kind model.GatewayKind) error {
	if kind != model.GatewayPushInPay && kind != model.GatewayMercadoPago {
		return fmt.Errorf("gateway %q: %w", kind, domain.ErrInvalidArgument)
	}
	if _, err := u.Authorize(ctx, token, userID, model.CommandGateway); err != nil {
		return err
	}
	return u.bots.SetGatewayKind(ctx, token, kind)
}

func (u *botUC) SavePushInPayToken(ctx context.Context, token string, userID int64, raw string) error {
	if _, err := u.Authorize(ctx, token, userID, model.CommandGateway); err != nil {
		return err
	}
	if !model.ValidPushInPayToken(raw) {
		return domain.ErrInvalidGatewayToken
	}
	if err := u.bots.SetPushInPayToken(ctx, token, raw); err != nil {
		return err
	}
	// the token only counts once the kind points at it
	return u.bots.SetGatewayKind(ctx, token, model.GatewayPushInPay)
}

func (u *botUC) RecordProcess(ctx context.Context, token string, pid int) error {
	if _, err := u.bots.FindByToken(ctx, token); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("record process for unregistered bot: %w", err)
		}
		return err
	}
	return u.procs.SaveProcess(ctx, model.ProcessRecord{Token: token, PID: pid})
}
