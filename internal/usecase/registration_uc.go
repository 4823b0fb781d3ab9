// File: internal/usecase/registration_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/model"
	"telegram-pix-manager/internal/domain/ports/adapter"
	"telegram-pix-manager/internal/domain/ports/repository"
	"telegram-pix-manager/internal/infra/i18n"
	"telegram-pix-manager/internal/infra/logging"
	"telegram-pix-manager/internal/infra/metrics"
)

// Compile-time check
var _ RegistrationUseCase = (*registrationUC)(nil)

// Registrant is the Telegram user submitting a bot token.
type Registrant struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

type RegistrationUseCase interface {
	// Register onboards a bot token and spawns its worker. Errors are
	// ErrInvalidBotToken, ErrAlreadyRegistered, ErrLockHeld or wrap ErrRegistrationFailed.
	Register(ctx context.Context, who Registrant, rawToken string) (*model.BotRegistration, error)
	ListOwned(ctx context.Context, ownerID int64) ([]*model.BotRegistration, error)
}

type RegistrationOptions struct {
	AdminUserID int64
	SettleDelay time.Duration
	LockTTL     time.Duration
}

type registrationUC struct {
	bots       repository.BotRepository
	directory  adapter.BotDirectory
	admin      adapter.Notifier
	procs      adapter.ProcessManager
	lifecycle  LifecycleUseCase
	locker     repository.Locker
	translator *i18n.Translator
	opts       RegistrationOptions
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration)
	log        *zerolog.Logger
}

func NewRegistrationUseCase(
	bots repository.BotRepository,
	directory adapter.BotDirectory,
	admin adapter.Notifier,
	procs adapter.ProcessManager,
	lifecycle LifecycleUseCase,
	locker repository.Locker,
	translator *i18n.Translator,
	opts RegistrationOptions,
	logger *zerolog.Logger,
) *registrationUC {
	if opts.LockTTL <= 0 {
		opts.LockTTL = time.Minute
	}
	return &registrationUC{
		bots:       bots,
		directory:  directory,
		admin:      admin,
		procs:      procs,
		lifecycle:  lifecycle,
		locker:     locker,
		translator: translator,
		opts:       opts,
		now:        time.Now,
		sleep:      sleepCtx,
		log:        logger,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (u *registrationUC) ListOwned(ctx context.Context, ownerID int64) ([]*model.BotRegistration, error) {
	return u.bots.ListByOwner(ctx, ownerID)
}

func (u *registrationUC) Register(ctx context.Context, who Registrant, rawToken string) (*model.BotRegistration, error) {
	defer logging.TraceDuration(u.log, "RegistrationUseCase.Register")()
	token := strings.TrimSpace(rawToken)
	if !model.ValidBotToken(token) {
		metrics.IncRegistration("invalid")
		return nil, domain.ErrInvalidBotToken
	}
	ctx = logging.WithBot(ctx, token)
	log := logging.With(ctx, u.log).With().Int64("owner", who.ID).Logger()

	if u.locker != nil {
		key := "register:" + logging.BotID(token)
		lockTok, err := u.locker.TryLock(ctx, key, u.opts.LockTTL)
		if err != nil {
			return nil, err
		}
		defer func() { _ = u.locker.Unlock(context.WithoutCancel(ctx), key, lockTok) }()
	}

	existing, err := u.bots.FindByToken(ctx, token)
	switch {
	case err == nil && existing.IsActive:
		metrics.IncRegistration("duplicate")
		return nil, domain.ErrAlreadyRegistered
	case err == nil:
		// inactive leftover: stop whatever still runs for it, then allow re-registration
		if err := u.lifecycle.StopBotProcess(ctx, token); err != nil {
			log.Warn().Err(err).Msg("stop leftover worker failed")
		}
		if err := u.bots.Purge(ctx, token); err != nil {
			return nil, u.fail(log, "purge", err)
		}
	case !errors.Is(err, domain.ErrNotFound):
		return nil, u.fail(log, "lookup", err)
	}

	if err := u.directory.DropWebhook(ctx, token); err != nil {
		return nil, u.fail(log, "drop webhook", err)
	}
	info, err := u.directory.Identify(ctx, token)
	if err != nil {
		return nil, u.fail(log, "identify", err)
	}

	bot := &model.BotRegistration{
		Token:       token,
		OwnerID:     who.ID,
		BotID:       info.ID,
		BotUsername: info.Username,
		CreatedAt:   u.now().UTC(),
		IsActive:    true,
		Gateway:     model.GatewayPushInPay,
	}
	if err := u.bots.Purge(ctx, token); err != nil {
		return nil, u.fail(log, "purge", err)
	}
	if err := u.bots.Insert(ctx, bot); err != nil {
		return nil, u.fail(log, "insert", err)
	}

	u.notifyAdmin(ctx, log, who, info)

	pid, err := u.procs.SpawnWorker(ctx, token)
	if err != nil {
		return nil, u.fail(log, "spawn", err)
	}
	u.sleep(ctx, u.opts.SettleDelay)

	metrics.IncRegistration("ok")
	log.Info().Str("bot_username", info.Username).Int("pid", pid).Msg("bot registered")
	return bot, nil
}

func (u *registrationUC) fail(log zerolog.Logger, step string, err error) error {
	metrics.IncRegistration("failed")
	log.Error().Err(err).Str("step", step).Msg("registration failed")
	return fmt.Errorf("%w: %s: %v", domain.ErrRegistrationFailed, step, err)
}

func (u *registrationUC) notifyAdmin(ctx context.Context, log zerolog.Logger, who Registrant, info adapter.BotInfo) {
	if u.opts.AdminUserID == 0 {
		return
	}
	name := strings.TrimSpace(who.FirstName + " " + who.LastName)
	username := who.Username
	if username == "" {
		username = u.translator.T("reg_no_username")
	}
	text := u.translator.T("reg_admin_notice",
		i18n.EscapeMarkdown(name),
		i18n.EscapeMarkdown(username),
		who.ID,
		i18n.EscapeMarkdown(info.FirstName),
		i18n.EscapeMarkdown(info.Username),
		info.ID,
		u.now().UTC().Format("02/01/2006 15:04:05"),
	)
	if err := u.admin.SendMessage(ctx, u.opts.AdminUserID, text); err != nil {
		log.Warn().Err(err).Msg("admin notification failed")
	}
}
