// File: internal/usecase/lifecycle_uc.go
package usecase

import (
	"context"
	"errors"

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
var _ LifecycleUseCase = (*lifecycleUC)(nil)

type LifecycleUseCase interface {
	// StopBotProcess terminates the worker recorded for token and drops the
	// record. A missing record or an already-gone process is not an error.
	StopBotProcess(ctx context.Context, token string) error
	// ReapInactive runs one reaping pass for token and reports whether the
	// bot was idle and got removed. Repeated passes are no-ops.
	ReapInactive(ctx context.Context, token string, thresholdMinutes int) (bool, error)
}

type lifecycleUC struct {
	bots       repository.BotRepository
	procs      repository.ProcessRepository
	manager    adapter.ProcessManager
	directory  adapter.BotDirectory
	translator *i18n.Translator
	selfPID    int
	onSelfReap func()
	log        *zerolog.Logger
}

// NewLifecycleUseCase wires process control. selfPID is the caller's own pid;
// when a reaped bot's record points at it, the kill is skipped and onSelfReap
// runs after the pass instead.
func NewLifecycleUseCase(
	bots repository.BotRepository,
	procs repository.ProcessRepository,
	manager adapter.ProcessManager,
	directory adapter.BotDirectory,
	translator *i18n.Translator,
	selfPID int,
	onSelfReap func(),
	logger *zerolog.Logger,
) *lifecycleUC {
	if onSelfReap == nil {
		onSelfReap = func() {}
	}
	return &lifecycleUC{
		bots:       bots,
		procs:      procs,
		manager:    manager,
		directory:  directory,
		translator: translator,
		selfPID:    selfPID,
		onSelfReap: onSelfReap,
		log:        logger,
	}
}

func (u *lifecycleUC) StopBotProcess(ctx context.Context, token string) error {
	_, err := u.stop(ctx, token)
	return err
}

// stop reports self=true when the record belongs to the calling process.
func (u *lifecycleUC) stop(ctx context.Context, token string) (self bool, err error) {
	rec, err := u.procs.FindProcess(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	log := logging.With(ctx, u.log)

	if rec.PID == u.selfPID {
		self = true
	} else if err := u.manager.Terminate(ctx, rec.PID, token); err != nil {
		switch {
		case errors.Is(err, domain.ErrProcessExited), errors.Is(err, domain.ErrStaleProcess):
			log.Debug().Err(err).Int("pid", rec.PID).Msg("process record was stale")
		default:
			return false, err
		}
	}
	return self, u.procs.DeleteProcess(ctx, token)
}

func (u *lifecycleUC) ReapInactive(ctx context.Context, token string, thresholdMinutes int) (bool, error) {
	inactive, err := u.bots.ListInactive(ctx, thresholdMinutes)
	if err != nil {
		return false, err
	}
	var bot *model.BotRegistration
	for _, b := range inactive {
		if b.Token == token {
			bot = b
			break
		}
	}
	if bot == nil {
		return false, nil
	}

	log := logging.With(ctx, u.log).With().Str("bot_username", bot.BotUsername).Logger()
	log.Info().Int("threshold_minutes", thresholdMinutes).Msg("reaping inactive bot")

	// every step is best effort; a failure is logged and the next step still runs
	step := func(name string, err error) {
		if err != nil {
			metrics.IncReaperStepFailure(name)
			log.Warn().Err(err).Str("step", name).Msg("reaper step failed")
		}
	}

	step("notify", u.directory.SendText(ctx, token, bot.OwnerID, u.translator.T("reaper_notice")))
	step("deactivate", u.bots.Deactivate(ctx, token))
	self, err := u.stop(ctx, token)
	step("kill", err)
	step("webhook", u.directory.DropWebhook(ctx, token))
	step("delete", u.bots.RemoveCompletely(ctx, token))
	step("compact", u.bots.Compact(ctx))

	metrics.IncBotReaped()
	log.Info().Bool("self", self).Msg("bot removed")
	if self {
		u.onSelfReap()
	}
	return true, nil
}
