package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-pix-manager/internal/infra/logging"
	"telegram-pix-manager/internal/usecase"
)

// ReaperWorker checks one bot for inactivity right away and then on every
// tick, for as long as its worker process lives.
type ReaperWorker struct {
	interval  time.Duration
	token     string
	threshold int
	lifecycle usecase.LifecycleUseCase
	log       *zerolog.Logger
}

func NewReaperWorker(interval time.Duration, botToken string, thresholdMinutes int, lifecycle usecase.LifecycleUseCase, logger *zerolog.Logger) *ReaperWorker {
	reapLog := logger.With().Str("component", "ReaperWorker").Str("bot", logging.BotID(botToken)).Logger()
	return &ReaperWorker{
		interval:  interval,
		token:     botToken,
		threshold: thresholdMinutes,
		lifecycle: lifecycle,
		log:       &reapLog,
	}
}

func (w *ReaperWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Int("threshold_minutes", w.threshold).Msg("Starting reaper worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.pass(ctx)
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping reaper worker")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ReaperWorker) pass(ctx context.Context) {
	reaped, err := w.lifecycle.ReapInactive(ctx, w.token, w.threshold)
	if err != nil {
		w.log.Error().Err(err).Msg("reaper pass failed")
		return
	}
	if reaped {
		w.log.Info().Msg("inactive bot reaped")
	}
}
