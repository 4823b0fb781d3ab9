package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-pix-manager/internal/application"
	tele "telegram-pix-manager/internal/infra/adapters/telegram"
	"telegram-pix-manager/internal/infra/metrics"
	"telegram-pix-manager/internal/usecase"
)

// runRegistration serves the onboarding bot. Workers it spawns are its own
// children and stop with it.
func runRegistration(ctx context.Context, flags *rootFlags) error {
	d, err := buildDeps(ctx, flags, "registration")
	if err != nil {
		return err
	}
	defer d.Close()
	log := d.log

	api, err := tele.NewAPI(d.cfg.Bot.Token, d.cfg.Bot.APIEndpoint)
	if err != nil {
		return fmt.Errorf("connect registration bot: %w", err)
	}

	manager, err := d.processManager()
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second+d.cfg.Process.KillGrace)
		defer cancel()
		manager.StopAll(stopCtx)
	}()

	lifecycle := usecase.NewLifecycleUseCase(d.repo, d.repo, manager, d.directory, d.translator, os.Getpid(), nil, log)
	regUC := usecase.NewRegistrationUseCase(
		d.repo, d.directory, tele.NewNotifier(api), manager, lifecycle, d.locker, d.translator,
		usecase.RegistrationOptions{
			AdminUserID: d.cfg.Bot.AdminUserID,
			SettleDelay: d.cfg.Process.SettleDelay,
		},
		log,
	)
	conv := application.NewConversation(d.states, "registration", log)
	facade := application.NewRegistrationFacade(regUC, conv, d.translator, log)
	bot := tele.NewRegistrationBot(api, facade, d.limiter, d.translator, tele.Options{
		Scope:              "registration",
		Workers:            d.cfg.Bot.Workers,
		RateLimitPerMinute: d.cfg.Bot.RateLimitPerMinute,
	}, log)

	if addr := d.cfg.Metrics.Addr; addr != "" {
		go serveMetrics(ctx, addr, d)
	}

	if err := bot.StartPolling(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string, d *deps) {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	d.log.Info().Str("addr", addr).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		d.log.Error().Err(err).Msg("metrics server")
	}
}
