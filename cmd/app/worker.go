package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"telegram-pix-manager/internal/application"
	"telegram-pix-manager/internal/domain/model"
	payAdapters "telegram-pix-manager/internal/infra/adapters/payment"
	tele "telegram-pix-manager/internal/infra/adapters/telegram"
	"telegram-pix-manager/internal/infra/logging"
	"telegram-pix-manager/internal/infra/sched"
	"telegram-pix-manager/internal/usecase"
)

// runWorker serves one tenant bot until signalled or until its own reaper
// removes it.
func runWorker(ctx context.Context, flags *rootFlags, token string) error {
	if !model.ValidBotToken(token) {
		return fmt.Errorf("invalid bot token for bot %s", logging.BotID(token))
	}
	d, err := buildDeps(ctx, flags, "worker")
	if err != nil {
		return err
	}
	defer d.Close()

	ctx = logging.WithBot(ctx, token)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	log := logging.With(ctx, d.log)

	api, err := tele.NewAPI(token, d.cfg.Bot.APIEndpoint)
	if err != nil {
		return fmt.Errorf("connect bot %s: %w", logging.BotID(token), err)
	}

	botUC := usecase.NewBotUseCase(d.repo, d.repo, log)
	if err := botUC.RecordProcess(ctx, token, os.Getpid()); err != nil {
		return fmt.Errorf("record process: %w", err)
	}

	pcfg := d.cfg.Payment
	pushInPay, err := payAdapters.NewPushInPay(pcfg.PushInPay.BaseURL, pcfg.PushInPay.SplitAccountID)
	if err != nil {
		return fmt.Errorf("pushinpay: %w", err)
	}
	mp, oauthUC, err := d.mercadoPago()
	if err != nil {
		return err
	}
	gateway := payAdapters.NewGateway(d.repo, pcfg.Timeout, log, pushInPay, mp)
	pixUC := usecase.NewPixUseCase(d.repo, gateway, log)

	conv := application.NewConversation(d.states, logging.BotID(token), log)
	registrationBot, err := d.directory.Username(ctx, d.cfg.Bot.Token, d.cfg.Bot.Username)
	if err != nil {
		log.Warn().Err(err).Msg("registration bot username unresolved")
	}
	facade := application.NewWorkerFacade(token, registrationBot, botUC, pixUC, oauthUC, conv, d.translator, log)
	bot := tele.NewWorkerBot(api, facade, d.limiter, d.translator, tele.Options{
		Scope:              logging.BotID(token),
		Workers:            d.cfg.Bot.Workers,
		RateLimitPerMinute: d.cfg.Bot.RateLimitPerMinute,
	}, log)

	manager, err := d.processManager()
	if err != nil {
		return err
	}
	var reaped atomic.Bool
	lifecycle := usecase.NewLifecycleUseCase(d.repo, d.repo, manager, d.directory, d.translator, os.Getpid(), func() {
		reaped.Store(true)
		cancel()
	}, log)
	reaper := sched.NewReaperWorker(d.cfg.Reaper.Interval, token, d.cfg.Reaper.InactivityMinutes, lifecycle, log)
	go func() {
		_ = reaper.Run(ctx)
	}()

	err = bot.StartPolling(ctx)
	if reaped.Load() {
		log.Info().Msg("bot reaped for inactivity, exiting")
		return nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
