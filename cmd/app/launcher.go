package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-pix-manager/internal/infra/api"
	"telegram-pix-manager/internal/infra/logging"
)

// runLauncher spawns the registration service and one worker per active bot
// (read once at boot), then serves the OAuth callback until signalled.
func runLauncher(ctx context.Context, flags *rootFlags) error {
	d, err := buildDeps(ctx, flags, "launcher")
	if err != nil {
		return err
	}
	defer d.Close()
	log := d.log

	// pids recorded by a previous run are stale by definition
	if err := d.repo.ClearProcesses(ctx); err != nil {
		return fmt.Errorf("clear process records: %w", err)
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

	if _, err := manager.SpawnRegistration(ctx); err != nil {
		return fmt.Errorf("start registration service: %w", err)
	}

	bots, err := d.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active bots: %w", err)
	}
	for _, b := range bots {
		if _, err := manager.SpawnWorker(ctx, b.Token); err != nil {
			log.Error().Err(err).Str("bot", logging.BotID(b.Token)).Msg("start worker")
		}
	}
	log.Info().Int("workers", len(bots)).Msg("launcher started")

	_, oauthUC, err := d.mercadoPago()
	if err != nil {
		return err
	}
	srv := api.NewServer(oauthUC, d.cfg.HTTP.CallbackPath, log)
	if err := srv.ListenAndServe(ctx, d.cfg.HTTP.Addr); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("callback server: %w", err)
	}
	log.Info().Msg("shutdown requested, stopping children")
	return nil
}
