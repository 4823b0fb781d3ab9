package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"telegram-pix-manager/internal/config"
	"telegram-pix-manager/internal/domain/ports/adapter"
	"telegram-pix-manager/internal/domain/ports/repository"
	payAdapters "telegram-pix-manager/internal/infra/adapters/payment"
	tele "telegram-pix-manager/internal/infra/adapters/telegram"
	"telegram-pix-manager/internal/infra/db/sqlite"
	"telegram-pix-manager/internal/infra/i18n"
	"telegram-pix-manager/internal/infra/logging"
	"telegram-pix-manager/internal/infra/memory"
	"telegram-pix-manager/internal/infra/metrics"
	"telegram-pix-manager/internal/infra/process"
	red "telegram-pix-manager/internal/infra/redis"
	"telegram-pix-manager/internal/infra/security"
	"telegram-pix-manager/internal/usecase"
)

const oauthStateTTL = 24 * time.Hour

// deps holds what every process role opens at startup.
type deps struct {
	cfg        *config.Config
	log        *zerolog.Logger
	db         *gorm.DB
	repo       *sqlite.BotRepo
	translator *i18n.Translator
	directory  *tele.Directory

	states  repository.StateRepository
	limiter repository.RateLimiter
	locker  repository.Locker

	closers []func() error
}

func buildDeps(ctx context.Context, flags *rootFlags, role string) (*deps, error) {
	cfg, err := config.LoadConfig(flags.configPath, flags.dev)
	if err != nil {
		return nil, err
	}
	base := logging.New(cfg.Log, cfg.Runtime.Dev)
	log := logging.ForRole(base, role)
	metrics.Init(version, commit, role)

	d := &deps{cfg: cfg, log: log}

	var box sqlite.SecretBox
	if cfg.Security.EncryptionKey != "" {
		enc, err := security.NewCredentialSealer(cfg.Security.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("encryption: %w", err)
		}
		box = enc
	} else {
		log.Warn().Msg("security.encryption_key not set; gateway credentials are stored in clear")
	}

	d.db, err = sqlite.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, func() error { return sqlite.Close(d.db) })
	if err := sqlite.Migrate(d.db); err != nil {
		d.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	d.repo = sqlite.NewBotRepo(d.db, cfg.Database.RetryBackoff, box, log)

	d.translator, err = i18n.Default()
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("i18n: %w", err)
	}
	d.directory = tele.NewDirectory(cfg.Bot.APIEndpoint, cfg.Payment.Timeout, log)

	if cfg.Redis.URL != "" {
		client, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		d.closers = append(d.closers, client.Close)
		keys := red.Keyspace(cfg.Redis.Prefix)
		d.states = red.NewStateRepo(client, keys, cfg.Bot.ConversationStateTTL)
		d.limiter = red.NewRateLimiter(client, keys)
		d.locker = red.NewLocker(client, keys)
		log.Info().Msg("using redis for conversation state, rate limits and locks")
	} else {
		d.states = memory.NewStateRepo(cfg.Bot.ConversationStateTTL)
		d.limiter = memory.NewRateLimiter()
		d.locker = memory.NewLocker()
	}
	return d, nil
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.log.Warn().Err(err).Msg("close")
		}
	}
}

func (d *deps) processManager() (*process.Manager, error) {
	return process.NewManager(process.Options{
		Executable: d.cfg.Process.Executable,
		ConfigPath: d.cfg.Runtime.ConfigPath,
		Dev:        d.cfg.Runtime.Dev,
		KillGrace:  d.cfg.Process.KillGrace,
	}, d.log)
}

// mercadoPago builds the payment provider and, when client credentials are
// configured, the OAuth link flow around it.
func (d *deps) mercadoPago() (*payAdapters.MercadoPago, usecase.OAuthUseCase, error) {
	pcfg := d.cfg.Payment
	mp, err := payAdapters.NewMercadoPago(pcfg.MercadoPago.APIBase, pcfg.MercadoPago.NotificationURL, pcfg.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("mercadopago: %w", err)
	}

	var client adapter.OAuthClient
	if oc, err := payAdapters.NewMercadoPagoOAuth(pcfg.MercadoPago, pcfg.Timeout); err != nil {
		d.log.Warn().Err(err).Msg("mercado pago oauth disabled")
	} else {
		client = oc
	}
	codec := security.NewStateCodec(d.cfg.Security.StateSecret, oauthStateTTL)
	oauthUC := usecase.NewOAuthUseCase(client, mp, d.repo, d.directory, codec, d.translator, d.log)
	return mp, oauthUC, nil
}
