// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/terminalpixel/postrchild/internal/application"
	"github.com/terminalpixel/postrchild/internal/config"
	"github.com/terminalpixel/postrchild/internal/dialog"
	"github.com/terminalpixel/postrchild/internal/indieauth"
	pg "github.com/terminalpixel/postrchild/internal/infra/db/postgres"
	"github.com/terminalpixel/postrchild/internal/infra/i18n"
	"github.com/terminalpixel/postrchild/internal/infra/logging"
	"github.com/terminalpixel/postrchild/internal/infra/metrics"
	red "github.com/terminalpixel/postrchild/internal/infra/redis"
	"github.com/terminalpixel/postrchild/internal/infra/security"
	tele "github.com/terminalpixel/postrchild/internal/infra/telegram"
	"github.com/terminalpixel/postrchild/internal/infra/web"
	"github.com/terminalpixel/postrchild/internal/micropub"
	"github.com/terminalpixel/postrchild/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Encryption ----
	encKey := cfg.Security.EncryptionKey
	if len(encKey) != 32 {
		logger.Warn().Msg("security.encryption_key not set or not 32 bytes; falling back to dev key (INSECURE)")
		encKey = "0123456789abcdef0123456789abcdef"
	}
	encSvc, err := security.NewEncryptionService(encKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}

	// ---- Storage ----
	accountRepo := pg.NewAccountRepo(pool, encSvc)
	if err := accountRepo.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("schema")
	}
	sessionRepo := pg.NewDurableSessionRepo(
		red.NewSessionRepo(redisClient, cfg.Redis.TTL),
		accountRepo,
		*logger,
	)

	// ---- Translations ----
	translator, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}

	// ---- Use cases ----
	authUC := usecase.NewAuthUseCase(
		indieauth.New(cfg.IndieAuth.HTTPTimeout, *logger),
		cfg.IndieAuth.ClientID,
		cfg.IndieAuth.RedirectURI,
		*logger,
	)
	publishUC := usecase.NewPublishUseCase(micropub.New(cfg.IndieAuth.HTTPTimeout, *logger), *logger)
	media := usecase.NewMediaFetcher(cfg.IndieAuth.HTTPTimeout, *logger)

	// ---- Dialogs ----
	dispatcher := dialog.NewDispatcher(&dialog.Deps{
		Auth:     authUC,
		Publish:  publishUC,
		Media:    media,
		Sessions: sessionRepo,
		T:        translator,
		Log:      *logger,
	}, locker)
	facade := application.NewBotFacade(dispatcher, logger)

	// ---- Telegram ----
	botAdapter, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, facade, rateLimiter, translator, *logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}

	// ---- Web ----
	webSrv := web.NewServer(&cfg.Web, sessionRepo, accountRepo, !cfg.Runtime.Dev, *logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := botAdapter.StartPolling(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := webSrv.Start()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		botAdapter.StopPolling()
		return webSrv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("shutdown with error")
	}
	logger.Info().Msg("shutdown complete")
}
