package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Er1one/telegram-bot-template/internal/bot"
	"github.com/Er1one/telegram-bot-template/internal/broadcast"
	"github.com/Er1one/telegram-bot-template/internal/config"
	"github.com/Er1one/telegram-bot-template/internal/handler"
	"github.com/Er1one/telegram-bot-template/internal/i18n"
	"github.com/Er1one/telegram-bot-template/internal/infra/postgresql"
	"github.com/Er1one/telegram-bot-template/internal/infra/postgresql/migrations"
	infraredis "github.com/Er1one/telegram-bot-template/internal/infra/redis"
	"github.com/Er1one/telegram-bot-template/internal/observability"
	"github.com/Er1one/telegram-bot-template/internal/provider"
	"github.com/Er1one/telegram-bot-template/internal/queue"
	"github.com/Er1one/telegram-bot-template/internal/repository"
	"github.com/Er1one/telegram-bot-template/internal/service"
	"github.com/Er1one/telegram-bot-template/internal/transport"
)

const (
	shutdownTimeout  = 10 * time.Second
	consumerPrefetch = 1
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("bot stopped with error", zap.Error(err))
	}
	logger.Info("bot stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	adminIDs, err := cfg.AdminIDList()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	broker, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL, logger)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer broker.Close()

	publisher := queue.NewRabbitMQPublisher(broker)
	consumer := queue.NewRabbitMQConsumer(broker, consumerPrefetch, logger)

	api, err := provider.NewBotAPI(cfg.TelegramAPIURL, cfg.BotToken)
	if err != nil {
		return err
	}

	catalog, err := i18n.New(cfg.DefaultLanguage, logger)
	if err != nil {
		return err
	}

	userRepo := repository.NewGormUserRepo(db)
	runRepo := repository.NewGormBroadcastRepo(db)

	users, err := service.NewUserService(userRepo, infraredis.NewLocaleCache(rdb, cfg.LocaleCacheTTL()), catalog, logger)
	if err != nil {
		return err
	}

	flood, err := infraredis.NewAntiflood(rdb, cfg.AntifloodInterval())
	if err != nil {
		return err
	}

	dispatcher := broadcast.NewDispatcher(repository.NewRecipientSource(userRepo), logger)
	dispatcher.SetMetrics(metrics)

	broadcasts, err := service.NewBroadcastService(runRepo, publisher, dispatcher, api, service.BroadcastSettings{
		PageSize:      cfg.BroadcastPageSize,
		MaxConcurrent: cfg.BroadcastMaxConcurrent,
		MaxRate:       cfg.BroadcastRatePerSec,
	}, logger)
	if err != nil {
		return err
	}
	broadcasts.SetMetrics(metrics)
	broadcasts.SetReporter(catalog, users)

	worker, err := service.NewBroadcastWorker(consumer, broadcasts, cfg.BroadcastWorkers, logger)
	if err != nil {
		return err
	}

	tg, err := bot.New(bot.Options{
		Token:          cfg.BotToken,
		ServerURL:      cfg.TelegramAPIURL,
		AdminIDs:       adminIDs,
		LoggingChatID:  cfg.LoggingChatID,
		ErrorsThreadID: cfg.ErrorsThreadID,
	}, users, broadcasts, flood, catalog, logger)
	if err != nil {
		return err
	}
	tg.SetMetrics(metrics)
	if err := tg.LoadIdentity(ctx); err != nil {
		logger.Warn("bot identity unknown, accepting any command mention", zap.Error(err))
	}
	if cfg.LoggingChatID == 0 {
		logger.Info("error reports disabled, LOGGING_CHAT_ID is empty")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb, broker)

	if cfg.AdminAPIToken != "" {
		if err := handler.RegisterBroadcastRoutes(app, broadcasts, cfg.AdminAPIToken); err != nil {
			return err
		}
	} else {
		logger.Info("admin api disabled, ADMIN_API_TOKEN is empty")
	}

	webhookMode := cfg.WebhookURL != ""
	if webhookMode {
		webhook, err := handler.NewWebhookHandler(ctx, tg, cfg.WebhookSecret, logger)
		if err != nil {
			return err
		}
		handler.RegisterWebhookRoutes(app, webhookPath(cfg.WebhookURL), webhook)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Warn("http server shutdown failed", zap.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		return worker.Start(gctx)
	})

	g.Go(func() error {
		if webhookMode {
			return tg.EnsureWebhook(gctx, cfg.WebhookURL, cfg.WebhookSecret)
		}
		return tg.Poll(gctx)
	})

	logger.Info("bot started",
		zap.Bool("webhook", webhookMode),
		zap.Int("admins", len(adminIDs)),
		zap.Strings("locales", catalog.Locales()),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// webhookPath returns the path component Telegram will POST to.
func webhookPath(webhookURL string) string {
	u, err := url.Parse(webhookURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
