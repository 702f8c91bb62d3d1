package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/wauterstoon/tickets/internal/api/http"
	"github.com/wauterstoon/tickets/internal/api/http/handlers"
	"github.com/wauterstoon/tickets/internal/auth"
	"github.com/wauterstoon/tickets/internal/config"
	"github.com/wauterstoon/tickets/internal/observability"
	"github.com/wauterstoon/tickets/internal/persistence"
	"github.com/wauterstoon/tickets/internal/realtime"
	"github.com/wauterstoon/tickets/internal/repository"
	"github.com/wauterstoon/tickets/internal/sanitize"
	"github.com/wauterstoon/tickets/internal/service"
	"github.com/wauterstoon/tickets/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisConn := persistence.NewRedis(cfg.Redis, logger)
	defer redisConn.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	activityRepo := repository.NewActivityLogRepository(pool)

	guard := auth.NewGuard(cfg.Support.Emails)
	hub := realtime.NewHub(logger)

	var broker realtime.Broker
	if err := redisConn.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, broadcasting locally only", zap.Error(err))
		broker = realtime.NewLocalBroker(hub, logger)
	} else {
		redisBroker := realtime.NewRedisBroker(redisConn.Client, hub, logger)
		go redisBroker.Run(ctx)
		broker = redisBroker
	}

	uploads, err := storage.NewStore(cfg.Upload.Dir, logger)
	if err != nil {
		logger.Fatal("failed to init upload store", zap.Error(err))
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		UserRepo:       userRepo,
		TicketRepo:     ticketRepo,
		MessageRepo:    messageRepo,
		AttachmentRepo: attachmentRepo,
		ActivityRepo:   activityRepo,
		Guard:          guard,
		Broker:         broker,
		Sanitizer:      sanitize.New(),
		Logger:         logger,
	})

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisConn)
	ticketsHandler := handlers.NewTicketsHandler(ticketService, uploads)
	supportHandler := handlers.NewSupportTicketsHandler(ticketService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:    healthHandler,
		Tickets:   ticketsHandler,
		Support:   supportHandler,
		Guard:     guard,
		Hub:       hub,
		UploadDir: cfg.Upload.Dir,
		Logger:    logger,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
