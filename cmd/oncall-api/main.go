package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/oncall-board-api/api/swagger"
	"github.com/noah-isme/oncall-board-api/internal/handler"
	"github.com/noah-isme/oncall-board-api/internal/models"
	"github.com/noah-isme/oncall-board-api/internal/repository"
	"github.com/noah-isme/oncall-board-api/internal/service"
	"github.com/noah-isme/oncall-board-api/migrations"
	"github.com/noah-isme/oncall-board-api/pkg/cache"
	"github.com/noah-isme/oncall-board-api/pkg/config"
	"github.com/noah-isme/oncall-board-api/pkg/database"
	"github.com/noah-isme/oncall-board-api/pkg/jobs"
	"github.com/noah-isme/oncall-board-api/pkg/logger"
	"github.com/noah-isme/oncall-board-api/pkg/pubsub"
	"github.com/noah-isme/oncall-board-api/pkg/realtime"
)

// @title On-call Board API
// @version 1.0.0
// @description Shared on-call shift board with live and test scheduling tracks
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, migrations.FS, logr); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close() //nolint:errcheck
	}

	var bus pubsub.Bus
	if redisClient != nil {
		bus = pubsub.NewRedisBus(redisClient, "oncall:", logr)
	} else {
		bus = pubsub.NewMemoryBus(64)
	}
	defer bus.Close() //nolint:errcheck

	loc := cfg.Schedule.Location()
	clock := service.ScheduleClock{Location: loc, Now: time.Now}
	validate := validator.New()

	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	windowRepo := repository.NewWindowRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "oncall:cache:", logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Schedule.CacheTTL, logr, cfg.Schedule.CacheEnabled && redisClient != nil)
	broadcaster := service.NewBroadcastService(bus, metricsSvc, logr, jobs.QueueConfig{
		Workers:    cfg.Broadcast.Workers,
		BufferSize: cfg.Broadcast.BufferSize,
		MaxRetries: cfg.Broadcast.MaxRetries,
		RetryDelay: cfg.Broadcast.RetryDelay,
		Logger:     logr,
	})
	broadcaster.Start(ctx)
	defer broadcaster.Stop()

	hub := realtime.NewHub(bus, realtime.HubConfig{
		AllowedOrigins:     cfg.Websocket.AllowedOrigins,
		PingInterval:       cfg.Websocket.PingInterval,
		WriteTimeout:       cfg.Websocket.WriteTimeout,
		Logger:             logr,
		OnConnectionChange: metricsSvc.SetViewers,
	})
	topics := make([]string, 0, len(models.Tracks()))
	for _, track := range models.Tracks() {
		topics = append(topics, track.Channel())
	}
	go func() {
		if err := hub.Run(ctx, topics...); err != nil {
			logr.Error("realtime hub stopped", zap.Error(err))
		}
	}()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	windowSvc := service.NewWindowService(windowRepo, clock, cfg.Schedule.DefaultDays, cacheSvc, broadcaster, validate, logr)
	onCallSvc := service.NewOnCallService(assignmentRepo, clock)
	scheduleSvc := service.NewScheduleService(assignmentRepo, windowSvc, onCallSvc, userRepo, cacheSvc, clock, logr)
	availabilitySvc := service.NewAvailabilityService(assignmentRepo, userRepo, broadcaster, cacheSvc, metricsSvc, validate, logr)
	exportSvc := service.NewExportService(scheduleSvc, logr, nil, nil)
	userSvc := service.NewUserService(userRepo, broadcaster, cacheSvc, validate, logr)
	adminSvc := service.NewAdminService(assignmentRepo, broadcaster, cacheSvc, validate, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := newRouter(cfg, logr, routerDeps{
		tokens:       authSvc,
		users:        userRepo,
		metrics:      metricsSvc,
		redis:        redisClient,
		ready:        readiness(db.PingContext, redisClient),
		auth:         handler.NewAuthHandler(authSvc),
		schedule:     handler.NewScheduleHandler(scheduleSvc, onCallSvc, exportSvc),
		availability: handler.NewAvailabilityHandler(availabilitySvc),
		admin:        handler.NewAdminHandler(windowSvc, adminSvc),
		userAdmin:    handler.NewUserHandler(userSvc),
		events:       handler.NewEventsHandler(hub, logr),
		metricsView:  handler.NewMetricsHandler(metricsSvc),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env),
			zap.String("timezone", loc.String()), zap.Bool("redis", redisClient != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func readiness(pingDB func(context.Context) error, redisClient *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := pingDB(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}
