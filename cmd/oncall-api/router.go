package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/oncall-board-api/internal/handler"
	"github.com/noah-isme/oncall-board-api/internal/middleware"
	"github.com/noah-isme/oncall-board-api/internal/models"
	"github.com/noah-isme/oncall-board-api/internal/service"
	"github.com/noah-isme/oncall-board-api/pkg/config"
	"github.com/noah-isme/oncall-board-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/oncall-board-api/pkg/middleware/cors"
	"github.com/noah-isme/oncall-board-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/oncall-board-api/pkg/middleware/requestid"
)

type routerDeps struct {
	tokens  middleware.TokenValidator
	users   middleware.UserFinder
	metrics *service.MetricsService
	redis   *redis.Client
	ready   func(context.Context) error

	auth         *handler.AuthHandler
	schedule     *handler.ScheduleHandler
	availability *handler.AvailabilityHandler
	admin        *handler.AdminHandler
	userAdmin    *handler.UserHandler
	events       *handler.EventsHandler
	metricsView  *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.metricsView.Health)
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := deps.ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", deps.metricsView.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	var writeLimit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.RateLimit.Enabled {
		limit, err := ratelimit.New(ratelimit.Config{
			Rate:   cfg.RateLimit.Rate,
			Redis:  deps.redis,
			Logger: logr,
			Key: func(c *gin.Context) string {
				if actorID := c.GetString(logger.ActorKey); actorID != "" {
					return "actor:" + actorID
				}
				return "ip:" + c.ClientIP()
			},
		})
		if err != nil {
			return nil, err
		}
		writeLimit = limit
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", writeLimit, deps.auth.Register)
	auth.POST("/login", writeLimit, deps.auth.Login)

	// The change feed accepts the token as a query parameter for browser websockets.
	api.GET("/tracks/:track/events", middleware.JWTWithQuery(deps.tokens), middleware.Actor(deps.users), deps.events.Stream)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.tokens), middleware.Actor(deps.users))

	secured.GET("/me", deps.auth.Me)
	secured.PUT("/me/password", writeLimit, deps.auth.ChangePassword)
	secured.GET("/oncall", deps.schedule.OnCall)

	tracks := secured.Group("/tracks/:track")
	tracks.GET("/schedule", deps.schedule.Schedule)
	tracks.GET("/export", deps.schedule.Export)
	tracks.POST("/availability", writeLimit, deps.availability.Change)
	tracks.POST("/availability/batch", writeLimit, deps.availability.Batch)

	admin := secured.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/tracks/:track/window", deps.admin.GetWindow)
	admin.PUT("/tracks/:track/window", deps.admin.SetWindow)
	admin.DELETE("/tracks/:track/assignments", deps.admin.ClearAssignments)
	admin.GET("/users", deps.userAdmin.List)
	admin.DELETE("/users", deps.userAdmin.DeleteOthers)
	admin.PUT("/users/:id", deps.userAdmin.Update)
	admin.DELETE("/users/:id", deps.userAdmin.Delete)
	admin.GET("/metrics", deps.metricsView.Snapshot)

	return r, nil
}
