package ratelimit

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
	"github.com/noah-isme/oncall-board-api/pkg/response"
)

const defaultPrefix = "oncall:ratelimit"

// Config describes a limiter instance.
type Config struct {
	// Rate uses the limiter format, e.g. "120-M" or "10-S".
	Rate   string
	Prefix string
	// Redis shares counters across instances when set; otherwise counters are per process.
	Redis  *redis.Client
	Logger *zap.Logger
	// Key picks the bucket for a request. Defaults to the client IP.
	Key func(*gin.Context) string
}

// New builds a gin middleware enforcing cfg.Rate.
func New(cfg Config) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", cfg.Rate, err)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	store, err := newStore(cfg)
	if err != nil {
		cfg.Logger.Warn("rate limit redis store unavailable, using memory", zap.Error(err))
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: cfg.Prefix})
	}

	options := []mgin.Option{
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			response.Error(c, appErrors.ErrRateLimited)
			c.Abort()
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			// Counter failures must not block writes.
			cfg.Logger.Warn("rate limit check failed", zap.Error(err))
			c.Next()
		}),
	}
	if cfg.Key != nil {
		options = append(options, mgin.WithKeyGetter(cfg.Key))
	}

	return mgin.NewMiddleware(limiter.New(store, rate), options...), nil
}

func newStore(cfg Config) (limiter.Store, error) {
	if cfg.Redis == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: cfg.Prefix}), nil
	}
	return sredis.NewStoreWithOptions(cfg.Redis, limiter.StoreOptions{Prefix: cfg.Prefix})
}
