package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/oncall-board-api/internal/dto"
	"github.com/noah-isme/oncall-board-api/internal/handler"
	"github.com/noah-isme/oncall-board-api/internal/models"
	"github.com/noah-isme/oncall-board-api/internal/service"
	"github.com/noah-isme/oncall-board-api/pkg/config"
	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
)

type tokenStub map[string]*models.JWTClaims

func (t tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

type accountStub map[string]*models.User

func (a accountStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := a[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type authStub struct{}

func (authStub) Register(ctx context.Context, req dto.RegisterRequest) (*dto.LoginResponse, error) {
	return nil, appErrors.ErrUsernameTaken
}

func (authStub) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	return nil, appErrors.ErrInvalidCredentials
}

func (authStub) ChangePassword(ctx context.Context, userID string, req dto.ChangePasswordRequest) error {
	return nil
}

type userAdminStub struct{}

func (userAdminStub) List(ctx context.Context) ([]dto.UserSummary, error) {
	return []dto.UserSummary{{ID: "admin", Username: "ada", Role: models.RoleAdmin}}, nil
}

func (userAdminStub) Update(ctx context.Context, id string, req dto.UpdateUserRequest, actor models.Actor) (*dto.UserSummary, error) {
	return &dto.UserSummary{ID: id}, nil
}

func (userAdminStub) Delete(ctx context.Context, id string, actor models.Actor) error { return nil }

func (userAdminStub) DeleteAllExceptSelf(ctx context.Context, actor models.Actor) (int64, error) {
	return 0, nil
}

func testRouter(t *testing.T, cfg *config.Config, ready error) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router, err := newRouter(cfg, zap.NewNop(), routerDeps{
		tokens: tokenStub{
			"user":  {UserID: "user"},
			"admin": {UserID: "admin"},
		},
		users: accountStub{
			"user":  {ID: "user", Role: models.RoleUser},
			"admin": {ID: "admin", Role: models.RoleAdmin},
		},
		metrics:     metrics,
		ready:       func(context.Context) error { return ready },
		auth:        handler.NewAuthHandler(authStub{}),
		userAdmin:   handler.NewUserHandler(userAdminStub{}),
		metricsView: handler.NewMetricsHandler(metrics),
	})
	require.NoError(t, err)
	return router
}

func call(router *gin.Engine, method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouterProbes(t *testing.T) {
	cfg := &config.Config{APIPrefix: "/api/v1", Env: config.EnvDevelopment}

	router := testRouter(t, cfg, nil)
	assert.Equal(t, http.StatusOK, call(router, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, call(router, http.MethodGet, "/ready", "", nil).Code)
	assert.Equal(t, http.StatusOK, call(router, http.MethodGet, "/metrics", "", nil).Code)

	router = testRouter(t, cfg, errors.New("postgres: down"))
	assert.Equal(t, http.StatusServiceUnavailable, call(router, http.MethodGet, "/ready", "", nil).Code)
}

func TestRouterGuardsAdminRoutes(t *testing.T) {
	router := testRouter(t, &config.Config{APIPrefix: "/api/v1"}, nil)

	assert.Equal(t, http.StatusUnauthorized, call(router, http.MethodGet, "/api/v1/admin/users", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, call(router, http.MethodGet, "/api/v1/admin/users", "user", nil).Code)

	rec := call(router, http.MethodGet, "/api/v1/admin/users", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = call(router, http.MethodGet, "/api/v1/me", "user", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"user"`)
}

func TestRouterRateLimitsWrites(t *testing.T) {
	cfg := &config.Config{APIPrefix: "/api/v1", RateLimit: config.RateLimitConfig{Enabled: true, Rate: "1-M"}}
	router := testRouter(t, cfg, nil)
	body := []byte(`{"username":"ann","password":"secret"}`)

	assert.Equal(t, http.StatusUnauthorized, call(router, http.MethodPost, "/api/v1/auth/login", "", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, call(router, http.MethodPost, "/api/v1/auth/login", "", body).Code)
}
