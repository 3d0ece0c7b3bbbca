package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/oncall-board-api/internal/models"
	"github.com/noah-isme/oncall-board-api/internal/service"
	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
	"github.com/noah-isme/oncall-board-api/pkg/logger"
)

type validatorStub map[string]*models.JWTClaims

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type finderStub map[string]*models.User

func (f finderStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

var (
	tokens = validatorStub{
		"user-token":  {UserID: "u1", Role: models.RoleAdmin},
		"ghost-token": {UserID: "ghost", Role: models.RoleUser},
	}
	accounts = finderStub{
		// The stored role wins over the token's claim.
		"u1": {ID: "u1", FirstName: "Ann", LastName: "Lee", Role: models.RoleUser},
	}
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", append(handlers, func(c *gin.Context) {
		actor, _ := ActorFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": actor.ID, "role": actor.Role, "log": c.GetString(logger.ActorKey)})
	})...)
	return router
}

func serve(router *gin.Engine, target, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTRequiresBearerToken(t *testing.T) {
	router := newRouter(JWT(tokens), Actor(accounts))

	assert.Equal(t, http.StatusUnauthorized, serve(router, "/", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "/", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "/", "Bearer nope").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "/?access_token=user-token", "").Code,
		"query tokens are only accepted where enabled")

	rec := serve(router, "/", "Bearer user-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"u1","role":"user","log":"u1"}`, rec.Body.String())
}

func TestJWTWithQueryAcceptsTokenParameter(t *testing.T) {
	router := newRouter(JWTWithQuery(tokens), Actor(accounts))
	assert.Equal(t, http.StatusOK, serve(router, "/?access_token=user-token", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, "/", "Bearer user-token").Code)
}

func TestActorRejectsDeletedAccount(t *testing.T) {
	router := newRouter(JWT(tokens), Actor(accounts))
	assert.Equal(t, http.StatusUnauthorized, serve(router, "/", "Bearer ghost-token").Code)
}

func TestRequireRoles(t *testing.T) {
	admins := finderStub{"u1": {ID: "u1", Role: models.RoleAdmin}}

	router := newRouter(JWT(tokens), Actor(accounts), RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, serve(router, "/", "Bearer user-token").Code)

	router = newRouter(JWT(tokens), Actor(admins), RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusOK, serve(router, "/", "Bearer user-token").Code)

	router = newRouter(RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, serve(router, "/", "").Code)
}

func TestMetricsSkipsWebsocketUpgrades(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/tracks/:track/schedule", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tracks/live/schedule", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	upgrade := httptest.NewRequest(http.MethodGet, "/tracks/live/schedule", nil)
	upgrade.Header.Set("Upgrade", "websocket")
	router.ServeHTTP(httptest.NewRecorder(), upgrade)

	assert.Equal(t, uint64(2), metrics.Snapshot().RequestsTotal)
}
