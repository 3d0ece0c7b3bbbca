package middleware

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/oncall-board-api/internal/models"
	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
	"github.com/noah-isme/oncall-board-api/pkg/logger"
	"github.com/noah-isme/oncall-board-api/pkg/response"
)

// ContextActorKey is the gin context key storing the resolved models.Actor.
const ContextActorKey = "actor"

// UserFinder loads users by id.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Actor loads the authenticated user once per request so role and display name
// reflect the stored record rather than the token. Must run after JWT.
func Actor(users UserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists"))
			} else {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account"))
			}
			c.Abort()
			return
		}

		c.Set(ContextActorKey, user.Actor())
		c.Set(logger.ActorKey, user.ID)
		c.Next()
	}
}

// ActorFromContext returns the request's actor.
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	value, exists := c.Get(ContextActorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := value.(models.Actor)
	return actor, ok
}
