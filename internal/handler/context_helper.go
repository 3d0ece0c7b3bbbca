package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/oncall-board-api/internal/middleware"
	"github.com/noah-isme/oncall-board-api/internal/models"
	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
	"github.com/noah-isme/oncall-board-api/pkg/response"
)

// requireActor writes 401 and reports false when no actor was resolved.
func requireActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

// requireTrack parses the :track path parameter, writing 400 when unknown.
func requireTrack(c *gin.Context) (models.Track, bool) {
	track, err := models.ParseTrack(c.Param("track"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown track"))
		return "", false
	}
	return track, true
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
