package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type viewerHub interface {
	Serve(w http.ResponseWriter, r *http.Request, topic string) error
}

// EventsHandler upgrades viewers to the websocket change feed of a track.
type EventsHandler struct {
	hub    viewerHub
	logger *zap.Logger
}

// NewEventsHandler constructs the handler.
func NewEventsHandler(hub viewerHub, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{hub: hub, logger: logger}
}

// Stream godoc
// @Summary Schedule change feed
// @Description Websocket emitting {"event","track","at"} whenever the track's schedule changes. Browsers pass the token as access_token.
// @Tags Schedule
// @Security BearerAuth
// @Param track path string true "Track" Enums(live, test)
// @Param access_token query string false "Access token"
// @Success 101
// @Failure 400 {object} response.Envelope
// @Router /tracks/{track}/events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	track, ok := requireTrack(c)
	if !ok {
		return
	}
	// The upgrader writes its own error response on failure.
	if err := h.hub.Serve(c.Writer, c.Request, track.Channel()); err != nil {
		h.logger.Debug("websocket upgrade failed", zap.String("track", string(track)), zap.Error(err))
	}
}
