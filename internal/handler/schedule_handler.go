package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/oncall-board-api/internal/dto"
	"github.com/noah-isme/oncall-board-api/internal/models"
	"github.com/noah-isme/oncall-board-api/internal/service"
	"github.com/noah-isme/oncall-board-api/pkg/response"
)

type scheduleReader interface {
	Schedule(ctx context.Context, track models.Track, actor models.Actor) (*dto.ScheduleResponse, error)
}

type onCallReader interface {
	Current(ctx context.Context) (*dto.OnCallResponse, error)
}

type scheduleExporter interface {
	Export(ctx context.Context, track models.Track, format string) (*service.ExportFile, error)
}

// ScheduleHandler serves schedule reads.
type ScheduleHandler struct {
	schedules scheduleReader
	onCall    onCallReader
	exporter  scheduleExporter
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(schedules scheduleReader, onCall onCallReader, exporter scheduleExporter) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, onCall: onCall, exporter: exporter}
}

// Schedule godoc
// @Summary Track schedule
// @Description Dates of the track's window, the 24 slot labels and every claim within the window. The live track includes who is on call; admins also receive the user list.
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param track path string true "Track" Enums(live, test)
// @Success 200 {object} response.Envelope{data=dto.ScheduleResponse}
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /tracks/{track}/schedule [get]
func (h *ScheduleHandler) Schedule(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	track, ok := requireTrack(c)
	if !ok {
		return
	}

	schedule, err := h.schedules.Schedule(c.Request.Context(), track, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule)
}

// OnCall godoc
// @Summary Current on-call
// @Description Who holds the live track's slot containing the current time
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=dto.OnCallResponse}
// @Failure 401 {object} response.Envelope
// @Router /oncall [get]
func (h *ScheduleHandler) OnCall(c *gin.Context) {
	current, err := h.onCall.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, current)
}

// Export godoc
// @Summary Export schedule
// @Description Download the track's window as CSV or PDF
// @Tags Schedule
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param track path string true "Track" Enums(live, test)
// @Param format query string false "Export format" Enums(csv, pdf)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /tracks/{track}/export [get]
func (h *ScheduleHandler) Export(c *gin.Context) {
	track, ok := requireTrack(c)
	if !ok {
		return
	}
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid export query"))
		return
	}

	file, err := h.exporter.Export(c.Request.Context(), track, query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}
