package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/oncall-board-api/internal/dto"
	"github.com/noah-isme/oncall-board-api/internal/models"
	"github.com/noah-isme/oncall-board-api/internal/service"
	"github.com/noah-isme/oncall-board-api/pkg/response"
)

type windowService interface {
	Current(ctx context.Context, track models.Track) (models.ScheduleWindow, error)
	Set(ctx context.Context, track models.Track, actor models.Actor, req dto.WindowRequest) (models.ScheduleWindow, error)
	Location() *time.Location
}

type assignmentAdmin interface {
	ClearAssignments(ctx context.Context, track models.Track, actor models.Actor, query dto.ClearAssignmentsQuery) (*dto.ClearResult, error)
}

// AdminHandler exposes per-track maintenance endpoints.
type AdminHandler struct {
	windows windowService
	admin   assignmentAdmin
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(windows windowService, admin assignmentAdmin) *AdminHandler {
	return &AdminHandler{windows: windows, admin: admin}
}

// GetWindow godoc
// @Summary Get schedule window
// @Description The track's date range. A default range is created on first read.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param track path string true "Track" Enums(live, test)
// @Success 200 {object} response.Envelope{data=dto.WindowResponse}
// @Failure 403 {object} response.Envelope
// @Router /admin/tracks/{track}/window [get]
func (h *AdminHandler) GetWindow(c *gin.Context) {
	track, ok := requireTrack(c)
	if !ok {
		return
	}
	window, err := h.windows.Current(c.Request.Context(), track)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, service.WindowResponse(window, h.windows.Location()))
}

// SetWindow godoc
// @Summary Set schedule window
// @Description Replace the track's date range. Both dates are inclusive.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param track path string true "Track" Enums(live, test)
// @Param payload body dto.WindowRequest true "Window"
// @Success 200 {object} response.Envelope{data=dto.WindowResponse}
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/tracks/{track}/window [put]
func (h *AdminHandler) SetWindow(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	track, ok := requireTrack(c)
	if !ok {
		return
	}
	var req dto.WindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid window payload"))
		return
	}

	window, err := h.windows.Set(c.Request.Context(), track, actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, service.WindowResponse(window, h.windows.Location()))
}

// ClearAssignments godoc
// @Summary Clear claims
// @Description Remove the track's claims within a date range, of one user, or all of them
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param track path string true "Track" Enums(live, test)
// @Param start query string false "First date (YYYY-MM-DD)"
// @Param end query string false "Last date (YYYY-MM-DD)"
// @Param user_id query string false "Only this user's claims"
// @Success 200 {object} response.Envelope{data=dto.ClearResult}
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/tracks/{track}/assignments [delete]
func (h *AdminHandler) ClearAssignments(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	track, ok := requireTrack(c)
	if !ok {
		return
	}
	var query dto.ClearAssignmentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid clear filter"))
		return
	}

	result, err := h.admin.ClearAssignments(c.Request.Context(), track, actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
