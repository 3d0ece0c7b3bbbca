package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/oncall-board-api/internal/dto"
	"github.com/noah-isme/oncall-board-api/internal/models"
	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
	"github.com/noah-isme/oncall-board-api/pkg/response"
)

type availabilityService interface {
	ApplyChange(ctx context.Context, track models.Track, actor models.Actor, req dto.SingleChangeRequest) (*dto.ChangeResult, error)
	ApplyBatch(ctx context.Context, track models.Track, actor models.Actor, req dto.BatchChangeRequest) (*dto.BatchResult, error)
}

// AvailabilityHandler accepts claim and unclaim intents.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(svc availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// Change godoc
// @Summary Update one slot
// @Description Claim or release one slot for the acting user. A slot held by someone else answers 409.
// @Tags Availability
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param track path string true "Track" Enums(live, test)
// @Param payload body dto.SingleChangeRequest true "Change"
// @Success 200 {object} response.Envelope{data=dto.ChangeResult}
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope{data=dto.ChangeResult}
// @Router /tracks/{track}/availability [post]
func (h *AvailabilityHandler) Change(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	track, ok := requireTrack(c)
	if !ok {
		return
	}
	var req dto.SingleChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid availability payload"))
		return
	}

	result, err := h.service.ApplyChange(c.Request.Context(), track, actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = appErrors.ErrSlotClaimed.Status
	}
	response.JSON(c, status, result)
}

// Batch godoc
// @Summary Apply a batch of changes
// @Description Apply ordered claim and release intents. Conflicting intents are rejected individually; admins may target another user.
// @Tags Availability
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param track path string true "Track" Enums(live, test)
// @Param payload body dto.BatchChangeRequest true "Changes"
// @Success 200 {object} response.Envelope{data=dto.BatchResult}
// @Failure 400 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /tracks/{track}/availability/batch [post]
func (h *AvailabilityHandler) Batch(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	track, ok := requireTrack(c)
	if !ok {
		return
	}
	var req dto.BatchChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid batch payload"))
		return
	}

	result, err := h.service.ApplyBatch(c.Request.Context(), track, actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
