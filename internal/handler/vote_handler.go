package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Alirun/StreamSaga/internal/models"
	"github.com/Alirun/StreamSaga/pkg/response"
)

type voteService interface {
	Cast(ctx context.Context, claims *models.JWTClaims, proposalID string) error
	Retract(ctx context.Context, claims *models.JWTClaims, proposalID string) error
}

// VoteHandler manages vote HTTP endpoints.
type VoteHandler struct {
	service voteService
}

// NewVoteHandler constructs the handler.
func NewVoteHandler(service voteService) *VoteHandler {
	return &VoteHandler{service: service}
}

// Cast godoc
// @Summary Vote for a proposal
// @Tags Votes
// @Produce json
// @Param id path string true "Proposal id"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /proposals/{id}/vote [post]
func (h *VoteHandler) Cast(c *gin.Context) {
	if err := h.service.Cast(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Action(c, http.StatusOK, "vote recorded", nil)
}

// Retract godoc
// @Summary Retract a vote from a proposal
// @Tags Votes
// @Produce json
// @Param id path string true "Proposal id"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /proposals/{id}/vote [delete]
func (h *VoteHandler) Retract(c *gin.Context) {
	if err := h.service.Retract(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Action(c, http.StatusOK, "vote retracted", nil)
}
