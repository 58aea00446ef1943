package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Alirun/StreamSaga/internal/dto"
	"github.com/Alirun/StreamSaga/internal/models"
	appErrors "github.com/Alirun/StreamSaga/pkg/errors"
	"github.com/Alirun/StreamSaga/pkg/response"
)

type proposalService interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateProposalRequest) (*models.Proposal, error)
	Archive(ctx context.Context, claims *models.JWTClaims, proposalID string) error
}

type similarSearchService interface {
	FindSimilarProposals(ctx context.Context, userID, topicID, title string, description *string) ([]models.Proposal, error)
}

// ProposalHandler manages proposal HTTP endpoints.
type ProposalHandler struct {
	proposals proposalService
	search    similarSearchService
}

// NewProposalHandler constructs the handler.
func NewProposalHandler(proposals proposalService, search similarSearchService) *ProposalHandler {
	return &ProposalHandler{proposals: proposals, search: search}
}

// Create godoc
// @Summary Submit a proposal to an open topic
// @Tags Proposals
// @Accept json
// @Produce json
// @Param request body dto.CreateProposalRequest true "Proposal payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /proposals [post]
func (h *ProposalHandler) Create(c *gin.Context) {
	var req dto.CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid proposal payload"))
		return
	}

	proposal, err := h.proposals.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, proposal)
}

// Archive godoc
// @Summary Archive an owned proposal
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal id"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /proposals/{id}/archive [post]
func (h *ProposalHandler) Archive(c *gin.Context) {
	if err := h.proposals.Archive(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Action(c, http.StatusOK, "proposal archived", nil)
}

// Similar godoc
// @Summary Find proposals similar to a draft
// @Tags Proposals
// @Accept json
// @Produce json
// @Param request body dto.CreateProposalRequest true "Draft proposal"
// @Success 200 {object} response.Envelope
// @Router /proposals/similar [post]
func (h *ProposalHandler) Similar(c *gin.Context) {
	var req dto.CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid proposal payload"))
		return
	}

	matches, err := h.search.FindSimilarProposals(c.Request.Context(), currentUserID(c), req.TopicID, req.Title, req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, matches, nil)
}
