package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Alirun/StreamSaga/internal/dto"
	"github.com/Alirun/StreamSaga/internal/models"
	appErrors "github.com/Alirun/StreamSaga/pkg/errors"
	"github.com/Alirun/StreamSaga/pkg/export"
	"github.com/Alirun/StreamSaga/pkg/response"
)

type topicService interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateTopicRequest) (*models.Topic, error)
	List(ctx context.Context, filter dto.TopicFilter) ([]models.Topic, error)
	GetWithProposals(ctx context.Context, topicID, userID string) (*models.TopicWithProposals, error)
	Archive(ctx context.Context, claims *models.JWTClaims, topicID string) error
}

type resolutionService interface {
	Resolve(ctx context.Context, claims *models.JWTClaims, topicID string, req dto.ResolveTopicRequest) error
	Report(ctx context.Context, claims *models.JWTClaims, topicID, format string) (*export.File, error)
}

// TopicHandler manages topic HTTP endpoints.
type TopicHandler struct {
	topics      topicService
	resolutions resolutionService
}

// NewTopicHandler constructs the handler.
func NewTopicHandler(topics topicService, resolutions resolutionService) *TopicHandler {
	return &TopicHandler{topics: topics, resolutions: resolutions}
}

// List godoc
// @Summary List topics by status
// @Tags Topics
// @Produce json
// @Param status query string false "Topic status (open, closed, archived)"
// @Success 200 {object} response.Envelope
// @Router /topics [get]
func (h *TopicHandler) List(c *gin.Context) {
	filter := dto.TopicFilter{Status: c.Query("status")}
	topics, err := h.topics.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topics, nil)
}

// Create godoc
// @Summary Create a topic
// @Tags Topics
// @Accept json
// @Produce json
// @Param request body dto.CreateTopicRequest true "Topic payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /topics [post]
func (h *TopicHandler) Create(c *gin.Context) {
	var req dto.CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid topic payload"))
		return
	}

	topic, err := h.topics.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, topic)
}

// Get godoc
// @Summary Get a topic with its active proposals
// @Tags Topics
// @Produce json
// @Param id path string true "Topic id"
// @Success 200 {object} response.Envelope
// @Router /topics/{id} [get]
func (h *TopicHandler) Get(c *gin.Context) {
	topic, err := h.topics.GetWithProposals(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topic, nil)
}

// Resolve godoc
// @Summary Close a topic and approve the selected proposals
// @Tags Topics
// @Accept json
// @Produce json
// @Param id path string true "Topic id"
// @Param request body dto.ResolveTopicRequest true "Approved proposal ids"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /topics/{id}/resolve [post]
func (h *TopicHandler) Resolve(c *gin.Context) {
	var req dto.ResolveTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid resolve payload"))
		return
	}

	if err := h.resolutions.Resolve(c.Request.Context(), claimsFromContext(c), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Action(c, http.StatusOK, "topic resolved", nil)
}

// Archive godoc
// @Summary Archive a topic
// @Tags Topics
// @Produce json
// @Param id path string true "Topic id"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /topics/{id}/archive [post]
func (h *TopicHandler) Archive(c *gin.Context) {
	if err := h.topics.Archive(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Action(c, http.StatusOK, "topic archived", nil)
}

// Report godoc
// @Summary Export a topic resolution report
// @Tags Topics
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Topic id"
// @Param format query string false "Report format (csv, pdf)"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /topics/{id}/report [get]
func (h *TopicHandler) Report(c *gin.Context) {
	topicID := c.Param("id")
	file, err := h.resolutions.Report(c.Request.Context(), claimsFromContext(c), topicID, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("topic-%s-report.%s", topicID, file.Extension)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, file.ContentType, file.Bytes)
}
