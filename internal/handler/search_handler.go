package handler

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/Alirun/StreamSaga/internal/models"
	"github.com/Alirun/StreamSaga/pkg/response"
)

type globalSearchService interface {
	SearchGlobal(ctx context.Context, userID, query string) ([]models.TopicWithProposals, error)
}

// SearchHandler manages the global semantic search endpoint.
type SearchHandler struct {
	service        globalSearchService
	minQueryLength int
}

// NewSearchHandler constructs the handler.
func NewSearchHandler(service globalSearchService, minQueryLength int) *SearchHandler {
	if minQueryLength <= 0 {
		minQueryLength = 4
	}
	return &SearchHandler{service: service, minQueryLength: minQueryLength}
}

// Search godoc
// @Summary Semantic search over topics and proposals
// @Tags Search
// @Produce json
// @Param q query string true "Search query"
// @Success 200 {object} response.Envelope
// @Router /search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	// Short queries embed to noise. Skip the provider round trip entirely.
	// Counted in runes so multi-byte scripts are not over-counted.
	if utf8.RuneCountInString(query) < h.minQueryLength {
		response.JSON(c, http.StatusOK, []models.TopicWithProposals{}, nil)
		return
	}

	results, err := h.service.SearchGlobal(c.Request.Context(), currentUserID(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}
