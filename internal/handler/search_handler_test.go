package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alirun/StreamSaga/internal/models"
)

type searchServiceMock struct {
	results   []models.TopicWithProposals
	lastQuery string
	called    bool
}

func (m *searchServiceMock) SearchGlobal(ctx context.Context, userID, query string) ([]models.TopicWithProposals, error) {
	m.called = true
	m.lastQuery = query
	return m.results, nil
}

func TestSearchHandlerShortQuerySkipsService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &searchServiceMock{}
	h := NewSearchHandler(mockSvc, 4)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/search?q=abc", nil)
	c.Request = req

	h.Search(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, mockSvc.called)

	var envelope struct {
		Data []models.TopicWithProposals `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Empty(t, envelope.Data)
}

func TestSearchHandlerCountsRunesNotBytes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &searchServiceMock{}
	h := NewSearchHandler(mockSvc, 4)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	// Two CJK runes span six bytes but are still below the four-rune minimum.
	req, _ := http.NewRequest(http.MethodGet, "/search?q="+url.QueryEscape("小说"), nil)
	c.Request = req

	h.Search(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, mockSvc.called)
}

func TestSearchHandlerTrimsQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &searchServiceMock{results: []models.TopicWithProposals{}}
	h := NewSearchHandler(mockSvc, 4)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/search?q=%20%20dragon%20plot%20%20", nil)
	c.Request = req

	h.Search(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.called)
	assert.Equal(t, "dragon plot", mockSvc.lastQuery)
}
