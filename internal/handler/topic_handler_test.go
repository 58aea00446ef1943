package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alirun/StreamSaga/internal/dto"
	"github.com/Alirun/StreamSaga/internal/middleware"
	"github.com/Alirun/StreamSaga/internal/models"
	appErrors "github.com/Alirun/StreamSaga/pkg/errors"
	"github.com/Alirun/StreamSaga/pkg/export"
)

type topicServiceMock struct {
	created    *models.Topic
	createErr  error
	listResp   []models.Topic
	getResp    *models.TopicWithProposals
	getErr     error
	archiveErr error
	lastFilter dto.TopicFilter
}

func (m *topicServiceMock) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateTopicRequest) (*models.Topic, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.created, nil
}

func (m *topicServiceMock) List(ctx context.Context, filter dto.TopicFilter) ([]models.Topic, error) {
	m.lastFilter = filter
	return m.listResp, nil
}

func (m *topicServiceMock) GetWithProposals(ctx context.Context, topicID, userID string) (*models.TopicWithProposals, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.getResp, nil
}

func (m *topicServiceMock) Archive(ctx context.Context, claims *models.JWTClaims, topicID string) error {
	return m.archiveErr
}

type resolutionServiceMock struct {
	resolveErr error
	lastReq    dto.ResolveTopicRequest
	reportFile *export.File
	reportErr  error
}

func (m *resolutionServiceMock) Resolve(ctx context.Context, claims *models.JWTClaims, topicID string, req dto.ResolveTopicRequest) error {
	m.lastReq = req
	return m.resolveErr
}

func (m *resolutionServiceMock) Report(ctx context.Context, claims *models.JWTClaims, topicID, format string) (*export.File, error) {
	if m.reportErr != nil {
		return nil, m.reportErr
	}
	return m.reportFile, nil
}

func adminContext(w *httptest.ResponseRecorder) (*gin.Context, *models.JWTClaims) {
	c, _ := gin.CreateTestContext(w)
	claims := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}
	c.Set(middleware.ContextUserKey, claims)
	return c, claims
}

func TestTopicHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &topicServiceMock{listResp: []models.Topic{{ID: "t1", Title: "Finale"}}}
	h := NewTopicHandler(mockSvc, &resolutionServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/topics?status=closed", nil)
	c.Request = req

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "closed", mockSvc.lastFilter.Status)
}

func TestTopicHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &topicServiceMock{created: &models.Topic{ID: "t1", Title: "Finale"}}
	h := NewTopicHandler(mockSvc, &resolutionServiceMock{})

	w := httptest.NewRecorder()
	c, _ := adminContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/topics", bytes.NewBufferString(`{"title":"Finale"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestTopicHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewTopicHandler(&topicServiceMock{}, &resolutionServiceMock{})

	w := httptest.NewRecorder()
	c, _ := adminContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/topics", bytes.NewBufferString(`{"title":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTopicHandlerResolve(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resolutions := &resolutionServiceMock{}
	h := NewTopicHandler(&topicServiceMock{}, resolutions)

	w := httptest.NewRecorder()
	c, _ := adminContext(w)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	req, _ := http.NewRequest(http.MethodPost, "/topics/t1/resolve", bytes.NewBufferString(`{"approvedProposalIds":["p1","p2"]}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Resolve(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"p1", "p2"}, resolutions.lastReq.ApprovedProposalIDs)

	var envelope struct {
		Data struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.Success)
}

func TestTopicHandlerResolveConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resolutions := &resolutionServiceMock{resolveErr: appErrors.ErrTopicNotOpen}
	h := NewTopicHandler(&topicServiceMock{}, resolutions)

	w := httptest.NewRecorder()
	c, _ := adminContext(w)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	req, _ := http.NewRequest(http.MethodPost, "/topics/t1/resolve", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Resolve(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestTopicHandlerReport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resolutions := &resolutionServiceMock{reportFile: &export.File{
		ContentType: "text/csv",
		Extension:   "csv",
		Bytes:       []byte("Proposal,Votes\n"),
	}}
	h := NewTopicHandler(&topicServiceMock{}, resolutions)

	w := httptest.NewRecorder()
	c, _ := adminContext(w)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	req, _ := http.NewRequest(http.MethodGet, "/topics/t1/report?format=csv", nil)
	c.Request = req

	h.Report(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "topic-t1-report.csv")
}

func TestTopicHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &topicServiceMock{getErr: appErrors.ErrNotFound}
	h := NewTopicHandler(mockSvc, &resolutionServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}
	req, _ := http.NewRequest(http.MethodGet, "/topics/ghost", nil)
	c.Request = req

	h.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
