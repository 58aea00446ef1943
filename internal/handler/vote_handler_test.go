package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alirun/StreamSaga/internal/middleware"
	"github.com/Alirun/StreamSaga/internal/models"
	appErrors "github.com/Alirun/StreamSaga/pkg/errors"
)

type voteServiceMock struct {
	castErr    error
	retractErr error
	castIDs    []string
	retractIDs []string
}

func (m *voteServiceMock) Cast(ctx context.Context, claims *models.JWTClaims, proposalID string) error {
	m.castIDs = append(m.castIDs, proposalID)
	return m.castErr
}

func (m *voteServiceMock) Retract(ctx context.Context, claims *models.JWTClaims, proposalID string) error {
	m.retractIDs = append(m.retractIDs, proposalID)
	return m.retractErr
}

func TestVoteHandlerCast(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &voteServiceMock{}
	h := NewVoteHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "p1"}}
	req, _ := http.NewRequest(http.MethodPost, "/proposals/p1/vote", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleMember})

	h.Cast(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"p1"}, mockSvc.castIDs)
}

func TestVoteHandlerCastNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &voteServiceMock{castErr: appErrors.ErrNotFound}
	h := NewVoteHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}
	req, _ := http.NewRequest(http.MethodPost, "/proposals/ghost/vote", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleMember})

	h.Cast(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestVoteHandlerRetract(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &voteServiceMock{}
	h := NewVoteHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "p1"}}
	req, _ := http.NewRequest(http.MethodDelete, "/proposals/p1/vote", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleMember})

	h.Retract(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"p1"}, mockSvc.retractIDs)
}
