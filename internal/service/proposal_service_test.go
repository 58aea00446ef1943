package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alirun/StreamSaga/internal/dto"
	"github.com/Alirun/StreamSaga/internal/models"
	appErrors "github.com/Alirun/StreamSaga/pkg/errors"
)

type embedderStub struct {
	err   error
	texts []string
}

func (s *embedderStub) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	s.texts = append(s.texts, text)
	if s.err != nil {
		return pgvector.Vector{}, s.err
	}
	return pgvector.NewVector([]float32{0.1, 0.2}), nil
}

func (s *embedderStub) Dimensions() int { return 2 }

type proposalRepoStub struct {
	created     *models.Proposal
	getProposal *models.Proposal
	getErr      error
	archiveOK   bool
	archiveErr  error
}

func (s *proposalRepoStub) Create(ctx context.Context, proposal *models.Proposal, embedding pgvector.Vector) error {
	s.created = proposal
	return nil
}

func (s *proposalRepoStub) GetByID(ctx context.Context, id string) (*models.Proposal, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.getProposal, nil
}

func (s *proposalRepoStub) Archive(ctx context.Context, proposalID, userID string) (bool, error) {
	return s.archiveOK, s.archiveErr
}

type topicGetterStub struct {
	topic *models.Topic
	err   error
}

func (s topicGetterStub) GetByID(ctx context.Context, id string) (*models.Topic, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.topic, nil
}

func TestProposalCreateEmbedsTitleAndDescription(t *testing.T) {
	embedder := &embedderStub{}
	repo := &proposalRepoStub{}
	topics := topicGetterStub{topic: &models.Topic{ID: "t1", Status: models.TopicStatusOpen}}
	svc := NewProposalService(repo, topics, embedder, nil, nil)

	desc := "full pitch"
	proposal, err := svc.Create(context.Background(), memberClaims("u1"), dto.CreateProposalRequest{
		Title:       "Bring back the bard",
		Description: &desc,
		TopicID:     "t1",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", proposal.UserID)
	require.Len(t, embedder.texts, 1)
	assert.Equal(t, "Bring back the bard full pitch", embedder.texts[0])
}

func TestProposalCreateClosedTopicRejected(t *testing.T) {
	topics := topicGetterStub{topic: &models.Topic{ID: "t1", Status: models.TopicStatusClosed}}
	svc := NewProposalService(&proposalRepoStub{}, topics, &embedderStub{}, nil, nil)

	_, err := svc.Create(context.Background(), memberClaims("u1"), dto.CreateProposalRequest{Title: "x y z", TopicID: "t1"})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrTopicNotOpen.Code, appErr.Code)
}

func TestProposalCreateEmbeddingFailureFails(t *testing.T) {
	embedder := &embedderStub{err: fmt.Errorf("provider down")}
	repo := &proposalRepoStub{}
	topics := topicGetterStub{topic: &models.Topic{ID: "t1", Status: models.TopicStatusOpen}}
	svc := NewProposalService(repo, topics, embedder, nil, nil)

	_, err := svc.Create(context.Background(), memberClaims("u1"), dto.CreateProposalRequest{Title: "no vector no row", TopicID: "t1"})
	require.Error(t, err)
	assert.Nil(t, repo.created)
}

func TestProposalCreateUnknownTopic(t *testing.T) {
	topics := topicGetterStub{err: sql.ErrNoRows}
	svc := NewProposalService(&proposalRepoStub{}, topics, &embedderStub{}, nil, nil)

	_, err := svc.Create(context.Background(), memberClaims("u1"), dto.CreateProposalRequest{Title: "orphan", TopicID: "missing"})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestProposalArchiveApprovedRejected(t *testing.T) {
	approvedAt := time.Now()
	repo := &proposalRepoStub{getProposal: &models.Proposal{ID: "p1", UserID: "u1", ApprovedAt: &approvedAt}}
	svc := NewProposalService(repo, topicGetterStub{}, &embedderStub{}, nil, nil)

	err := svc.Archive(context.Background(), memberClaims("u1"), "p1")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrProposalApproved.Code, appErr.Code)
}

func TestProposalArchiveAlreadyArchivedNoop(t *testing.T) {
	archivedAt := time.Now()
	repo := &proposalRepoStub{getProposal: &models.Proposal{ID: "p1", UserID: "u1", ArchivedAt: &archivedAt}}
	svc := NewProposalService(repo, topicGetterStub{}, &embedderStub{}, nil, nil)

	err := svc.Archive(context.Background(), memberClaims("u1"), "p1")
	require.NoError(t, err)
}

func TestProposalArchiveNonOwnerForbidden(t *testing.T) {
	repo := &proposalRepoStub{getProposal: &models.Proposal{ID: "p1", UserID: "owner"}}
	svc := NewProposalService(repo, topicGetterStub{}, &embedderStub{}, nil, nil)

	err := svc.Archive(context.Background(), memberClaims("intruder"), "p1")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestProposalArchiveOwner(t *testing.T) {
	repo := &proposalRepoStub{getProposal: &models.Proposal{ID: "p1", UserID: "u1"}, archiveOK: true}
	svc := NewProposalService(repo, topicGetterStub{}, &embedderStub{}, nil, nil)

	require.NoError(t, svc.Archive(context.Background(), memberClaims("u1"), "p1"))
}

func TestEmbeddingTextWithoutDescription(t *testing.T) {
	assert.Equal(t, "title only", EmbeddingText("title only", nil))
	empty := "   "
	assert.Equal(t, "title only", EmbeddingText("title only", &empty))
}
