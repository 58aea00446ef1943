package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alirun/StreamSaga/internal/models"
	appErrors "github.com/Alirun/StreamSaga/pkg/errors"
)

type voteRepoStub struct {
	vote        *models.Vote
	findErr     error
	insertCalls int
	restoreIDs  []string
	archived    []string
	counts      map[string]int
	countsErr   error
}

func (s *voteRepoStub) Find(ctx context.Context, proposalID, userID string) (*models.Vote, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.vote, nil
}

func (s *voteRepoStub) Insert(ctx context.Context, proposalID, userID string) error {
	s.insertCalls++
	return nil
}

func (s *voteRepoStub) Restore(ctx context.Context, id string) error {
	s.restoreIDs = append(s.restoreIDs, id)
	return nil
}

func (s *voteRepoStub) ArchiveActive(ctx context.Context, proposalID, userID string) error {
	s.archived = append(s.archived, proposalID)
	return nil
}

func (s *voteRepoStub) CountActive(ctx context.Context, proposalIDs []string) (map[string]int, error) {
	return s.counts, s.countsErr
}

type proposalGetterStub struct {
	proposal *models.Proposal
	err      error
}

func (s proposalGetterStub) GetByID(ctx context.Context, id string) (*models.Proposal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.proposal, nil
}

func memberClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleMember}
}

func adminClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleAdmin}
}

func TestCastInsertsFirstVote(t *testing.T) {
	votes := &voteRepoStub{findErr: sql.ErrNoRows}
	proposals := proposalGetterStub{proposal: &models.Proposal{ID: "p1"}}
	svc := NewVoteService(votes, proposals, nil, nil)

	err := svc.Cast(context.Background(), memberClaims("u1"), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, votes.insertCalls)
	assert.Empty(t, votes.restoreIDs)
}

func TestCastActiveVoteIsNoop(t *testing.T) {
	votes := &voteRepoStub{vote: &models.Vote{ID: "v1"}}
	proposals := proposalGetterStub{proposal: &models.Proposal{ID: "p1"}}
	svc := NewVoteService(votes, proposals, nil, nil)

	err := svc.Cast(context.Background(), memberClaims("u1"), "p1")
	require.NoError(t, err)
	assert.Zero(t, votes.insertCalls)
	assert.Empty(t, votes.restoreIDs)
}

func TestCastRestoresArchivedVote(t *testing.T) {
	archivedAt := time.Now()
	votes := &voteRepoStub{vote: &models.Vote{ID: "v1", ArchivedAt: &archivedAt}}
	proposals := proposalGetterStub{proposal: &models.Proposal{ID: "p1"}}
	svc := NewVoteService(votes, proposals, nil, nil)

	err := svc.Cast(context.Background(), memberClaims("u1"), "p1")
	require.NoError(t, err)
	assert.Zero(t, votes.insertCalls)
	assert.Equal(t, []string{"v1"}, votes.restoreIDs)
}

func TestCastArchivedProposalRejected(t *testing.T) {
	archivedAt := time.Now()
	votes := &voteRepoStub{}
	proposals := proposalGetterStub{proposal: &models.Proposal{ID: "p1", ArchivedAt: &archivedAt}}
	svc := NewVoteService(votes, proposals, nil, nil)

	err := svc.Cast(context.Background(), memberClaims("u1"), "p1")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCastUnknownProposal(t *testing.T) {
	votes := &voteRepoStub{}
	proposals := proposalGetterStub{err: sql.ErrNoRows}
	svc := NewVoteService(votes, proposals, nil, nil)

	err := svc.Cast(context.Background(), memberClaims("u1"), "missing")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestRetractIsIdempotent(t *testing.T) {
	votes := &voteRepoStub{}
	svc := NewVoteService(votes, proposalGetterStub{}, nil, nil)

	require.NoError(t, svc.Retract(context.Background(), memberClaims("u1"), "p1"))
	require.NoError(t, svc.Retract(context.Background(), memberClaims("u1"), "p1"))
	assert.Equal(t, []string{"p1", "p1"}, votes.archived)
}

func TestCastRequiresAuth(t *testing.T) {
	svc := NewVoteService(&voteRepoStub{}, proposalGetterStub{}, nil, nil)

	err := svc.Cast(context.Background(), nil, "p1")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}
