package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/Alirun/StreamSaga/internal/models"
	appErrors "github.com/Alirun/StreamSaga/pkg/errors"
)

type voteRepository interface {
	Find(ctx context.Context, proposalID, userID string) (*models.Vote, error)
	Insert(ctx context.Context, proposalID, userID string) error
	Restore(ctx context.Context, id string) error
	ArchiveActive(ctx context.Context, proposalID, userID string) error
	CountActive(ctx context.Context, proposalIDs []string) (map[string]int, error)
}

type voteProposalRepository interface {
	GetByID(ctx context.Context, id string) (*models.Proposal, error)
}

// VoteService implements the one-vote-per-user ledger. A (proposal, user)
// pair has at most one row for its whole history; cast and retract toggle
// that row's archived flag instead of inserting and deleting.
type VoteService struct {
	votes     voteRepository
	proposals voteProposalRepository
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewVoteService constructs a VoteService.
func NewVoteService(votes voteRepository, proposals voteProposalRepository, logger *zap.Logger, metrics *MetricsService) *VoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoteService{votes: votes, proposals: proposals, logger: logger, metrics: metrics}
}

// Cast records the caller's vote on a proposal. Idempotent: voting twice
// leaves a single active vote.
func (s *VoteService) Cast(ctx context.Context, claims *models.JWTClaims, proposalID string) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}

	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch proposal")
	}
	if proposal.Archived() {
		return appErrors.Clone(appErrors.ErrConflict, "cannot vote on an archived proposal")
	}

	existing, err := s.votes.Find(ctx, proposalID, claims.UserID)
	switch {
	case err == nil:
		if existing.Active() {
			return nil
		}
		if err := s.votes.Restore(ctx, existing.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore vote")
		}
		s.metrics.RecordVote("cast")
		return nil
	case errors.Is(err, sql.ErrNoRows):
		if err := s.votes.Insert(ctx, proposalID, claims.UserID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record vote")
		}
		s.metrics.RecordVote("cast")
		return nil
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up vote")
	}
}

// Retract archives the caller's active vote on a proposal. Idempotent:
// retracting with no active vote succeeds without effect.
func (s *VoteService) Retract(ctx context.Context, claims *models.JWTClaims, proposalID string) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if err := s.votes.ArchiveActive(ctx, proposalID, claims.UserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retract vote")
	}
	s.metrics.RecordVote("retract")
	return nil
}

// Counts returns active vote counts per proposal id.
func (s *VoteService) Counts(ctx context.Context, proposalIDs []string) (map[string]int, error) {
	counts, err := s.votes.CountActive(ctx, proposalIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count votes")
	}
	return counts, nil
}
