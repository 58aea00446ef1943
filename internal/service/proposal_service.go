package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/Alirun/StreamSaga/internal/dto"
	"github.com/Alirun/StreamSaga/internal/embedding"
	"github.com/Alirun/StreamSaga/internal/models"
	appErrors "github.com/Alirun/StreamSaga/pkg/errors"
)

type proposalRepository interface {
	Create(ctx context.Context, proposal *models.Proposal, embedding pgvector.Vector) error
	GetByID(ctx context.Context, id string) (*models.Proposal, error)
	Archive(ctx context.Context, proposalID, userID string) (bool, error)
}

type proposalTopicRepository interface {
	GetByID(ctx context.Context, id string) (*models.Topic, error)
}

// ProposalService implements proposal lifecycle use cases.
type ProposalService struct {
	proposals proposalRepository
	topics    proposalTopicRepository
	embedder  embedding.Client
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProposalService constructs a ProposalService.
func NewProposalService(
	proposals proposalRepository,
	topics proposalTopicRepository,
	embedder embedding.Client,
	validate *validator.Validate,
	logger *zap.Logger,
) *ProposalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProposalService{
		proposals: proposals,
		topics:    topics,
		embedder:  embedder,
		validator: validate,
		logger:    logger,
	}
}

// EmbeddingText builds the text a proposal is embedded from.
func EmbeddingText(title string, description *string) string {
	if description == nil || strings.TrimSpace(*description) == "" {
		return title
	}
	return title + " " + *description
}

// Create submits a proposal under an open topic. Unlike topics, proposals
// without an embedding would be invisible to duplicate detection, so an
// embedding failure fails the whole creation.
func (s *ProposalService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateProposalRequest) (*models.Proposal, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid proposal payload")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title must not be blank")
	}

	topic, err := s.topics.GetByID(ctx, req.TopicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch topic")
	}
	if topic.Status != models.TopicStatusOpen {
		return nil, appErrors.Clone(appErrors.ErrTopicNotOpen, "proposals can only be submitted to open topics")
	}

	vec, err := s.embedder.Embed(ctx, EmbeddingText(title, req.Description))
	if err != nil {
		s.logger.Error("proposal embedding failed", zap.String("topic_id", req.TopicID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute proposal embedding")
	}

	proposal := &models.Proposal{
		Title:       title,
		Description: req.Description,
		TopicID:     topic.ID,
		UserID:      claims.UserID,
	}
	if err := s.proposals.Create(ctx, proposal, vec); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create proposal")
	}

	return proposal, nil
}

// Archive soft-deletes a proposal owned by the caller. Approved proposals
// are immutable and archiving one is rejected. Archiving an already archived
// proposal is a no-op success.
func (s *ProposalService) Archive(ctx context.Context, claims *models.JWTClaims, proposalID string) error {
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

	if proposal.UserID != claims.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the author can archive a proposal")
	}
	if proposal.Approved() {
		return appErrors.Clone(appErrors.ErrProposalApproved, "")
	}
	if proposal.Archived() {
		return nil
	}

	archived, err := s.proposals.Archive(ctx, proposalID, claims.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive proposal")
	}
	if !archived {
		// Lost a race: the row changed between the read and the update.
		return appErrors.Clone(appErrors.ErrConflict, "proposal state changed, retry")
	}
	return nil
}
