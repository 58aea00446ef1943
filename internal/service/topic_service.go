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

type topicRepository interface {
	Create(ctx context.Context, topic *models.Topic, embedding *pgvector.Vector) error
	GetByID(ctx context.Context, id string) (*models.Topic, error)
	ListByStatus(ctx context.Context, status models.TopicStatus) ([]models.Topic, error)
	Archive(ctx context.Context, id string) (bool, error)
}

type topicProposalRepository interface {
	ListActiveByTopic(ctx context.Context, topicID string) ([]models.Proposal, error)
}

type topicVoteRepository interface {
	CountActive(ctx context.Context, proposalIDs []string) (map[string]int, error)
	ActiveProposalIDs(ctx context.Context, userID string, proposalIDs []string) (map[string]struct{}, error)
}

type embeddingEnqueuer interface {
	EnqueueTopic(ctx context.Context, topicID, text string) error
}

// TopicService implements topic lifecycle use cases.
type TopicService struct {
	topics       topicRepository
	proposals    topicProposalRepository
	votes        topicVoteRepository
	embedder     embedding.Client
	backfill     embeddingEnqueuer
	validator    *validator.Validate
	logger       *zap.Logger
	memberCreate bool
}

// NewTopicService constructs a TopicService.
func NewTopicService(
	topics topicRepository,
	proposals topicProposalRepository,
	votes topicVoteRepository,
	embedder embedding.Client,
	backfill embeddingEnqueuer,
	validate *validator.Validate,
	logger *zap.Logger,
	memberCreate bool,
) *TopicService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TopicService{
		topics:       topics,
		proposals:    proposals,
		votes:        votes,
		embedder:     embedder,
		backfill:     backfill,
		validator:    validate,
		logger:       logger,
		memberCreate: memberCreate,
	}
}

// Create opens a new topic. Topic creation must not fail on a provider
// outage, so an embedding error leaves the column NULL and queues a backfill.
func (s *TopicService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateTopicRequest) (*models.Topic, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if !claims.IsAdmin() && !s.memberCreate {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can create topics")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid topic payload")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title must not be blank")
	}

	topic := &models.Topic{
		Title:  title,
		Status: models.TopicStatusOpen,
		UserID: claims.UserID,
	}

	var vec *pgvector.Vector
	embedded, err := s.embedder.Embed(ctx, title)
	if err != nil {
		s.logger.Warn("topic embedding unavailable, deferring to backfill",
			zap.String("title", title), zap.Error(err))
	} else {
		vec = &embedded
	}

	if err := s.topics.Create(ctx, topic, vec); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create topic")
	}

	if vec == nil && s.backfill != nil {
		if err := s.backfill.EnqueueTopic(ctx, topic.ID, title); err != nil {
			s.logger.Error("failed to enqueue topic embedding backfill",
				zap.String("topic_id", topic.ID), zap.Error(err))
		}
	}

	return topic, nil
}

// List returns topics filtered by status, defaulting to open.
func (s *TopicService) List(ctx context.Context, filter dto.TopicFilter) ([]models.Topic, error) {
	status := models.TopicStatusOpen
	if filter.Status != "" {
		status = models.TopicStatus(filter.Status)
		if !models.ValidTopicStatus(status) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown topic status")
		}
	}

	topics, err := s.topics.ListByStatus(ctx, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list topics")
	}
	if topics == nil {
		topics = []models.Topic{}
	}
	return topics, nil
}

// GetWithProposals returns a topic with its active proposals, each annotated
// with vote counts and, when userID is set, whether that user voted.
func (s *TopicService) GetWithProposals(ctx context.Context, topicID, userID string) (*models.TopicWithProposals, error) {
	topic, err := s.topics.GetByID(ctx, topicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch topic")
	}

	proposals, err := s.proposals.ListActiveByTopic(ctx, topicID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list proposals")
	}

	if err := s.annotateVotes(ctx, proposals, userID); err != nil {
		return nil, err
	}

	topic.ProposalCount = len(proposals)
	return &models.TopicWithProposals{Topic: *topic, Proposals: proposals}, nil
}

// Archive moves a topic to the archived status. Admin only. Archived is
// terminal so repeated calls succeed.
func (s *TopicService) Archive(ctx context.Context, claims *models.JWTClaims, topicID string) error {
	if !claims.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can archive topics")
	}

	updated, err := s.topics.Archive(ctx, topicID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive topic")
	}
	if !updated {
		return appErrors.Clone(appErrors.ErrNotFound, "topic not found")
	}
	return nil
}

func (s *TopicService) annotateVotes(ctx context.Context, proposals []models.Proposal, userID string) error {
	if len(proposals) == 0 {
		return nil
	}

	ids := make([]string, len(proposals))
	for i := range proposals {
		ids[i] = proposals[i].ID
	}

	counts, err := s.votes.CountActive(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count votes")
	}

	var voted map[string]struct{}
	if userID != "" {
		voted, err = s.votes.ActiveProposalIDs(ctx, userID, ids)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user votes")
		}
	}

	for i := range proposals {
		proposals[i].VoteCount = counts[proposals[i].ID]
		if voted != nil {
			_, proposals[i].HasVoted = voted[proposals[i].ID]
		}
	}
	return nil
}
