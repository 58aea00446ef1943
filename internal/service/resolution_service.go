package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Alirun/StreamSaga/internal/dto"
	"github.com/Alirun/StreamSaga/internal/models"
	appErrors "github.com/Alirun/StreamSaga/pkg/errors"
	"github.com/Alirun/StreamSaga/pkg/export"
)

type resolutionTopicRepository interface {
	GetByID(ctx context.Context, id string) (*models.Topic, error)
	Resolve(ctx context.Context, topicID string, approvedProposalIDs []string) error
}

type resolutionProposalRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Proposal, error)
	ListActiveByTopic(ctx context.Context, topicID string) ([]models.Proposal, error)
}

type resolutionVoteRepository interface {
	CountActive(ctx context.Context, proposalIDs []string) (map[string]int, error)
}

// ResolutionService closes topics and approves their winning proposals.
type ResolutionService struct {
	topics    resolutionTopicRepository
	proposals resolutionProposalRepository
	votes     resolutionVoteRepository
	logger    *zap.Logger
}

// NewResolutionService constructs a ResolutionService.
func NewResolutionService(
	topics resolutionTopicRepository,
	proposals resolutionProposalRepository,
	votes resolutionVoteRepository,
	logger *zap.Logger,
) *ResolutionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolutionService{topics: topics, proposals: proposals, votes: votes, logger: logger}
}

// Resolve closes an open topic and marks the selected proposals approved,
// atomically. An empty approval list is valid: the topic closes with no
// winners. Every listed proposal must exist, belong to the topic, and not be
// archived.
func (s *ResolutionService) Resolve(ctx context.Context, claims *models.JWTClaims, topicID string, req dto.ResolveTopicRequest) error {
	if !claims.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can resolve topics")
	}

	topic, err := s.topics.GetByID(ctx, topicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch topic")
	}
	if topic.Status != models.TopicStatusOpen {
		return appErrors.Clone(appErrors.ErrTopicNotOpen, "topic is already resolved or archived")
	}

	ids := dedupe(req.ApprovedProposalIDs)
	if len(ids) > 0 {
		proposals, err := s.proposals.FindByIDs(ctx, ids)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch proposals")
		}
		if len(proposals) != len(ids) {
			return appErrors.Clone(appErrors.ErrNotFound, "one or more proposals do not exist")
		}
		for i := range proposals {
			if proposals[i].TopicID != topicID {
				return appErrors.Clone(appErrors.ErrValidation, "proposal does not belong to this topic")
			}
			if proposals[i].Archived() {
				return appErrors.Clone(appErrors.ErrConflict, "archived proposals cannot be approved")
			}
		}
	}

	if err := s.topics.Resolve(ctx, topicID, ids); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Another resolution won the race between the status read and
			// the conditional close.
			return appErrors.Clone(appErrors.ErrTopicNotOpen, "topic is no longer open")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve topic")
	}

	s.logger.Info("topic resolved",
		zap.String("topic_id", topicID),
		zap.Int("approved", len(ids)),
		zap.String("resolved_by", claims.UserID))
	return nil
}

// Report renders the resolution outcome of a topic as CSV or PDF. Admin only.
func (s *ResolutionService) Report(ctx context.Context, claims *models.JWTClaims, topicID, format string) (*export.File, error) {
	if !claims.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can export reports")
	}

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

	ids := make([]string, len(proposals))
	for i := range proposals {
		ids[i] = proposals[i].ID
	}
	counts, err := s.votes.CountActive(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count votes")
	}

	dataset := export.Dataset{
		Title:   fmt.Sprintf("Resolution report: %s", topic.Title),
		Headers: []string{"Proposal", "Votes", "Status", "Submitted"},
	}
	for i := range proposals {
		p := &proposals[i]
		status := "pending"
		if p.Approved() {
			status = "approved"
		}
		dataset.Rows = append(dataset.Rows, []string{
			p.Title,
			strconv.Itoa(counts[p.ID]),
			status,
			p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	var exporter export.Exporter
	switch format {
	case "pdf":
		exporter = export.NewPDFExporter()
	case "csv", "":
		exporter = export.NewCSVExporter()
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}

	file, err := exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return file, nil
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
