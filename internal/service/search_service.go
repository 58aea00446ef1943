package service

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/Alirun/StreamSaga/internal/embedding"
	"github.com/Alirun/StreamSaga/internal/models"
	appErrors "github.com/Alirun/StreamSaga/pkg/errors"
	"github.com/Alirun/StreamSaga/pkg/ratelimit"
)

// Rate limit keys for the two search surfaces. Each key shares one global
// bucket; search is a convenience feature and degrades to empty results
// when the bucket is exhausted.
const (
	limitKeyGlobalSearch  = "search-global"
	limitKeySimilarSearch = "search-similar"
)

// Surface labels for search metrics.
const (
	surfaceGlobal  = "global"
	surfaceSimilar = "similar"
)

type searchTopicRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Topic, error)
	MatchTopics(ctx context.Context, query pgvector.Vector, threshold float64, limit int) ([]models.TopicMatch, error)
}

type searchProposalRepository interface {
	MatchByTopic(ctx context.Context, query pgvector.Vector, topicID string, threshold float64, limit int) ([]models.ProposalMatch, error)
	MatchAll(ctx context.Context, query pgvector.Vector, threshold float64, limit int) ([]models.ProposalMatch, error)
}

type searchVoteRepository interface {
	CountActive(ctx context.Context, proposalIDs []string) (map[string]int, error)
	ActiveProposalIDs(ctx context.Context, userID string, proposalIDs []string) (map[string]struct{}, error)
}

// SearchConfig tunes similarity matching.
type SearchConfig struct {
	MatchThreshold float64
	MatchCount     int
}

// SearchService implements semantic duplicate detection and global search.
// Both surfaces degrade to empty results on embedding or rate limit
// failures; search never blocks the flows it assists.
type SearchService struct {
	topics    searchTopicRepository
	proposals searchProposalRepository
	votes     searchVoteRepository
	embedder  embedding.Client
	limiter   ratelimit.Limiter
	logger    *zap.Logger
	metrics   *MetricsService
	config    SearchConfig
}

// NewSearchService constructs a SearchService.
func NewSearchService(
	topics searchTopicRepository,
	proposals searchProposalRepository,
	votes searchVoteRepository,
	embedder embedding.Client,
	limiter ratelimit.Limiter,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg SearchConfig,
) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = ratelimit.Disabled{}
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = 0.3
	}
	if cfg.MatchCount <= 0 {
		cfg.MatchCount = 5
	}
	return &SearchService{
		topics:    topics,
		proposals: proposals,
		votes:     votes,
		embedder:  embedder,
		limiter:   limiter,
		logger:    logger,
		metrics:   metrics,
		config:    cfg,
	}
}

// FindSimilarProposals returns proposals under a topic that are semantically
// close to the draft text, annotated with vote counts. userID may be empty.
func (s *SearchService) FindSimilarProposals(ctx context.Context, userID, topicID, title string, description *string) ([]models.Proposal, error) {
	if !s.limiter.Allow(ctx, limitKeySimilarSearch) {
		s.logger.Warn("similar search rate limited", zap.String("topic_id", topicID))
		s.metrics.RecordSearch(surfaceSimilar, true)
		return []models.Proposal{}, nil
	}

	vec, err := s.embedder.Embed(ctx, EmbeddingText(title, description))
	if err != nil {
		s.logger.Warn("similar search embedding failed", zap.Error(err))
		s.metrics.RecordSearch(surfaceSimilar, true)
		return []models.Proposal{}, nil
	}
	s.metrics.RecordSearch(surfaceSimilar, false)

	matches, err := s.proposals.MatchByTopic(ctx, vec, topicID, s.config.MatchThreshold, s.config.MatchCount)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to match proposals")
	}

	proposals := make([]models.Proposal, len(matches))
	for i := range matches {
		proposals[i] = matches[i].Proposal
		proposals[i].Similarity = matches[i].MatchScore
	}

	if err := s.annotateVotes(ctx, proposals, userID); err != nil {
		return nil, err
	}
	return proposals, nil
}

// SearchGlobal embeds the query and matches it against both topics and
// proposals, returning a tree of topics with their matched proposals.
// Proposal hits whose parent topic did not itself match are grouped under a
// synthesized entry for that topic.
func (s *SearchService) SearchGlobal(ctx context.Context, userID, query string) ([]models.TopicWithProposals, error) {
	if !s.limiter.Allow(ctx, limitKeyGlobalSearch) {
		s.logger.Warn("global search rate limited")
		s.metrics.RecordSearch(surfaceGlobal, true)
		return []models.TopicWithProposals{}, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("global search embedding failed", zap.Error(err))
		s.metrics.RecordSearch(surfaceGlobal, true)
		return []models.TopicWithProposals{}, nil
	}
	s.metrics.RecordSearch(surfaceGlobal, false)

	topicMatches, err := s.topics.MatchTopics(ctx, vec, s.config.MatchThreshold, s.config.MatchCount)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to match topics")
	}
	proposalMatches, err := s.proposals.MatchAll(ctx, vec, s.config.MatchThreshold, s.config.MatchCount)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to match proposals")
	}

	tree := make([]models.TopicWithProposals, 0, len(topicMatches))
	index := make(map[string]int, len(topicMatches))
	for _, tm := range topicMatches {
		index[tm.ID] = len(tree)
		tree = append(tree, models.TopicWithProposals{
			Topic:      tm.Topic,
			Similarity: tm.Similarity,
			Proposals:  []models.Proposal{},
		})
	}

	var orphanTopicIDs []string
	for _, pm := range proposalMatches {
		if _, ok := index[pm.TopicID]; !ok {
			index[pm.TopicID] = len(tree)
			tree = append(tree, models.TopicWithProposals{
				Topic:     models.Topic{ID: pm.TopicID},
				Proposals: []models.Proposal{},
			})
			orphanTopicIDs = append(orphanTopicIDs, pm.TopicID)
		}
		proposal := pm.Proposal
		proposal.Similarity = pm.MatchScore
		node := &tree[index[pm.TopicID]]
		node.Proposals = append(node.Proposals, proposal)
	}

	if len(orphanTopicIDs) > 0 {
		parents, err := s.topics.FindByIDs(ctx, orphanTopicIDs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch parent topics")
		}
		for _, parent := range parents {
			if i, ok := index[parent.ID]; ok {
				sim := tree[i].Similarity
				proposals := tree[i].Proposals
				tree[i] = models.TopicWithProposals{Topic: parent, Similarity: sim, Proposals: proposals}
			}
		}
	}

	var all []models.Proposal
	for i := range tree {
		all = append(all, tree[i].Proposals...)
	}
	if err := s.annotateVotes(ctx, all, userID); err != nil {
		return nil, err
	}
	offset := 0
	for i := range tree {
		n := len(tree[i].Proposals)
		copy(tree[i].Proposals, all[offset:offset+n])
		offset += n
	}

	return tree, nil
}

func (s *SearchService) annotateVotes(ctx context.Context, proposals []models.Proposal, userID string) error {
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
