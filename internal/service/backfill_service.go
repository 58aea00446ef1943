package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/Alirun/StreamSaga/internal/embedding"
	"github.com/Alirun/StreamSaga/pkg/jobs"
)

// Job types handled by the embedding backfill queue.
const (
	jobTypeTopicEmbedding    = "topic-embedding"
	jobTypeProposalEmbedding = "proposal-embedding"
)

// BackfillPayload identifies the row whose embedding is missing.
type BackfillPayload struct {
	EntityID string
	Text     string
}

type embeddingWriter interface {
	UpdateEmbedding(ctx context.Context, id string, embedding pgvector.Vector) error
}

// BackfillService re-computes embeddings that failed at write time. Topic
// creation tolerates a provider outage by persisting a NULL embedding; the
// queue retries until the vector is in place and the topic becomes visible
// to similarity search again.
type BackfillService struct {
	queue     *jobs.Queue
	topics    embeddingWriter
	proposals embeddingWriter
	embedder  embedding.Client
	logger    *zap.Logger
}

// BackfillConfig tunes the backfill worker pool.
type BackfillConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NewBackfillService constructs the service and its queue. Call Start before
// enqueueing.
func NewBackfillService(topics, proposals embeddingWriter, embedder embedding.Client, cfg BackfillConfig, logger *zap.Logger) *BackfillService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BackfillService{
		topics:    topics,
		proposals: proposals,
		embedder:  embedder,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("embeddings", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool.
func (s *BackfillService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *BackfillService) Stop() {
	s.queue.Stop()
}

// EnqueueTopic schedules a topic embedding recomputation.
func (s *BackfillService) EnqueueTopic(_ context.Context, topicID, text string) error {
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobTypeTopicEmbedding,
		Payload: BackfillPayload{EntityID: topicID, Text: text},
	})
}

// EnqueueProposal schedules a proposal embedding recomputation.
func (s *BackfillService) EnqueueProposal(_ context.Context, proposalID, text string) error {
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobTypeProposalEmbedding,
		Payload: BackfillPayload{EntityID: proposalID, Text: text},
	})
}

func (s *BackfillService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(BackfillPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	vec, err := s.embedder.Embed(ctx, payload.Text)
	if err != nil {
		return fmt.Errorf("embed %s %s: %w", job.Type, payload.EntityID, err)
	}

	var writer embeddingWriter
	switch job.Type {
	case jobTypeTopicEmbedding:
		writer = s.topics
	case jobTypeProposalEmbedding:
		writer = s.proposals
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}

	if err := writer.UpdateEmbedding(ctx, payload.EntityID, vec); err != nil {
		return fmt.Errorf("store embedding for %s: %w", payload.EntityID, err)
	}

	s.logger.Info("embedding backfilled",
		zap.String("type", job.Type),
		zap.String("entity_id", payload.EntityID))
	return nil
}
