package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingWriterStub struct {
	mu  sync.Mutex
	ids []string
}

func (s *embeddingWriterStub) UpdateEmbedding(ctx context.Context, id string, embedding pgvector.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, id)
	return nil
}

func (s *embeddingWriterStub) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

func TestBackfillWritesTopicEmbedding(t *testing.T) {
	topics := &embeddingWriterStub{}
	proposals := &embeddingWriterStub{}
	svc := NewBackfillService(topics, proposals, &embedderStub{}, BackfillConfig{Workers: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	require.NoError(t, svc.EnqueueTopic(ctx, "t1", "Season 3 finale"))

	assert.Eventually(t, func() bool {
		ids := topics.snapshot()
		return len(ids) == 1 && ids[0] == "t1"
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, proposals.snapshot())
}

func TestBackfillRoutesProposalJobs(t *testing.T) {
	topics := &embeddingWriterStub{}
	proposals := &embeddingWriterStub{}
	svc := NewBackfillService(topics, proposals, &embedderStub{}, BackfillConfig{Workers: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	require.NoError(t, svc.EnqueueProposal(ctx, "p1", "Bring back the bard"))

	assert.Eventually(t, func() bool {
		ids := proposals.snapshot()
		return len(ids) == 1 && ids[0] == "p1"
	}, time.Second, 10*time.Millisecond)
}

func TestBackfillEnqueueBeforeStartFails(t *testing.T) {
	svc := NewBackfillService(&embeddingWriterStub{}, &embeddingWriterStub{}, &embedderStub{}, BackfillConfig{}, nil)

	err := svc.EnqueueTopic(context.Background(), "t1", "too early")
	require.Error(t, err)
}
