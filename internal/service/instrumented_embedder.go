package service

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/Alirun/StreamSaga/internal/embedding"
)

// instrumentedEmbedder wraps an embedding client and records call latency
// and failures on the metrics service.
type instrumentedEmbedder struct {
	inner   embedding.Client
	metrics *MetricsService
}

// NewInstrumentedEmbedder decorates client with Prometheus instrumentation.
func NewInstrumentedEmbedder(client embedding.Client, metrics *MetricsService) embedding.Client {
	return &instrumentedEmbedder{inner: client, metrics: metrics}
}

func (e *instrumentedEmbedder) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	start := time.Now()
	vec, err := e.inner.Embed(ctx, text)
	e.metrics.ObserveEmbedding(time.Since(start), err)
	return vec, err
}

func (e *instrumentedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}
