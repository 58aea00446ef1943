package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/Alirun/StreamSaga/internal/models"
)

// TopicRepository provides persistence for topics, including the pgvector
// similarity queries used for duplicate detection.
type TopicRepository struct {
	db *sqlx.DB
}

// NewTopicRepository creates the repository.
func NewTopicRepository(db *sqlx.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

// Create inserts a new topic. embedding may be nil when the provider was
// unavailable at creation time; the backfill worker fills it in later.
func (r *TopicRepository) Create(ctx context.Context, topic *models.Topic, embedding *pgvector.Vector) error {
	if topic.ID == "" {
		topic.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = now
	}
	topic.UpdatedAt = now
	if topic.Status == "" {
		topic.Status = models.TopicStatusOpen
	}

	var vec interface{}
	if embedding != nil {
		vec = *embedding
	}
	const query = `INSERT INTO topics (id, title, status, user_id, embedding, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query, topic.ID, topic.Title, topic.Status, topic.UserID, vec, topic.CreatedAt, topic.UpdatedAt); err != nil {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}

// GetByID returns a topic by identifier.
func (r *TopicRepository) GetByID(ctx context.Context, id string) (*models.Topic, error) {
	const query = `SELECT id, title, status, user_id, created_at, updated_at, 0 AS proposal_count FROM topics WHERE id = $1 LIMIT 1`
	var topic models.Topic
	if err := r.db.GetContext(ctx, &topic, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return &topic, nil
}

// FindByIDs returns the topics matching the given identifiers.
func (r *TopicRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Topic, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, title, status, user_id, created_at, updated_at, 0 AS proposal_count FROM topics WHERE id = ANY($1)`
	var topics []models.Topic
	if err := r.db.SelectContext(ctx, &topics, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find topics by ids: %w", err)
	}
	return topics, nil
}

// ListByStatus returns topics in the given status with active proposal
// counts, newest first.
func (r *TopicRepository) ListByStatus(ctx context.Context, status models.TopicStatus) ([]models.Topic, error) {
	const query = `SELECT t.id, t.title, t.status, t.user_id, t.created_at, t.updated_at,
COUNT(p.id) FILTER (WHERE p.archived_at IS NULL) AS proposal_count
FROM topics t
LEFT JOIN proposals p ON p.topic_id = t.id
WHERE t.status = $1
GROUP BY t.id
ORDER BY t.created_at DESC`
	var topics []models.Topic
	if err := r.db.SelectContext(ctx, &topics, query, status); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

// Archive moves a topic to archived from any prior status. Archived is
// terminal, so repeating the update is harmless.
func (r *TopicRepository) Archive(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE topics SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, models.TopicStatusArchived, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("archive topic: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("archive topic rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateEmbedding stores a computed embedding for a topic.
func (r *TopicRepository) UpdateEmbedding(ctx context.Context, id string, embedding pgvector.Vector) error {
	const query = `UPDATE topics SET embedding = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, embedding, time.Now().UTC()); err != nil {
		return fmt.Errorf("update topic embedding: %w", err)
	}
	return nil
}

// Resolve approves the selected proposals and closes the topic in a single
// transaction. The status flip is conditional on the topic still being open,
// which keeps concurrent resolutions of the same topic mutually exclusive.
// Returns sql.ErrNoRows when the topic was not open (or does not exist).
func (r *TopicRepository) Resolve(ctx context.Context, topicID string, approvedProposalIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin resolve tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()

	if len(approvedProposalIDs) > 0 {
		const approve = `UPDATE proposals SET approved_at = $2, updated_at = $2 WHERE id = ANY($1)`
		if _, err := tx.ExecContext(ctx, approve, pq.Array(approvedProposalIDs), now); err != nil {
			return fmt.Errorf("approve proposals: %w", err)
		}
	}

	const closeStmt = `UPDATE topics SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := tx.ExecContext(ctx, closeStmt, topicID, models.TopicStatusClosed, now, models.TopicStatusOpen)
	if err != nil {
		return fmt.Errorf("close topic: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close topic rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit resolve tx: %w", err)
	}
	return nil
}

// MatchTopics runs a cosine similarity search over non-archived topics.
// An empty corpus yields an empty slice, never an error.
func (r *TopicRepository) MatchTopics(ctx context.Context, query pgvector.Vector, threshold float64, limit int) ([]models.TopicMatch, error) {
	const stmt = `SELECT id, title, status, user_id, created_at, updated_at, 0 AS proposal_count,
1 - (embedding <=> $1) AS similarity
FROM topics
WHERE status <> $4 AND embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $2
ORDER BY similarity DESC
LIMIT $3`
	var matches []models.TopicMatch
	if err := r.db.SelectContext(ctx, &matches, stmt, query, threshold, limit, models.TopicStatusArchived); err != nil {
		return nil, fmt.Errorf("match topics: %w", err)
	}
	return matches, nil
}
