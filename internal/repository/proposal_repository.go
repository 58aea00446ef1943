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

// ProposalRepository provides persistence for proposals.
type ProposalRepository struct {
	db *sqlx.DB
}

// NewProposalRepository creates the repository.
func NewProposalRepository(db *sqlx.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

const proposalColumns = `id, title, description, topic_id, user_id, archived_at, approved_at, created_at, updated_at`

// Create inserts a new proposal with its embedding.
func (r *ProposalRepository) Create(ctx context.Context, proposal *models.Proposal, embedding pgvector.Vector) error {
	if proposal.ID == "" {
		proposal.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = now
	}
	proposal.UpdatedAt = now

	const query = `INSERT INTO proposals (id, title, description, topic_id, user_id, embedding, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		proposal.ID, proposal.Title, proposal.Description, proposal.TopicID, proposal.UserID,
		embedding, proposal.CreatedAt, proposal.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}
	return nil
}

// GetByID returns a proposal by identifier.
func (r *ProposalRepository) GetByID(ctx context.Context, id string) (*models.Proposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM proposals WHERE id = $1 LIMIT 1`, proposalColumns)
	var proposal models.Proposal
	if err := r.db.GetContext(ctx, &proposal, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	return &proposal, nil
}

// FindByIDs returns the proposals matching the given identifiers.
func (r *ProposalRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Proposal, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM proposals WHERE id = ANY($1)`, proposalColumns)
	var proposals []models.Proposal
	if err := r.db.SelectContext(ctx, &proposals, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find proposals by ids: %w", err)
	}
	return proposals, nil
}

// ListActiveByTopic returns non-archived proposals under a topic, oldest first.
func (r *ProposalRepository) ListActiveByTopic(ctx context.Context, topicID string) ([]models.Proposal, error) {
	query := fmt.Sprintf(`SELECT %s FROM proposals WHERE topic_id = $1 AND archived_at IS NULL ORDER BY created_at ASC`, proposalColumns)
	var proposals []models.Proposal
	if err := r.db.SelectContext(ctx, &proposals, query, topicID); err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	return proposals, nil
}

// Archive soft-deletes a proposal scoped by owner. The user_id predicate
// enforces ownership at the data layer: a non-owner's request affects zero
// rows. Already-archived rows are also zero-row updates, so callers must
// check the proposal state first to tell the cases apart.
func (r *ProposalRepository) Archive(ctx context.Context, proposalID, userID string) (bool, error) {
	const query = `UPDATE proposals SET archived_at = $3, updated_at = $3 WHERE id = $1 AND user_id = $2 AND archived_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, proposalID, userID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("archive proposal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("archive proposal rows affected: %w", err)
	}
	return affected > 0, nil
}

// ApproveMany bulk-sets approved_at for the given ids. It takes no position
// on archived_at; archived-proposal policy is enforced by the caller.
func (r *ProposalRepository) ApproveMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE proposals SET approved_at = $2, updated_at = $2 WHERE id = ANY($1)`
	if _, err := r.db.ExecContext(ctx, query, pq.Array(ids), time.Now().UTC()); err != nil {
		return fmt.Errorf("approve proposals: %w", err)
	}
	return nil
}

// UpdateEmbedding stores a computed embedding for a proposal.
func (r *ProposalRepository) UpdateEmbedding(ctx context.Context, id string, embedding pgvector.Vector) error {
	const query = `UPDATE proposals SET embedding = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, embedding, time.Now().UTC()); err != nil {
		return fmt.Errorf("update proposal embedding: %w", err)
	}
	return nil
}

// MatchByTopic runs a cosine similarity search over active proposals of one
// topic. An empty corpus yields an empty slice, never an error.
func (r *ProposalRepository) MatchByTopic(ctx context.Context, query pgvector.Vector, topicID string, threshold float64, limit int) ([]models.ProposalMatch, error) {
	stmt := fmt.Sprintf(`SELECT %s, 1 - (embedding <=> $1) AS similarity
FROM proposals
WHERE topic_id = $2 AND archived_at IS NULL AND embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $3
ORDER BY similarity DESC
LIMIT $4`, proposalColumns)
	var matches []models.ProposalMatch
	if err := r.db.SelectContext(ctx, &matches, stmt, query, topicID, threshold, limit); err != nil {
		return nil, fmt.Errorf("match proposals by topic: %w", err)
	}
	return matches, nil
}

// MatchAll runs a cosine similarity search over all active proposals.
func (r *ProposalRepository) MatchAll(ctx context.Context, query pgvector.Vector, threshold float64, limit int) ([]models.ProposalMatch, error) {
	stmt := fmt.Sprintf(`SELECT %s, 1 - (embedding <=> $1) AS similarity
FROM proposals
WHERE archived_at IS NULL AND embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $2
ORDER BY similarity DESC
LIMIT $3`, proposalColumns)
	var matches []models.ProposalMatch
	if err := r.db.SelectContext(ctx, &matches, stmt, query, threshold, limit); err != nil {
		return nil, fmt.Errorf("match proposals: %w", err)
	}
	return matches, nil
}
