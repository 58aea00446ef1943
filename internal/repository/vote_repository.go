package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Alirun/StreamSaga/internal/models"
)

// VoteRepository provides persistence for the vote ledger. Rows are never
// deleted: un-voting archives the row, re-voting restores it.
type VoteRepository struct {
	db *sqlx.DB
}

// NewVoteRepository creates the repository.
func NewVoteRepository(db *sqlx.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// Find returns the single vote row for a (proposal, user) pair, archived or
// not. sql.ErrNoRows when the pair has never voted.
func (r *VoteRepository) Find(ctx context.Context, proposalID, userID string) (*models.Vote, error) {
	const query = `SELECT id, proposal_id, user_id, archived_at, created_at, updated_at FROM votes WHERE proposal_id = $1 AND user_id = $2 LIMIT 1`
	var vote models.Vote
	if err := r.db.GetContext(ctx, &vote, query, proposalID, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find vote: %w", err)
	}
	return &vote, nil
}

// Insert creates a new active vote row.
func (r *VoteRepository) Insert(ctx context.Context, proposalID, userID string) error {
	now := time.Now().UTC()
	const query = `INSERT INTO votes (id, proposal_id, user_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), proposalID, userID, now); err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// Restore clears archived_at on a previously archived vote.
func (r *VoteRepository) Restore(ctx context.Context, id string) error {
	const query = `UPDATE votes SET archived_at = NULL, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("restore vote: %w", err)
	}
	return nil
}

// ArchiveActive sets archived_at on the active vote for the pair, if any.
// Zero rows affected means there was nothing to retract; that is not an
// error, retraction is idempotent.
func (r *VoteRepository) ArchiveActive(ctx context.Context, proposalID, userID string) error {
	const query = `UPDATE votes SET archived_at = $3, updated_at = $3 WHERE proposal_id = $1 AND user_id = $2 AND archived_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, proposalID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("archive vote: %w", err)
	}
	return nil
}

// CountActive returns the number of active votes per proposal. Every
// requested id is present in the result, defaulting to zero.
func (r *VoteRepository) CountActive(ctx context.Context, proposalIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(proposalIDs))
	for _, id := range proposalIDs {
		counts[id] = 0
	}
	if len(proposalIDs) == 0 {
		return counts, nil
	}

	const query = `SELECT proposal_id, COUNT(*) AS votes FROM votes WHERE proposal_id = ANY($1) AND archived_at IS NULL GROUP BY proposal_id`
	rows, err := r.db.QueryxContext(ctx, query, pq.Array(proposalIDs))
	if err != nil {
		return nil, fmt.Errorf("count votes: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var proposalID string
		var votes int
		if err := rows.Scan(&proposalID, &votes); err != nil {
			return nil, fmt.Errorf("scan vote count: %w", err)
		}
		counts[proposalID] = votes
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vote counts: %w", err)
	}
	return counts, nil
}

// ActiveProposalIDs returns the subset of proposalIDs the user holds an
// active vote on.
func (r *VoteRepository) ActiveProposalIDs(ctx context.Context, userID string, proposalIDs []string) (map[string]struct{}, error) {
	voted := make(map[string]struct{})
	if userID == "" || len(proposalIDs) == 0 {
		return voted, nil
	}

	const query = `SELECT proposal_id FROM votes WHERE user_id = $1 AND proposal_id = ANY($2) AND archived_at IS NULL`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID, pq.Array(proposalIDs)); err != nil {
		return nil, fmt.Errorf("list user votes: %w", err)
	}
	for _, id := range ids {
		voted[id] = struct{}{}
	}
	return voted, nil
}
