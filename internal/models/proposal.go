package models

import "time"

// Proposal is a user-submitted idea attached to exactly one topic.
//
// Invariants:
//   - approved_at set means the proposal is terminal and immutable; archival
//     of an approved proposal is always rejected.
//   - topic_id is immutable after creation and proposals outlive topic
//     status changes.
//   - rows are soft-archived, never deleted.
type Proposal struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	TopicID     string     `db:"topic_id" json:"topic_id"`
	UserID      string     `db:"user_id" json:"user_id"`
	ArchivedAt  *time.Time `db:"archived_at" json:"archived_at,omitempty"`
	ApprovedAt  *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`

	VoteCount  int     `db:"-" json:"vote_count"`
	HasVoted   bool    `db:"-" json:"has_voted"`
	Similarity float64 `db:"-" json:"similarity,omitempty"`
}

// Approved reports whether the proposal reached its terminal approved state.
func (p *Proposal) Approved() bool {
	return p != nil && p.ApprovedAt != nil
}

// Archived reports whether the proposal is soft-archived.
func (p *Proposal) Archived() bool {
	return p != nil && p.ArchivedAt != nil
}

// ProposalMatch is a proposal row augmented with a cosine similarity score.
type ProposalMatch struct {
	Proposal
	MatchScore float64 `db:"similarity" json:"similarity"`
}
