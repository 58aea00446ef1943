package models

import "time"

// Vote is a user's endorsement of a proposal. At most one row exists per
// (proposal_id, user_id) pair; un-voting archives the row and re-voting
// restores it, so history is never lost.
type Vote struct {
	ID         string     `db:"id" json:"id"`
	ProposalID string     `db:"proposal_id" json:"proposal_id"`
	UserID     string     `db:"user_id" json:"user_id"`
	ArchivedAt *time.Time `db:"archived_at" json:"archived_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Active reports whether the vote currently counts.
func (v *Vote) Active() bool {
	return v != nil && v.ArchivedAt == nil
}
