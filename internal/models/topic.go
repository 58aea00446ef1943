package models

import "time"

// TopicStatus enumerates the topic lifecycle states. Transitions are
// monotonic: open -> closed -> archived, with archived reachable directly
// from open. Reopening a closed topic is not supported.
type TopicStatus string

const (
	TopicStatusOpen     TopicStatus = "open"
	TopicStatusClosed   TopicStatus = "closed"
	TopicStatusArchived TopicStatus = "archived"
)

// ValidTopicStatus reports whether s is a known status value.
func ValidTopicStatus(s TopicStatus) bool {
	switch s {
	case TopicStatusOpen, TopicStatusClosed, TopicStatusArchived:
		return true
	default:
		return false
	}
}

// Topic is a season/episode-scoped container that proposals are submitted
// under. The embedding column is write-only from the application's point of
// view: reads never select it, similarity queries compare against it in SQL.
type Topic struct {
	ID        string      `db:"id" json:"id"`
	Title     string      `db:"title" json:"title"`
	Status    TopicStatus `db:"status" json:"status"`
	UserID    string      `db:"user_id" json:"user_id"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`

	ProposalCount int `db:"proposal_count" json:"proposal_count"`
}

// TopicMatch is a topic row augmented with a cosine similarity score.
type TopicMatch struct {
	Topic
	Similarity float64 `db:"similarity" json:"similarity"`
}

// TopicWithProposals bundles a topic with its (active) proposals for
// detail views and search trees.
type TopicWithProposals struct {
	Topic
	Similarity float64    `json:"similarity,omitempty"`
	Proposals  []Proposal `json:"proposals"`
}
