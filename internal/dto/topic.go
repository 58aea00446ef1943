package dto

// CreateTopicRequest defines the payload for creating a topic.
type CreateTopicRequest struct {
	Title string `json:"title" validate:"required"`
}

// ResolveTopicRequest lists the proposals an admin approves while closing
// the topic. An empty list is valid: the topic closes with no approvals.
type ResolveTopicRequest struct {
	ApprovedProposalIDs []string `json:"approvedProposalIds"`
}

// TopicFilter filters topic list queries.
type TopicFilter struct {
	Status string
}
