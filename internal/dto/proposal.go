package dto

// CreateProposalRequest defines the payload for submitting a proposal.
type CreateProposalRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description *string `json:"description"`
	TopicID     string  `json:"topicId" validate:"required"`
}
