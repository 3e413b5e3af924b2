package dto

import "github.com/noah-isme/backtrackers-api/internal/models"

// CreateVerificationRequest opens an ownership challenge on an item.
type CreateVerificationRequest struct {
	ItemID   string          `json:"item_id" validate:"required"`
	ItemType models.ItemKind `json:"item_type" validate:"required,oneof=lost found"`
	Proof    string          `json:"proof" validate:"max=2048"`
	Question string          `json:"question" validate:"required,max=500"`
	Answer   string          `json:"answer" validate:"required,max=500"`
}

// DecideVerificationRequest carries an optional note for approve or reject.
type DecideVerificationRequest struct {
	Note string `json:"note" validate:"max=1000"`
}

// PostMessageRequest adds a message to a challenge conversation.
type PostMessageRequest struct {
	Body string `json:"body" validate:"required,max=2000"`
}
