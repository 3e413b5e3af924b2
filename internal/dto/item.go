package dto

import (
	"time"

	"github.com/noah-isme/backtrackers-api/internal/models"
)

// CreateItemRequest carries the form fields of a new lost or found report.
type CreateItemRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=4000"`
	Location    string          `json:"location" validate:"max=200"`
	OccurredAt  *time.Time      `json:"occurred_at"`
	ContactInfo string          `json:"contact_info" validate:"max=200"`
	Metadata    models.Metadata `json:"metadata"`
}

// UpdateItemRequest carries patch fields; nil fields are left unchanged.
type UpdateItemRequest struct {
	Title       *string         `json:"title" validate:"omitempty,max=200"`
	Description *string         `json:"description" validate:"omitempty,max=4000"`
	Location    *string         `json:"location" validate:"omitempty,max=200"`
	OccurredAt  *time.Time      `json:"occurred_at"`
	ContactInfo *string         `json:"contact_info" validate:"omitempty,max=200"`
	Metadata    models.Metadata `json:"metadata"`
	// ExistingImages lists the currently attached URLs to keep, in the desired order.
	ExistingImages []string `json:"existing_images"`
}

// Patch converts the request into a repository patch.
func (r UpdateItemRequest) Patch() models.ItemPatch {
	return models.ItemPatch{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		OccurredAt:  r.OccurredAt,
		ContactInfo: r.ContactInfo,
		Metadata:    r.Metadata,
	}
}

// TransitionRequest moves an item one step along its status chain.
type TransitionRequest struct {
	Status models.ItemStatus `json:"status" validate:"required"`
}

// ItemPage is one page of a listing.
type ItemPage struct {
	Items      []models.Item     `json:"items"`
	Pagination models.Pagination `json:"pagination"`
}

// SearchResult groups keyword matches per collection.
type SearchResult struct {
	Lost  []models.Item `json:"lost"`
	Found []models.Item `json:"found"`
}
