package models

import "time"

// VerificationStatus is the state of an ownership challenge.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// Terminal reports whether no further decision can be made.
func (s VerificationStatus) Terminal() bool {
	return s == VerificationApproved || s == VerificationRejected
}

// Verification is an ownership challenge attached to exactly one item.
type Verification struct {
	ID         string             `db:"id" json:"id"`
	ItemID     string             `db:"item_id" json:"item_id"`
	ItemType   ItemKind           `db:"item_type" json:"item_type"`
	Proof      string             `db:"proof" json:"proof"`
	Question   string             `db:"question" json:"question"`
	Answer     string             `db:"answer" json:"answer,omitempty"`
	ClaimantID string             `db:"claimant_id" json:"claimant_id"`
	VerifiedBy *string            `db:"verified_by" json:"verified_by,omitempty"`
	Note       *string            `db:"note" json:"note,omitempty"`
	Status     VerificationStatus `db:"status" json:"status"`
	DecidedAt  *time.Time         `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `db:"updated_at" json:"updated_at"`
}

// Redacted returns a copy without the expected answer.
func (v Verification) Redacted() Verification {
	v.Answer = ""
	return v
}

// VerificationDecision records who decided a challenge and why.
type VerificationDecision struct {
	ID         string
	To         VerificationStatus
	VerifiedBy string
	Note       *string
}

// MessageRole is the part a participant plays in a challenge conversation.
type MessageRole string

const (
	MessageRoleClaimant MessageRole = "claimant"
	MessageRoleOwner    MessageRole = "owner"
	MessageRoleAdmin    MessageRole = "admin"
)

// VerificationMessage is one entry in the conversation between the claimant and the item owner.
type VerificationMessage struct {
	ID             string      `db:"id" json:"id"`
	VerificationID string      `db:"verification_id" json:"verification_id"`
	SenderID       string      `db:"sender_id" json:"sender_id"`
	SenderRole     MessageRole `db:"sender_role" json:"sender_role"`
	Body           string      `db:"body" json:"body"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}
