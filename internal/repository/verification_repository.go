package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/backtrackers-api/internal/models"
)

const verificationColumns = "id, item_id, item_type, proof, question, answer, claimant_id, verified_by, note, status, decided_at, created_at, updated_at"

// VerificationRepository stores ownership challenges.
// The unique partial index on pending challenges enforces one active challenge per item.
type VerificationRepository struct {
	db *sqlx.DB
}

// NewVerificationRepository creates a new instance of VerificationRepository.
func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Create inserts a challenge. A concurrent pending challenge for the same item yields ErrDuplicate.
func (r *VerificationRepository) Create(ctx context.Context, v *models.Verification) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now

	query := fmt.Sprintf(`INSERT INTO verifications (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, verificationColumns)
	if _, err := r.db.ExecContext(ctx, query,
		v.ID, v.ItemID, v.ItemType, v.Proof, v.Question, v.Answer, v.ClaimantID,
		v.VerifiedBy, v.Note, v.Status, v.DecidedAt, v.CreatedAt, v.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create verification: %w", err)
	}
	return nil
}

// FindByID returns a challenge or sql.ErrNoRows.
func (r *VerificationRepository) FindByID(ctx context.Context, id string) (*models.Verification, error) {
	query := fmt.Sprintf("SELECT %s FROM verifications WHERE id = $1", verificationColumns)
	var v models.Verification
	if err := r.db.GetContext(ctx, &v, query, id); err != nil {
		if missingRow(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find verification: %w", err)
	}
	return &v, nil
}

// FindPendingByItem returns the active challenge for an item or sql.ErrNoRows.
func (r *VerificationRepository) FindPendingByItem(ctx context.Context, kind models.ItemKind, itemID string) (*models.Verification, error) {
	query := fmt.Sprintf("SELECT %s FROM verifications WHERE item_type = $1 AND item_id = $2 AND status = $3 LIMIT 1", verificationColumns)
	var v models.Verification
	if err := r.db.GetContext(ctx, &v, query, kind, itemID, models.VerificationPending); err != nil {
		if missingRow(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find pending verification: %w", err)
	}
	return &v, nil
}

// ListByItem returns all challenges for an item, newest first.
func (r *VerificationRepository) ListByItem(ctx context.Context, kind models.ItemKind, itemID string) ([]models.Verification, error) {
	query := fmt.Sprintf("SELECT %s FROM verifications WHERE item_type = $1 AND item_id = $2 ORDER BY created_at DESC", verificationColumns)
	out := make([]models.Verification, 0)
	if err := r.db.SelectContext(ctx, &out, query, kind, itemID); err != nil {
		if isMalformedID(err) {
			return out, nil
		}
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	return out, nil
}

// Decide moves a pending challenge to a terminal status. Already decided challenges yield sql.ErrNoRows.
func (r *VerificationRepository) Decide(ctx context.Context, d models.VerificationDecision) (*models.Verification, error) {
	query := fmt.Sprintf(`UPDATE verifications SET status = $2, verified_by = $3, note = $4, decided_at = $5, updated_at = $5
WHERE id = $1 AND status = $6 RETURNING %s`, verificationColumns)
	var v models.Verification
	if err := r.db.GetContext(ctx, &v, query, d.ID, d.To, d.VerifiedBy, d.Note, time.Now().UTC(), models.VerificationPending); err != nil {
		if missingRow(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("decide verification: %w", err)
	}
	return &v, nil
}

const messageColumns = "id, verification_id, sender_id, sender_role, body, created_at"

// CreateMessage appends a message to a challenge conversation.
func (r *VerificationRepository) CreateMessage(ctx context.Context, m *models.VerificationMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	query := fmt.Sprintf("INSERT INTO verification_messages (%s) VALUES ($1, $2, $3, $4, $5, $6)", messageColumns)
	if _, err := r.db.ExecContext(ctx, query, m.ID, m.VerificationID, m.SenderID, m.SenderRole, m.Body, m.CreatedAt); err != nil {
		return fmt.Errorf("create verification message: %w", err)
	}
	return nil
}

// ListMessages returns a challenge conversation, oldest first.
func (r *VerificationRepository) ListMessages(ctx context.Context, verificationID string) ([]models.VerificationMessage, error) {
	query := fmt.Sprintf("SELECT %s FROM verification_messages WHERE verification_id = $1 ORDER BY created_at ASC, id ASC", messageColumns)
	out := make([]models.VerificationMessage, 0)
	if err := r.db.SelectContext(ctx, &out, query, verificationID); err != nil {
		if isMalformedID(err) {
			return out, nil
		}
		return nil, fmt.Errorf("list verification messages: %w", err)
	}
	return out, nil
}
