package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/backtrackers-api/internal/dto"
	"github.com/noah-isme/backtrackers-api/internal/models"
	"github.com/noah-isme/backtrackers-api/internal/repository"
	appErrors "github.com/noah-isme/backtrackers-api/pkg/errors"
)

type verificationRepository interface {
	Create(ctx context.Context, v *models.Verification) error
	FindByID(ctx context.Context, id string) (*models.Verification, error)
	FindPendingByItem(ctx context.Context, kind models.ItemKind, itemID string) (*models.Verification, error)
	ListByItem(ctx context.Context, kind models.ItemKind, itemID string) ([]models.Verification, error)
	Decide(ctx context.Context, d models.VerificationDecision) (*models.Verification, error)
	CreateMessage(ctx context.Context, m *models.VerificationMessage) error
	ListMessages(ctx context.Context, verificationID string) ([]models.VerificationMessage, error)
}

type itemLifecycle interface {
	Get(ctx context.Context, kind models.ItemKind, id string) (*models.Item, error)
	Transition(ctx context.Context, kind models.ItemKind, id string, target models.ItemStatus, actor *models.JWTClaims) (*models.Item, error)
	AttachVerification(ctx context.Context, kind models.ItemKind, id, verificationID string) error
}

// VerificationService runs ownership challenges: pending -> approved | rejected.
type VerificationService struct {
	repo      verificationRepository
	items     itemLifecycle
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVerificationService constructs a VerificationService.
func NewVerificationService(repo verificationRepository, items itemLifecycle, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &VerificationService{repo: repo, items: items, metrics: metrics, validator: validate, logger: logger}
}

// Create opens a challenge on an unresolved item. Only one challenge per item may be pending.
func (s *VerificationService) Create(ctx context.Context, req dto.CreateVerificationRequest, actor *models.JWTClaims) (*models.Verification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req.Question = strings.TrimSpace(req.Question)
	req.Answer = strings.TrimSpace(req.Answer)
	req.Proof = strings.TrimSpace(req.Proof)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification payload")
	}

	item, err := s.items.Get(ctx, req.ItemType, req.ItemID)
	if err != nil {
		return nil, err
	}
	if req.ItemType.Terminal(item.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "item is already returned")
	}
	if item.OwnerID == actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "owners cannot open a challenge on their own item")
	}

	if _, err := s.repo.FindPendingByItem(ctx, req.ItemType, req.ItemID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a verification is already pending for this item")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check pending verifications")
	}

	v := &models.Verification{
		ItemID:     req.ItemID,
		ItemType:   req.ItemType,
		Proof:      req.Proof,
		Question:   req.Question,
		Answer:     req.Answer,
		ClaimantID: actor.UserID,
		Status:     models.VerificationPending,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a verification is already pending for this item")
		}
		return nil, appErrors.Internal(err, "failed to create verification")
	}

	if err := s.items.AttachVerification(ctx, req.ItemType, req.ItemID, v.ID); err != nil {
		s.logger.Warn("verification created but item reference not updated", zap.String("verification_id", v.ID), zap.String("item_id", req.ItemID), zap.Error(err))
	}
	return v, nil
}

// Get returns a challenge; the expected answer is hidden from anyone but the claimant, the item owner and admins.
func (s *VerificationService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Verification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	v, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	ownerID, err := s.itemOwner(ctx, v)
	if err != nil {
		return nil, err
	}
	out := visibleTo(*v, ownerID, actor)
	return &out, nil
}

// ListForItem returns every challenge raised on an item, newest first.
func (s *VerificationService) ListForItem(ctx context.Context, kind models.ItemKind, itemID string, actor *models.JWTClaims) ([]models.Verification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	item, err := s.items.Get(ctx, kind, itemID)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListByItem(ctx, kind, itemID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list verifications")
	}
	for i := range list {
		list[i] = visibleTo(list[i], item.OwnerID, actor)
	}
	return list, nil
}

// Approve marks the challenge approved and advances the item from its initial status.
func (s *VerificationService) Approve(ctx context.Context, id string, req dto.DecideVerificationRequest, actor *models.JWTClaims) (*models.Verification, error) {
	return s.decide(ctx, id, models.VerificationApproved, req, actor)
}

// Reject marks the challenge rejected; the item is left untouched.
func (s *VerificationService) Reject(ctx context.Context, id string, req dto.DecideVerificationRequest, actor *models.JWTClaims) (*models.Verification, error) {
	return s.decide(ctx, id, models.VerificationRejected, req, actor)
}

func (s *VerificationService) decide(ctx context.Context, id string, to models.VerificationStatus, req dto.DecideVerificationRequest, actor *models.JWTClaims) (*models.Verification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	v, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	item, err := s.items.Get(ctx, v.ItemType, v.ItemID)
	if err != nil {
		return nil, err
	}
	if !actor.CanMutate(item.OwnerID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the item owner or an admin may decide this verification")
	}
	if v.Status != models.VerificationPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "verification is already "+string(v.Status))
	}

	var note *string
	if trimmed := strings.TrimSpace(req.Note); trimmed != "" {
		note = &trimmed
	}
	decided, err := s.repo.Decide(ctx, models.VerificationDecision{ID: id, To: to, VerifiedBy: actor.UserID, Note: note})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "verification was decided concurrently")
		}
		return nil, appErrors.Internal(err, "failed to record decision")
	}
	s.metrics.VerificationDecided(to)

	if to == models.VerificationApproved {
		if err := s.advanceItem(ctx, item, actor); err != nil {
			return nil, err
		}
	}
	return decided, nil
}

// advanceItem moves lost->claimed or found->matched. Items already past their initial status are left as they are.
func (s *VerificationService) advanceItem(ctx context.Context, item *models.Item, actor *models.JWTClaims) error {
	if item.Status != item.Kind.InitialStatus() {
		s.logger.Info("approved verification on advanced item", zap.String("item_id", item.ID), zap.String("status", string(item.Status)))
		return nil
	}
	next, ok := item.Kind.Next(item.Status)
	if !ok {
		return nil
	}
	if _, err := s.items.Transition(ctx, item.Kind, item.ID, next, actor); err != nil {
		if errors.Is(err, appErrors.ErrInvalidTransition) {
			s.logger.Info("item advanced concurrently", zap.String("item_id", item.ID))
			return nil
		}
		s.logger.Error("verification approved but item not advanced", zap.String("item_id", item.ID), zap.Error(err))
		return err
	}
	return nil
}

// PostMessage adds to the conversation on a pending challenge.
// Only the claimant, the item owner and admins take part.
func (s *VerificationService) PostMessage(ctx context.Context, id string, req dto.PostMessageRequest, actor *models.JWTClaims) (*models.VerificationMessage, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req.Body = strings.TrimSpace(req.Body)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}
	v, role, err := s.participant(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if v.Status != models.VerificationPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "verification is already "+string(v.Status))
	}

	msg := &models.VerificationMessage{
		VerificationID: v.ID,
		SenderID:       actor.UserID,
		SenderRole:     role,
		Body:           req.Body,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, appErrors.Internal(err, "failed to save message")
	}
	return msg, nil
}

// ListMessages returns the conversation on a challenge, oldest first. Decided challenges stay readable.
func (s *VerificationService) ListMessages(ctx context.Context, id string, actor *models.JWTClaims) ([]models.VerificationMessage, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	v, _, err := s.participant(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListMessages(ctx, v.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list messages")
	}
	return list, nil
}

func (s *VerificationService) participant(ctx context.Context, id string, actor *models.JWTClaims) (*models.Verification, models.MessageRole, error) {
	v, err := s.find(ctx, id)
	if err != nil {
		return nil, "", err
	}
	ownerID, err := s.itemOwner(ctx, v)
	if err != nil {
		return nil, "", err
	}
	switch {
	case actor.UserID == v.ClaimantID:
		return v, models.MessageRoleClaimant, nil
	case ownerID != "" && actor.UserID == ownerID:
		return v, models.MessageRoleOwner, nil
	case actor.IsAdmin():
		return v, models.MessageRoleAdmin, nil
	}
	return nil, "", appErrors.Clone(appErrors.ErrForbidden, "only the claimant, the item owner or an admin may take part in this conversation")
}

// itemOwner returns the owner of the challenged item, or "" once the item is gone.
func (s *VerificationService) itemOwner(ctx context.Context, v *models.Verification) (string, error) {
	item, err := s.items.Get(ctx, v.ItemType, v.ItemID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return item.OwnerID, nil
}

func (s *VerificationService) find(ctx context.Context, id string) (*models.Verification, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "verification not found")
		}
		return nil, appErrors.Internal(err, "failed to load verification")
	}
	return v, nil
}

func visibleTo(v models.Verification, ownerID string, actor *models.JWTClaims) models.Verification {
	if actor.IsAdmin() || actor.UserID == v.ClaimantID || (ownerID != "" && actor.UserID == ownerID) {
		return v
	}
	return v.Redacted()
}
