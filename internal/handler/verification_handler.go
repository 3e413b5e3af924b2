package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/backtrackers-api/internal/dto"
	"github.com/noah-isme/backtrackers-api/internal/models"
	appErrors "github.com/noah-isme/backtrackers-api/pkg/errors"
	"github.com/noah-isme/backtrackers-api/pkg/response"
)

type verificationService interface {
	Create(ctx context.Context, req dto.CreateVerificationRequest, actor *models.JWTClaims) (*models.Verification, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Verification, error)
	ListForItem(ctx context.Context, kind models.ItemKind, itemID string, actor *models.JWTClaims) ([]models.Verification, error)
	Approve(ctx context.Context, id string, req dto.DecideVerificationRequest, actor *models.JWTClaims) (*models.Verification, error)
	Reject(ctx context.Context, id string, req dto.DecideVerificationRequest, actor *models.JWTClaims) (*models.Verification, error)
	PostMessage(ctx context.Context, id string, req dto.PostMessageRequest, actor *models.JWTClaims) (*models.VerificationMessage, error)
	ListMessages(ctx context.Context, id string, actor *models.JWTClaims) ([]models.VerificationMessage, error)
}

// VerificationHandler exposes ownership challenge endpoints.
type VerificationHandler struct {
	service verificationService
}

// NewVerificationHandler constructs a VerificationHandler.
func NewVerificationHandler(svc verificationService) *VerificationHandler {
	return &VerificationHandler{service: svc}
}

// Create godoc
// @Summary Open an ownership challenge
// @Tags Verifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateVerificationRequest true "Challenge"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /verifications [post]
func (h *VerificationHandler) Create(c *gin.Context) {
	var req dto.CreateVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verification payload"))
		return
	}
	v, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, v)
}

// Get godoc
// @Summary Get a challenge
// @Description The expected answer is only shown to the claimant, the item owner and admins.
// @Tags Verifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Verification ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /verifications/{id} [get]
func (h *VerificationHandler) Get(c *gin.Context) {
	v, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, v, nil)
}

// ListForItem godoc
// @Summary Challenges raised on an item
// @Tags Verifications
// @Produce json
// @Security BearerAuth
// @Param kind path string true "lost or found"
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /items/{kind}/{id}/verifications [get]
func (h *VerificationHandler) ListForItem(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	list, err := h.service.ListForItem(c.Request.Context(), kind, c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// Approve godoc
// @Summary Approve a challenge
// @Description Also advances the item from its initial status (lost to claimed, found to matched).
// @Tags Verifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Verification ID"
// @Param payload body dto.DecideVerificationRequest false "Decision note"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /verifications/{id}/approve [put]
func (h *VerificationHandler) Approve(c *gin.Context) {
	h.decide(c, h.service.Approve)
}

// Reject godoc
// @Summary Reject a challenge
// @Tags Verifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Verification ID"
// @Param payload body dto.DecideVerificationRequest false "Decision note"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /verifications/{id}/reject [put]
func (h *VerificationHandler) Reject(c *gin.Context) {
	h.decide(c, h.service.Reject)
}

// PostMessage godoc
// @Summary Message the other party of a pending challenge
// @Tags Verifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Verification ID"
// @Param payload body dto.PostMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /verifications/{id}/messages [post]
func (h *VerificationHandler) PostMessage(c *gin.Context) {
	var req dto.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}
	msg, err := h.service.PostMessage(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// ListMessages godoc
// @Summary Conversation on a challenge
// @Tags Verifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Verification ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /verifications/{id}/messages [get]
func (h *VerificationHandler) ListMessages(c *gin.Context) {
	list, err := h.service.ListMessages(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

type decideFunc func(ctx context.Context, id string, req dto.DecideVerificationRequest, actor *models.JWTClaims) (*models.Verification, error)

func (h *VerificationHandler) decide(c *gin.Context, fn decideFunc) {
	var req dto.DecideVerificationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
			return
		}
	}
	v, err := fn(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, v, nil)
}
