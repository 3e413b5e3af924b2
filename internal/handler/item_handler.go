package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/backtrackers-api/internal/dto"
	"github.com/noah-isme/backtrackers-api/internal/middleware"
	"github.com/noah-isme/backtrackers-api/internal/models"
	appErrors "github.com/noah-isme/backtrackers-api/pkg/errors"
	"github.com/noah-isme/backtrackers-api/pkg/response"
)

type itemService interface {
	Create(ctx context.Context, kind models.ItemKind, req dto.CreateItemRequest, imagePaths []string, actor *models.JWTClaims) (*models.Item, error)
	Get(ctx context.Context, kind models.ItemKind, id string) (*models.Item, error)
	List(ctx context.Context, kind models.ItemKind, filter models.ItemFilter) (*dto.ItemPage, bool, error)
	Update(ctx context.Context, kind models.ItemKind, id string, req dto.UpdateItemRequest, imagePaths []string, actor *models.JWTClaims) (*models.Item, error)
	Delete(ctx context.Context, kind models.ItemKind, id string, actor *models.JWTClaims) error
	Transition(ctx context.Context, kind models.ItemKind, id string, target models.ItemStatus, actor *models.JWTClaims) (*models.Item, error)
	PromoteLostToFound(ctx context.Context, lostID string, actor *models.JWTClaims) (*models.Item, error)
}

// ItemHandler exposes lost and found item endpoints under /items/:kind.
type ItemHandler struct {
	service itemService
	uploads UploadConfig
}

// NewItemHandler constructs an ItemHandler.
func NewItemHandler(svc itemService, uploads UploadConfig) *ItemHandler {
	return &ItemHandler{service: svc, uploads: uploads}
}

// List godoc
// @Summary List items
// @Description Newest first, offset paginated. Pages may shift when items are added between requests.
// @Tags Items
// @Produce json
// @Param kind path string true "lost or found"
// @Param status query string false "Exact status"
// @Param location query string false "Location substring"
// @Param q query string false "Keyword in title or description"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /items/{kind} [get]
func (h *ItemHandler) List(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	page, err := optionalInt(c, "page")
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, err := optionalInt(c, "limit")
	if err != nil {
		response.Error(c, err)
		return
	}

	result, hit, err := h.service.List(c.Request.Context(), kind, models.ItemFilter{
		Status:   models.ItemStatus(c.Query("status")),
		Location: c.Query("location"),
		Query:    c.Query("q"),
		Page:     page,
		PageSize: limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, result.Items, &result.Pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get item
// @Tags Items
// @Produce json
// @Param kind path string true "lost or found"
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /items/{kind}/{id} [get]
func (h *ItemHandler) Get(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), kind, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Report an item
// @Description Multipart form with item fields and up to the configured number of images, or a JSON body without images.
// @Tags Items
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "lost or found"
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param location formData string false "Location"
// @Param occurred_at formData string false "Date lost or found"
// @Param contact_info formData string false "Contact info"
// @Param metadata formData string false "Flat JSON object"
// @Param images formData file false "Images"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /items/{kind} [post]
func (h *ItemHandler) Create(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}

	var (
		req    dto.CreateItemRequest
		staged stagedFiles
		err    error
	)
	if isMultipart(c) {
		if staged, err = h.uploads.stageImages(c); err != nil {
			response.Error(c, err)
			return
		}
		defer staged.cleanup()
		if req, err = createRequestFromForm(c); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
			return
		}
	} else if err = c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid item payload"))
		return
	}

	item, err := h.service.Create(c.Request.Context(), kind, req, staged, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update item
// @Description Patch fields, keep the listed existing images in order and append new uploads. Returned items accept metadata only.
// @Tags Items
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "lost or found"
// @Param id path string true "Item ID"
// @Param existingImages[] formData []string false "Image URLs to keep"
// @Param images formData file false "New images"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /items/{kind}/{id} [put]
func (h *ItemHandler) Update(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}

	var (
		req    dto.UpdateItemRequest
		staged stagedFiles
		err    error
	)
	if isMultipart(c) {
		if staged, err = h.uploads.stageImages(c); err != nil {
			response.Error(c, err)
			return
		}
		defer staged.cleanup()
		if req, err = updateRequestFromForm(c); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
			return
		}
	} else if err = c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid item payload"))
		return
	}

	item, err := h.service.Update(c.Request.Context(), kind, c.Param("id"), req, staged, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete item
// @Description Removes the item's images best-effort, then the item.
// @Tags Items
// @Produce json
// @Security BearerAuth
// @Param kind path string true "lost or found"
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /items/{kind}/{id} [delete]
func (h *ItemHandler) Delete(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := h.service.Delete(c.Request.Context(), kind, id, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": id, "deleted": true}, nil)
}

// Transition godoc
// @Summary Advance item status
// @Description Moves the item exactly one step: lost, claimed, returned or found, matched, returned.
// @Tags Items
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "lost or found"
// @Param id path string true "Item ID"
// @Param payload body dto.TransitionRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /items/{kind}/{id}/transition [put]
func (h *ItemHandler) Transition(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status is required"))
		return
	}
	item, err := h.service.Transition(c.Request.Context(), kind, c.Param("id"), req.Status, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// MarkFound godoc
// @Summary Promote a lost item to a returned found record
// @Description Creates the found record then deletes the lost one. If the delete fails both records remain and 500 is returned.
// @Tags Items
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lost item ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /items/lost/{id}/mark-found [put]
func (h *ItemHandler) MarkFound(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	if kind != models.KindLost {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "only lost items can be marked found"))
		return
	}
	found, err := h.service.PromoteLostToFound(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, found, nil)
}

func optionalInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be a positive integer")
	}
	return v, nil
}
