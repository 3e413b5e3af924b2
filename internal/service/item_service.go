package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/backtrackers-api/internal/dto"
	"github.com/noah-isme/backtrackers-api/internal/models"
	appErrors "github.com/noah-isme/backtrackers-api/pkg/errors"
)

const itemCachePrefix = "items:"

type itemRepository interface {
	FindByID(ctx context.Context, kind models.ItemKind, id string) (*models.Item, error)
	Create(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, kind models.ItemKind, id string, upd models.ItemUpdate) (*models.Item, error)
	UpdateStatus(ctx context.Context, kind models.ItemKind, id string, from, to models.ItemStatus) (*models.Item, error)
	SetVerification(ctx context.Context, kind models.ItemKind, id, verificationID string) error
	Delete(ctx context.Context, kind models.ItemKind, id string) error
	List(ctx context.Context, kind models.ItemKind, filter models.ItemFilter) ([]models.Item, int, error)
}

// MediaStore uploads local files to durable storage and deletes them by URL.
type MediaStore interface {
	Upload(ctx context.Context, localPath, namespace string) (string, error)
	Delete(ctx context.Context, url string) error
}

// ItemServiceConfig bounds uploads and listings.
type ItemServiceConfig struct {
	MaxImages   int
	MaxPageSize int
	CacheTTL    time.Duration
}

// ItemService owns the lost/found lifecycle: create, patch, delete, status transitions and promotion.
// It is parameterised by models.ItemKind instead of having one code path per collection.
type ItemService struct {
	repo      itemRepository
	media     MediaStore
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ItemServiceConfig
}

// NewItemService constructs an ItemService.
func NewItemService(repo itemRepository, media MediaStore, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ItemServiceConfig) *ItemService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 5
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	return &ItemService{repo: repo, media: media, cache: cache, metrics: metrics, validator: validate, logger: logger, cfg: cfg}
}

// Create validates the report, uploads its images in order and persists it in the kind's initial status.
// Images uploaded before a failing one are not rolled back.
func (s *ItemService) Create(ctx context.Context, kind models.ItemKind, req dto.CreateItemRequest, imagePaths []string, actor *models.JWTClaims) (*models.Item, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown item kind")
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid item payload")
	}
	if err := req.Metadata.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if len(imagePaths) > s.cfg.MaxImages {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d images are allowed", s.cfg.MaxImages))
	}

	images, err := s.upload(ctx, kind, imagePaths)
	if err != nil {
		return nil, err
	}

	item := &models.Item{
		Kind:        kind,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		OccurredAt:  req.OccurredAt,
		ContactInfo: strings.TrimSpace(req.ContactInfo),
		Images:      images,
		OwnerID:     actor.UserID,
		Status:      kind.InitialStatus(),
		Metadata:    req.Metadata,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		s.logger.Error("item persisted images but record insert failed", zap.String("kind", string(kind)), zap.Strings("images", images), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to create item")
	}

	s.metrics.ItemCreated(kind)
	s.invalidate(ctx, kind)
	return item, nil
}

// Get returns a single item.
func (s *ItemService) Get(ctx context.Context, kind models.ItemKind, id string) (*models.Item, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "item not found")
	}
	item, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "item not found")
		}
		return nil, appErrors.Internal(err, "failed to load item")
	}
	return item, nil
}

// List returns a page of items; the boolean reports whether it was served from cache.
func (s *ItemService) List(ctx context.Context, kind models.ItemKind, filter models.ItemFilter) (*dto.ItemPage, bool, error) {
	if !kind.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "unknown item kind")
	}
	if filter.Status != "" && !kind.HasStatus(filter.Status) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("status %q does not apply to %s items", filter.Status, kind))
	}
	filter.Normalize(s.cfg.MaxPageSize)

	key := listCacheKey(kind, filter)
	var cached dto.ItemPage
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	items, total, err := s.repo.List(ctx, kind, filter)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to list items")
	}
	for i := range items {
		items[i].Kind = kind
	}
	page := &dto.ItemPage{
		Items:      items,
		Pagination: models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total},
	}
	s.cache.Set(ctx, key, page, s.cfg.CacheTTL)
	return page, false, nil
}

// Update applies a patch and reconciles the image list: kept URLs first in the requested order, then new uploads.
// Dropped images are deleted best-effort after the record is written. Concurrent updates are last-write-wins.
func (s *ItemService) Update(ctx context.Context, kind models.ItemKind, id string, req dto.UpdateItemRequest, imagePaths []string, actor *models.JWTClaims) (*models.Item, error) {
	item, err := s.authorizedItem(ctx, kind, id, actor)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if trimmed == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title must not be empty")
		}
		req.Title = &trimmed
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid item payload")
	}
	if err := req.Metadata.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	kept := keepImages(item.Images, req.ExistingImages)
	removed := dropped(item.Images, kept)
	patch := req.Patch()
	metadataOnly := !patch.TouchesContent() && len(imagePaths) == 0 && sameImages(kept, item.Images)

	if kind.Terminal(item.Status) && !metadataOnly {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "returned items only accept metadata changes")
	}
	if len(kept)+len(imagePaths) > s.cfg.MaxImages {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d images are allowed", s.cfg.MaxImages))
	}

	uploaded, err := s.upload(ctx, kind, imagePaths)
	if err != nil {
		return nil, err
	}
	images := make(models.ImageList, 0, len(kept)+len(uploaded))
	images = append(images, kept...)
	images = append(images, uploaded...)

	updated, err := s.repo.Update(ctx, kind, id, models.ItemUpdate{Patch: patch, Images: images, MetadataOnly: metadataOnly})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.explainMissedWrite(ctx, kind, id)
		}
		return nil, appErrors.Internal(err, "failed to update item")
	}

	s.deleteImages(ctx, kind, id, removed)
	s.invalidate(ctx, kind)
	return updated, nil
}

// Delete removes the item's images best-effort and then the record.
func (s *ItemService) Delete(ctx context.Context, kind models.ItemKind, id string, actor *models.JWTClaims) error {
	item, err := s.authorizedItem(ctx, kind, id, actor)
	if err != nil {
		return err
	}

	s.deleteImages(ctx, kind, id, item.Images)

	if err := s.repo.Delete(ctx, kind, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "item not found")
		}
		return appErrors.Internal(err, "failed to delete item")
	}
	s.invalidate(ctx, kind)
	return nil
}

// Transition advances the item exactly one step along its kind's chain.
func (s *ItemService) Transition(ctx context.Context, kind models.ItemKind, id string, target models.ItemStatus, actor *models.JWTClaims) (*models.Item, error) {
	item, err := s.authorizedItem(ctx, kind, id, actor)
	if err != nil {
		return nil, err
	}
	if !kind.CanTransition(item.Status, target) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("%s item cannot move from %s to %s", kind, item.Status, target))
	}

	updated, err := s.repo.UpdateStatus(ctx, kind, id, item.Status, target)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := s.Get(ctx, kind, id); getErr != nil {
				return nil, getErr
			}
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "item status changed concurrently")
		}
		return nil, appErrors.Internal(err, "failed to update item status")
	}

	s.metrics.ItemTransitioned(kind, target)
	s.invalidate(ctx, kind)
	return updated, nil
}

// PromoteLostToFound copies a lost report into a returned found record owned by actor, then removes the lost record.
// The two writes are not transactional: if removal fails both records remain and the error is surfaced.
func (s *ItemService) PromoteLostToFound(ctx context.Context, lostID string, actor *models.JWTClaims) (*models.Item, error) {
	lost, err := s.authorizedItem(ctx, models.KindLost, lostID, actor)
	if err != nil {
		return nil, err
	}
	if models.KindLost.Terminal(lost.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "lost item is already returned")
	}

	images := make(models.ImageList, len(lost.Images))
	copy(images, lost.Images)
	metadata := make(models.Metadata, len(lost.Metadata)+1)
	for k, v := range lost.Metadata {
		metadata[k] = v
	}
	metadata["promoted_from"] = models.StringValue(lost.ID)

	found := &models.Item{
		Kind:        models.KindFound,
		Title:       lost.Title,
		Description: lost.Description,
		Location:    lost.Location,
		OccurredAt:  lost.OccurredAt,
		ContactInfo: lost.ContactInfo,
		Images:      images,
		OwnerID:     actor.UserID,
		Status:      models.StatusReturned,
		Metadata:    metadata,
	}
	if err := s.repo.Create(ctx, found); err != nil {
		return nil, appErrors.Internal(err, "failed to create found record")
	}
	s.invalidate(ctx, models.KindFound)

	if err := s.repo.Delete(ctx, models.KindLost, lostID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.metrics.ItemPromoted(true)
		s.logger.Error("promote left both records live",
			zap.String("lost_id", lostID),
			zap.String("found_id", found.ID),
			zap.Error(err),
		)
		return nil, appErrors.Internal(err, fmt.Sprintf("found record %s created but lost record could not be removed", found.ID))
	}

	s.metrics.ItemPromoted(false)
	s.invalidate(ctx, models.KindLost)
	return found, nil
}

// AttachVerification records the latest challenge on the item.
func (s *ItemService) AttachVerification(ctx context.Context, kind models.ItemKind, id, verificationID string) error {
	if err := s.repo.SetVerification(ctx, kind, id, verificationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "item not found")
		}
		return appErrors.Internal(err, "failed to attach verification")
	}
	s.invalidate(ctx, kind)
	return nil
}

func (s *ItemService) authorizedItem(ctx context.Context, kind models.ItemKind, id string, actor *models.JWTClaims) (*models.Item, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	item, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanMutate(item.OwnerID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner or an admin may modify this item")
	}
	return item, nil
}

// explainMissedWrite distinguishes a concurrently deleted record from one that became returned.
func (s *ItemService) explainMissedWrite(ctx context.Context, kind models.ItemKind, id string) error {
	if _, err := s.Get(ctx, kind, id); err != nil {
		return err
	}
	return appErrors.Clone(appErrors.ErrInvalidTransition, "returned items only accept metadata changes")
}

func (s *ItemService) upload(ctx context.Context, kind models.ItemKind, paths []string) (models.ImageList, error) {
	urls := make(models.ImageList, 0, len(paths))
	for i, path := range paths {
		u, err := s.media.Upload(ctx, path, kind.Namespace())
		if err != nil {
			s.metrics.MediaUploaded(false)
			s.logger.Warn("image upload failed", zap.String("kind", string(kind)), zap.Int("index", i), zap.Strings("uploaded", urls), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrUpload.Code, appErrors.ErrUpload.Status, fmt.Sprintf("failed to upload image %d", i+1))
		}
		s.metrics.MediaUploaded(true)
		urls = append(urls, u)
	}
	return urls, nil
}

func (s *ItemService) deleteImages(ctx context.Context, kind models.ItemKind, id string, urls []string) {
	for _, u := range urls {
		if err := s.media.Delete(ctx, u); err != nil {
			s.metrics.MediaDeleteFailed()
			s.logger.Warn("image delete failed", zap.String("kind", string(kind)), zap.String("item_id", id), zap.String("url", u), zap.Error(err))
		}
	}
}

func (s *ItemService) invalidate(ctx context.Context, kind models.ItemKind) {
	s.cache.Invalidate(ctx, itemCachePrefix+string(kind)+":*")
}

func listCacheKey(kind models.ItemKind, f models.ItemFilter) string {
	v := url.Values{}
	v.Set("status", string(f.Status))
	v.Set("location", strings.ToLower(strings.TrimSpace(f.Location)))
	v.Set("q", strings.ToLower(strings.TrimSpace(f.Query)))
	v.Set("page", strconv.Itoa(f.Page))
	v.Set("limit", strconv.Itoa(f.PageSize))
	return itemCachePrefix + string(kind) + ":" + v.Encode()
}

// keepImages returns the requested URLs that are attached to the item, in request order, without duplicates.
func keepImages(current models.ImageList, requested []string) models.ImageList {
	kept := make(models.ImageList, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, u := range requested {
		if seen[u] || !current.Contains(u) {
			continue
		}
		seen[u] = true
		kept = append(kept, u)
	}
	return kept
}

func dropped(current, kept models.ImageList) []string {
	var out []string
	for _, u := range current {
		if !kept.Contains(u) {
			out = append(out, u)
		}
	}
	return out
}

func sameImages(a, b models.ImageList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
