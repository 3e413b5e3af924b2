package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/backtrackers-api/internal/models"
	"github.com/noah-isme/backtrackers-api/internal/repository"
	appErrors "github.com/noah-isme/backtrackers-api/pkg/errors"
)

type itemKey struct {
	kind models.ItemKind
	id   string
}

// memItemRepo mimics the single-statement conditional writes of the SQL repository.
type memItemRepo struct {
	mu        sync.Mutex
	items     map[itemKey]models.Item
	seq       int
	clock     time.Time
	writes    []string
	deleteErr error
	listErr   error
	listCalls int
	// beforeStatusUpdate runs inside UpdateStatus before the conditional check.
	beforeStatusUpdate func(item *models.Item)
}

func newMemItemRepo() *memItemRepo {
	return &memItemRepo{items: map[itemKey]models.Item{}, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *memItemRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memItemRepo) FindByID(ctx context.Context, kind models.ItemKind, id string) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemKey{kind, id}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := cloneItem(item)
	return &out, nil
}

func (r *memItemRepo) Create(ctx context.Context, item *models.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == "" {
		r.seq++
		item.ID = fmt.Sprintf("%s-%d", item.Kind, r.seq)
	}
	now := r.tick()
	item.CreatedAt, item.UpdatedAt = now, now
	if item.Images == nil {
		item.Images = models.ImageList{}
	}
	if item.Metadata == nil {
		item.Metadata = models.Metadata{}
	}
	r.items[itemKey{item.Kind, item.ID}] = cloneItem(*item)
	return nil
}

func (r *memItemRepo) Update(ctx context.Context, kind models.ItemKind, id string, upd models.ItemUpdate) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := itemKey{kind, id}
	item, ok := r.items[key]
	if !ok || (!upd.MetadataOnly && item.Status == models.StatusReturned) {
		return nil, sql.ErrNoRows
	}
	p := upd.Patch
	if !upd.MetadataOnly {
		if p.Title != nil {
			item.Title = *p.Title
		}
		if p.Description != nil {
			item.Description = *p.Description
		}
		if p.Location != nil {
			item.Location = *p.Location
		}
		if p.OccurredAt != nil {
			item.OccurredAt = p.OccurredAt
		}
		if p.ContactInfo != nil {
			item.ContactInfo = *p.ContactInfo
		}
		item.Images = append(models.ImageList{}, upd.Images...)
	}
	if p.Metadata != nil {
		item.Metadata = p.Metadata
	}
	item.UpdatedAt = r.tick()
	r.items[key] = item
	r.writes = append(r.writes, item.Title)
	out := cloneItem(item)
	return &out, nil
}

func (r *memItemRepo) UpdateStatus(ctx context.Context, kind models.ItemKind, id string, from, to models.ItemStatus) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := itemKey{kind, id}
	item, ok := r.items[key]
	if ok && r.beforeStatusUpdate != nil {
		r.beforeStatusUpdate(&item)
		r.items[key] = item
	}
	if !ok || item.Status != from {
		return nil, sql.ErrNoRows
	}
	item.Status = to
	item.UpdatedAt = r.tick()
	r.items[key] = item
	out := cloneItem(item)
	return &out, nil
}

func (r *memItemRepo) SetVerification(ctx context.Context, kind models.ItemKind, id, verificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := itemKey{kind, id}
	item, ok := r.items[key]
	if !ok {
		return sql.ErrNoRows
	}
	item.VerificationID = &verificationID
	r.items[key] = item
	return nil
}

func (r *memItemRepo) Delete(ctx context.Context, kind models.ItemKind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	key := itemKey{kind, id}
	if _, ok := r.items[key]; !ok {
		return sql.ErrNoRows
	}
	delete(r.items, key)
	return nil
}

func (r *memItemRepo) List(ctx context.Context, kind models.ItemKind, filter models.ItemFilter) ([]models.Item, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	matches := make([]models.Item, 0)
	for key, item := range r.items {
		if key.kind != kind {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.Location != "" && !containsFold(item.Location, filter.Location) {
			continue
		}
		if filter.Query != "" && !containsFold(item.Title, filter.Query) && !containsFold(item.Description, filter.Query) {
			continue
		}
		matches = append(matches, cloneItem(item))
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	filter.Normalize(0)
	total := len(matches)
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

func (r *memItemRepo) put(item models.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = r.tick()
	}
	r.items[itemKey{item.Kind, item.ID}] = cloneItem(item)
}

func (r *memItemRepo) get(kind models.ItemKind, id string) (models.Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemKey{kind, id}]
	return item, ok
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(sub)))
}

func cloneItem(item models.Item) models.Item {
	item.Images = append(models.ImageList{}, item.Images...)
	meta := make(models.Metadata, len(item.Metadata))
	for k, v := range item.Metadata {
		meta[k] = v
	}
	item.Metadata = meta
	return item
}

// fakeMedia records uploads and deletions; failOn makes the n-th upload (1-based) fail.
type fakeMedia struct {
	mu         sync.Mutex
	uploaded   []string
	deleted    []string
	failOn     int
	calls      int
	deleteFail map[string]bool
}

func (m *fakeMedia) Upload(ctx context.Context, localPath, namespace string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failOn > 0 && m.calls == m.failOn {
		return "", errors.New("blob store unavailable")
	}
	url := "https://media.test/" + namespace + "/" + path.Base(localPath)
	m.uploaded = append(m.uploaded, url)
	return url, nil
}

func (m *fakeMedia) Delete(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteFail[url] {
		return errors.New("blob delete failed")
	}
	m.deleted = append(m.deleted, url)
	return nil
}

// memCache is a map backed CacheRepository.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *memCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	return nil
}

// memVerificationRepo enforces one pending challenge per item like the partial unique index.
type memVerificationRepo struct {
	mu       sync.Mutex
	items    map[string]models.Verification
	order    []string
	seq      int
	messages []models.VerificationMessage
}

func newMemVerificationRepo() *memVerificationRepo {
	return &memVerificationRepo{items: map[string]models.Verification{}}
}

func (r *memVerificationRepo) Create(ctx context.Context, v *models.Verification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.ItemType == v.ItemType && existing.ItemID == v.ItemID && existing.Status == models.VerificationPending {
			return repository.ErrDuplicate
		}
	}
	r.seq++
	if v.ID == "" {
		v.ID = fmt.Sprintf("ver-%d", r.seq)
	}
	v.CreatedAt = time.Date(2024, 1, 1, 0, 0, r.seq, 0, time.UTC)
	r.items[v.ID] = *v
	r.order = append(r.order, v.ID)
	return nil
}

func (r *memVerificationRepo) FindByID(ctx context.Context, id string) (*models.Verification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &v, nil
}

func (r *memVerificationRepo) FindPendingByItem(ctx context.Context, kind models.ItemKind, itemID string) (*models.Verification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.items {
		if v.ItemType == kind && v.ItemID == itemID && v.Status == models.VerificationPending {
			out := v
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memVerificationRepo) ListByItem(ctx context.Context, kind models.ItemKind, itemID string) ([]models.Verification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Verification, 0)
	for i := len(r.order) - 1; i >= 0; i-- {
		v := r.items[r.order[i]]
		if v.ItemType == kind && v.ItemID == itemID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *memVerificationRepo) Decide(ctx context.Context, d models.VerificationDecision) (*models.Verification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[d.ID]
	if !ok || v.Status != models.VerificationPending {
		return nil, sql.ErrNoRows
	}
	now := time.Now().UTC()
	v.Status = d.To
	v.VerifiedBy = &d.VerifiedBy
	v.Note = d.Note
	v.DecidedAt = &now
	r.items[d.ID] = v
	return &v, nil
}

func (r *memVerificationRepo) CreateMessage(ctx context.Context, m *models.VerificationMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	m.ID = fmt.Sprintf("msg-%d", r.seq)
	m.CreatedAt = time.Date(2024, 1, 1, 0, 0, r.seq, 0, time.UTC)
	r.messages = append(r.messages, *m)
	return nil
}

func (r *memVerificationRepo) ListMessages(ctx context.Context, verificationID string) ([]models.VerificationMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.VerificationMessage, 0)
	for _, m := range r.messages {
		if m.VerificationID == verificationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func member(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleMember}
}

func admin(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleAdmin}
}
