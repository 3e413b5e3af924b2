package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/backtrackers-api/internal/models"
)

const itemColumns = "id, title, description, location, occurred_at, contact_info, images, owner_id, status, verification_id, metadata, created_at, updated_at"

// ItemRepository persists lost and found records in their per-kind tables.
// Every mutation is a single conditional statement; there is no application level locking.
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository creates a new instance of ItemRepository.
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// FindByID returns an item or sql.ErrNoRows.
func (r *ItemRepository) FindByID(ctx context.Context, kind models.ItemKind, id string) (*models.Item, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", itemColumns, kind.Table())
	var item models.Item
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if missingRow(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find %s item: %w", kind, err)
	}
	item.Kind = kind
	return &item, nil
}

// Create inserts the item into its kind's table, filling id and timestamps when absent.
func (r *ItemRepository) Create(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if item.Images == nil {
		item.Images = models.ImageList{}
	}
	if item.Metadata == nil {
		item.Metadata = models.Metadata{}
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, item.Kind.Table(), itemColumns)
	if _, err := r.db.ExecContext(ctx, query,
		item.ID, item.Title, item.Description, item.Location, item.OccurredAt, item.ContactInfo,
		item.Images, item.OwnerID, item.Status, item.VerificationID, item.Metadata,
		item.CreatedAt, item.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create %s item: %w", item.Kind, err)
	}
	return nil
}

// Update applies a field patch in one statement and returns the stored row.
// Content updates never match returned rows; sql.ErrNoRows covers both missing and returned records.
func (r *ItemRepository) Update(ctx context.Context, kind models.ItemKind, id string, upd models.ItemUpdate) (*models.Item, error) {
	args := []interface{}{id}
	var sets []string
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	p := upd.Patch
	if !upd.MetadataOnly {
		if p.Title != nil {
			set("title", *p.Title)
		}
		if p.Description != nil {
			set("description", *p.Description)
		}
		if p.Location != nil {
			set("location", *p.Location)
		}
		if p.OccurredAt != nil {
			set("occurred_at", *p.OccurredAt)
		}
		if p.ContactInfo != nil {
			set("contact_info", *p.ContactInfo)
		}
		images := upd.Images
		if images == nil {
			images = models.ImageList{}
		}
		set("images", images)
	}
	if p.Metadata != nil {
		set("metadata", p.Metadata)
	}
	set("updated_at", time.Now().UTC())

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", kind.Table(), strings.Join(sets, ", "))
	if !upd.MetadataOnly {
		args = append(args, models.StatusReturned)
		query += fmt.Sprintf(" AND status <> $%d", len(args))
	}
	query += " RETURNING " + itemColumns

	var item models.Item
	if err := r.db.GetContext(ctx, &item, query, args...); err != nil {
		if missingRow(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("update %s item: %w", kind, err)
	}
	item.Kind = kind
	return &item, nil
}

// UpdateStatus moves an item from one status to another only if it is still in from.
func (r *ItemRepository) UpdateStatus(ctx context.Context, kind models.ItemKind, id string, from, to models.ItemStatus) (*models.Item, error) {
	query := fmt.Sprintf("UPDATE %s SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2 RETURNING %s", kind.Table(), itemColumns)
	var item models.Item
	if err := r.db.GetContext(ctx, &item, query, id, from, to, time.Now().UTC()); err != nil {
		if missingRow(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("update %s item status: %w", kind, err)
	}
	item.Kind = kind
	return &item, nil
}

// SetVerification points the item at its latest verification challenge.
func (r *ItemRepository) SetVerification(ctx context.Context, kind models.ItemKind, id, verificationID string) error {
	query := fmt.Sprintf("UPDATE %s SET verification_id = $2, updated_at = $3 WHERE id = $1", kind.Table())
	res, err := r.db.ExecContext(ctx, query, id, verificationID, time.Now().UTC())
	if err != nil {
		if isMalformedID(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("set %s item verification: %w", kind, err)
	}
	return requireAffected(res)
}

// Delete hard-deletes the row.
func (r *ItemRepository) Delete(ctx context.Context, kind models.ItemKind, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", kind.Table())
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if isMalformedID(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("delete %s item: %w", kind, err)
	}
	return requireAffected(res)
}

// List returns one page of items matching filter, newest first, with the total match count.
func (r *ItemRepository) List(ctx context.Context, kind models.ItemKind, filter models.ItemFilter) ([]models.Item, int, error) {
	baseQuery := fmt.Sprintf("FROM %s WHERE 1=1", kind.Table())
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if loc := strings.TrimSpace(filter.Location); loc != "" {
		args = append(args, likePattern(loc))
		conditions = append(conditions, fmt.Sprintf("location ILIKE $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, likePattern(q))
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	filter.Normalize(0)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d", itemColumns, baseQuery, filter.PageSize, filter.Offset())

	items := make([]models.Item, 0)
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list %s items: %w", kind, err)
	}
	for i := range items {
		items[i].Kind = kind
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count %s items: %w", kind, err)
	}
	return items, total, nil
}

// Ping checks store connectivity for readiness probes.
func (r *ItemRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
