package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// ItemKind selects the collection, status chain and media namespace of an item.
type ItemKind string

const (
	KindLost  ItemKind = "lost"
	KindFound ItemKind = "found"
)

// ItemStatus is a position in a kind's status chain.
type ItemStatus string

const (
	StatusLost     ItemStatus = "lost"
	StatusClaimed  ItemStatus = "claimed"
	StatusFound    ItemStatus = "found"
	StatusMatched  ItemStatus = "matched"
	StatusReturned ItemStatus = "returned"
)

type kindDescriptor struct {
	table     string
	namespace string
	chain     []ItemStatus
}

var kinds = map[ItemKind]kindDescriptor{
	KindLost:  {table: "lost_items", namespace: "lost", chain: []ItemStatus{StatusLost, StatusClaimed, StatusReturned}},
	KindFound: {table: "found_items", namespace: "found", chain: []ItemStatus{StatusFound, StatusMatched, StatusReturned}},
}

// Kinds lists every item kind in a stable order.
func Kinds() []ItemKind {
	return []ItemKind{KindLost, KindFound}
}

// ParseKind resolves a path or query value into a kind.
func ParseKind(raw string) (ItemKind, bool) {
	k := ItemKind(raw)
	_, ok := kinds[k]
	return k, ok
}

// Valid reports whether k is a known kind.
func (k ItemKind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Table is the relational table holding records of this kind.
func (k ItemKind) Table() string { return kinds[k].table }

// Namespace is the media namespace images of this kind are stored under.
func (k ItemKind) Namespace() string { return kinds[k].namespace }

// Chain returns a copy of the ordered status chain.
func (k ItemKind) Chain() []ItemStatus {
	chain := kinds[k].chain
	out := make([]ItemStatus, len(chain))
	copy(out, chain)
	return out
}

// InitialStatus is the status every new record of this kind starts in.
func (k ItemKind) InitialStatus() ItemStatus {
	chain := kinds[k].chain
	if len(chain) == 0 {
		return ""
	}
	return chain[0]
}

// HasStatus reports whether s belongs to this kind's chain.
func (k ItemKind) HasStatus(s ItemStatus) bool {
	for _, candidate := range kinds[k].chain {
		if candidate == s {
			return true
		}
	}
	return false
}

// Next returns the immediate successor of s. The final status has none.
func (k ItemKind) Next(s ItemStatus) (ItemStatus, bool) {
	chain := kinds[k].chain
	for i, candidate := range chain {
		if candidate == s && i+1 < len(chain) {
			return chain[i+1], true
		}
	}
	return "", false
}

// CanTransition reports whether to is exactly one step forward from from.
func (k ItemKind) CanTransition(from, to ItemStatus) bool {
	next, ok := k.Next(from)
	return ok && next == to
}

// Terminal reports whether s is the last status of the chain.
func (k ItemKind) Terminal(s ItemStatus) bool {
	chain := kinds[k].chain
	return len(chain) > 0 && chain[len(chain)-1] == s
}

// ImageList is an ordered list of image URLs stored as a Postgres text[].
type ImageList []string

// Value implements driver.Valuer.
func (l ImageList) Value() (driver.Value, error) {
	if l == nil {
		return pq.StringArray{}.Value()
	}
	return pq.StringArray(l).Value()
}

// Scan implements sql.Scanner.
func (l *ImageList) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	*l = ImageList(arr)
	return nil
}

// MarshalJSON renders nil as an empty array.
func (l ImageList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Contains reports whether url is part of the list.
func (l ImageList) Contains(url string) bool {
	for _, u := range l {
		if u == url {
			return true
		}
	}
	return false
}

// Item is a lost or found record. Lost records use OwnerID as the reporter, found records as the finder.
type Item struct {
	ID             string     `db:"id" json:"id"`
	Kind           ItemKind   `db:"-" json:"kind"`
	Title          string     `db:"title" json:"title"`
	Description    string     `db:"description" json:"description"`
	Location       string     `db:"location" json:"location"`
	OccurredAt     *time.Time `db:"occurred_at" json:"occurred_at,omitempty"`
	ContactInfo    string     `db:"contact_info" json:"contact_info"`
	Images         ImageList  `db:"images" json:"images"`
	OwnerID        string     `db:"owner_id" json:"owner_id"`
	Status         ItemStatus `db:"status" json:"status"`
	VerificationID *string    `db:"verification_id" json:"verification_id,omitempty"`
	Metadata       Metadata   `db:"metadata" json:"metadata"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// ItemPatch carries the fields a caller wants to change; nil means unchanged.
type ItemPatch struct {
	Title       *string
	Description *string
	Location    *string
	OccurredAt  *time.Time
	ContactInfo *string
	Metadata    Metadata
}

// TouchesContent reports whether the patch changes anything besides metadata.
func (p ItemPatch) TouchesContent() bool {
	return p.Title != nil || p.Description != nil || p.Location != nil || p.OccurredAt != nil || p.ContactInfo != nil
}

// ItemUpdate is the single-row write the repository applies.
// MetadataOnly writes only metadata and is the sole update allowed on returned records.
type ItemUpdate struct {
	Patch        ItemPatch
	Images       ImageList
	MetadataOnly bool
}

// ItemFilter captures listing criteria.
type ItemFilter struct {
	Status   ItemStatus
	Location string
	Query    string
	Page     int
	PageSize int
}

// Normalize applies paging defaults and bounds.
func (f *ItemFilter) Normalize(maxPageSize int) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if maxPageSize > 0 && f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
}

// Offset is the number of rows skipped for the current page.
func (f ItemFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}
