package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/backtrackers-api/internal/models"
	appErrors "github.com/noah-isme/backtrackers-api/pkg/errors"
	"github.com/noah-isme/backtrackers-api/pkg/export"
)

const (
	exportPageSize = 200
	exportMaxRows  = 5000
)

type exportSource interface {
	List(ctx context.Context, kind models.ItemKind, filter models.ItemFilter) ([]models.Item, int, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportFile is a rendered listing ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// ExportService renders a kind's listing as CSV or PDF for administrators.
type ExportService struct {
	source    exportSource
	renderers map[string]renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService with the csv and pdf renderers.
func NewExportService(source exportSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		source: source,
		renderers: map[string]renderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		logger: logger,
		now:    time.Now,
	}
}

var exportColumns = []string{"id", "title", "status", "location", "occurred_at", "contact_info", "owner_id", "images", "metadata", "created_at"}

// Export renders every item of kind matching filter, newest first, up to a fixed row cap.
func (s *ExportService) Export(ctx context.Context, kind models.ItemKind, filter models.ItemFilter, format string) (*ExportFile, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown item kind")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	r, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	rows := make([]map[string]string, 0)
	filter.PageSize = exportPageSize
	for filter.Page = 1; len(rows) < exportMaxRows; filter.Page++ {
		items, total, err := s.source.List(ctx, kind, filter)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load items for export")
		}
		for _, item := range items {
			rows = append(rows, exportRow(item))
		}
		if len(items) < exportPageSize || len(rows) >= total {
			break
		}
	}
	if len(rows) > exportMaxRows {
		rows = rows[:exportMaxRows]
	}

	now := s.now().UTC()
	body, err := r.Render(export.Dataset{
		Title:   fmt.Sprintf("%s items (%s)", capitalize(string(kind)), now.Format("2006-01-02 15:04 MST")),
		Columns: exportColumns,
		Rows:    rows,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}
	s.logger.Info("items exported", zap.String("kind", string(kind)), zap.String("format", format), zap.Int("rows", len(rows)))

	return &ExportFile{
		Filename:    fmt.Sprintf("%s-items-%s.%s", kind, now.Format("20060102-150405"), r.Extension()),
		ContentType: r.ContentType(),
		Body:        body,
		Rows:        len(rows),
	}, nil
}

func exportRow(item models.Item) map[string]string {
	occurred := ""
	if item.OccurredAt != nil {
		occurred = item.OccurredAt.UTC().Format("2006-01-02")
	}
	keys := make([]string, 0, len(item.Metadata))
	for k := range item.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	meta := make([]string, 0, len(keys))
	for _, k := range keys {
		meta = append(meta, k+"="+item.Metadata[k].Text())
	}
	return map[string]string{
		"id":           item.ID,
		"title":        item.Title,
		"status":       string(item.Status),
		"location":     item.Location,
		"occurred_at":  occurred,
		"contact_info": item.ContactInfo,
		"owner_id":     item.OwnerID,
		"images":       strings.Join(item.Images, " "),
		"metadata":     strings.Join(meta, "; "),
		"created_at":   item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
