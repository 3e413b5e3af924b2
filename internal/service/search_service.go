package service

import (
	"context"
	"strings"

	"github.com/noah-isme/backtrackers-api/internal/dto"
	"github.com/noah-isme/backtrackers-api/internal/models"
	appErrors "github.com/noah-isme/backtrackers-api/pkg/errors"
)

type itemLister interface {
	List(ctx context.Context, kind models.ItemKind, filter models.ItemFilter) (*dto.ItemPage, bool, error)
}

// SearchService runs a keyword query against every collection independently.
type SearchService struct {
	items      itemLister
	maxResults int
}

// NewSearchService constructs a SearchService capped at maxResults per collection.
func NewSearchService(items itemLister, maxResults int) *SearchService {
	if maxResults <= 0 {
		maxResults = 50
	}
	return &SearchService{items: items, maxResults: maxResults}
}

// Search matches keyword case-insensitively against title and description.
// Results are grouped per kind without cross-collection ranking; the boolean reports an all-cached answer.
func (s *SearchService) Search(ctx context.Context, keyword string) (*dto.SearchResult, bool, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "search keyword is required")
	}

	result := &dto.SearchResult{}
	allHit := true
	for _, kind := range models.Kinds() {
		page, hit, err := s.items.List(ctx, kind, models.ItemFilter{Query: keyword, Page: 1, PageSize: s.maxResults})
		if err != nil {
			return nil, false, err
		}
		allHit = allHit && hit
		switch kind {
		case models.KindLost:
			result.Lost = page.Items
		case models.KindFound:
			result.Found = page.Items
		}
	}
	return result, allHit, nil
}
