package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/backtrackers-api/internal/dto"
	"github.com/noah-isme/backtrackers-api/internal/middleware"
	"github.com/noah-isme/backtrackers-api/pkg/response"
)

type searchService interface {
	Search(ctx context.Context, keyword string) (*dto.SearchResult, bool, error)
}

// SearchHandler exposes the cross-collection keyword search.
type SearchHandler struct {
	service searchService
}

// NewSearchHandler constructs a SearchHandler.
func NewSearchHandler(svc searchService) *SearchHandler {
	return &SearchHandler{service: svc}
}

// Search godoc
// @Summary Search lost and found items
// @Description Case-insensitive substring match on title and description, grouped per collection.
// @Tags Search
// @Produce json
// @Param q query string true "Keyword"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	result, hit, err := h.service.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	middleware.SetMeta(c, "total", len(result.Lost)+len(result.Found))
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}
