package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/backtrackers-api/internal/models"
	"github.com/noah-isme/backtrackers-api/internal/service"
	"github.com/noah-isme/backtrackers-api/pkg/response"
)

type exportService interface {
	Export(ctx context.Context, kind models.ItemKind, filter models.ItemFilter, format string) (*service.ExportFile, error)
}

// ExportHandler streams item listings as CSV or PDF documents.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Items godoc
// @Summary Export items
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param kind path string true "lost or found"
// @Param format query string false "csv (default) or pdf"
// @Param status query string false "Exact status"
// @Param location query string false "Location substring"
// @Param q query string false "Keyword"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /exports/items/{kind} [get]
func (h *ExportHandler) Items(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	file, err := h.service.Export(c.Request.Context(), kind, models.ItemFilter{
		Status:   models.ItemStatus(c.Query("status")),
		Location: c.Query("location"),
		Query:    c.Query("q"),
	}, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
