package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/backtrackers-api/internal/middleware"
	"github.com/noah-isme/backtrackers-api/internal/models"
	appErrors "github.com/noah-isme/backtrackers-api/pkg/errors"
	"github.com/noah-isme/backtrackers-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		return nil
	}
	return claims
}

// kindParam resolves the :kind path segment; unknown kinds are answered with 404.
func kindParam(c *gin.Context) (models.ItemKind, bool) {
	kind, ok := models.ParseKind(c.Param("kind"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown item kind"))
		return "", false
	}
	return kind, true
}
