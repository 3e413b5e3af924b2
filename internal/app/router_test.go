package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backtrackers-api/internal/models"
	"github.com/noah-isme/backtrackers-api/internal/service"
	"github.com/noah-isme/backtrackers-api/pkg/config"
)

const testSecret = "router-secret"

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Env: config.EnvDevelopment, APIPrefix: "/api/v1"}
	return NewRouter(cfg, nil, Services{
		Auth:    service.NewAuthService(nil, nil, nil, service.AuthConfig{AccessTokenSecret: testSecret}),
		Metrics: service.NewMetricsService(),
	})
}

func bearer(t *testing.T, role models.UserRole) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID: "u1",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func do(r *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRouterRegistersItemRoutes(t *testing.T) {
	routes := map[string]bool{}
	for _, info := range testRouter(t).Routes() {
		routes[info.Method+" "+info.Path] = true
	}
	for _, want := range []string{
		"POST /api/v1/auth/register",
		"POST /api/v1/auth/login",
		"GET /api/v1/auth/me",
		"GET /api/v1/search",
		"GET /api/v1/items/:kind",
		"POST /api/v1/items/:kind",
		"GET /api/v1/items/:kind/:id",
		"PUT /api/v1/items/:kind/:id",
		"DELETE /api/v1/items/:kind/:id",
		"PUT /api/v1/items/:kind/:id/transition",
		"PUT /api/v1/items/:kind/:id/mark-found",
		"GET /api/v1/items/:kind/:id/verifications",
		"POST /api/v1/verifications",
		"GET /api/v1/verifications/:id",
		"PUT /api/v1/verifications/:id/approve",
		"PUT /api/v1/verifications/:id/reject",
		"POST /api/v1/verifications/:id/messages",
		"GET /api/v1/verifications/:id/messages",
		"GET /api/v1/exports/items/:kind",
		"GET /health",
		"GET /ready",
		"GET /metrics",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}

func TestRouterGuards(t *testing.T) {
	r := testRouter(t)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/metrics", "").Code)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/v1/items/lost", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodDelete, "/api/v1/items/found/f1", "Bearer nonsense").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/v1/verifications", "").Code)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/items/stolen", "").Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/v1/exports/items/lost", bearer(t, models.RoleMember)).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/exports/items/stolen", bearer(t, models.RoleAdmin)).Code)
}
