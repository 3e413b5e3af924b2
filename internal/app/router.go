package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/backtrackers-api/internal/handler"
	"github.com/noah-isme/backtrackers-api/internal/middleware"
	"github.com/noah-isme/backtrackers-api/internal/models"
	"github.com/noah-isme/backtrackers-api/internal/service"
	"github.com/noah-isme/backtrackers-api/pkg/config"
	"github.com/noah-isme/backtrackers-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/backtrackers-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/backtrackers-api/pkg/middleware/requestid"
)

// Services are the constructed collaborators the router mounts.
type Services struct {
	Auth          *service.AuthService
	Items         *service.ItemService
	Verifications *service.VerificationService
	Search        *service.SearchService
	Export        *service.ExportService
	Metrics       *service.MetricsService
	Audit         middleware.AuditWriter
	Ready         map[string]handler.Pinger
}

// NewRouter builds the gin engine with the public, member and admin route groups.
func NewRouter(cfg *config.Config, log *zap.Logger, svc Services) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(svc.Metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(svc.Metrics, svc.Ready)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Media.StorageDir != "" {
		r.Static("/media", cfg.Media.StorageDir)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(svc.Auth)
	itemHandler := handler.NewItemHandler(svc.Items, handler.UploadConfig{
		TempDir:      cfg.Media.TempDir,
		MaxFileSize:  cfg.Media.MaxFileSizeBytes,
		MaxFiles:     cfg.Media.MaxImages,
		AllowedMIMEs: cfg.Media.AllowedMIMEs,
	})
	verificationHandler := handler.NewVerificationHandler(svc.Verifications)
	searchHandler := handler.NewSearchHandler(svc.Search)
	exportHandler := handler.NewExportHandler(svc.Export)

	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(svc.Audit, log, action, resource)
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", middleware.OptionalJWT(svc.Auth), authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(svc.Auth), authHandler.Me)

	api.GET("/search", searchHandler.Search)

	items := api.Group("/items/:kind")
	items.GET("", itemHandler.List)
	items.GET("/:id", itemHandler.Get)

	secured := items.Group("", middleware.JWT(svc.Auth))
	secured.POST("", audit(models.AuditActionItemCreate, "items"), itemHandler.Create)
	secured.PUT("/:id", itemHandler.Update)
	secured.DELETE("/:id", audit(models.AuditActionItemDelete, "items"), itemHandler.Delete)
	secured.PUT("/:id/transition", audit(models.AuditActionItemTransition, "items"), itemHandler.Transition)
	secured.PUT("/:id/mark-found", audit(models.AuditActionItemPromote, "items"), itemHandler.MarkFound)
	secured.GET("/:id/verifications", verificationHandler.ListForItem)

	verifications := api.Group("/verifications", middleware.JWT(svc.Auth))
	verifications.POST("", audit(models.AuditActionVerificationCreate, "verifications"), verificationHandler.Create)
	verifications.GET("/:id", verificationHandler.Get)
	verifications.PUT("/:id/approve", audit(models.AuditActionVerificationDecide, "verifications"), verificationHandler.Approve)
	verifications.PUT("/:id/reject", audit(models.AuditActionVerificationDecide, "verifications"), verificationHandler.Reject)
	verifications.POST("/:id/messages", audit(models.AuditActionVerificationMessage, "verifications"), verificationHandler.PostMessage)
	verifications.GET("/:id/messages", verificationHandler.ListMessages)

	exports := api.Group("/exports", middleware.JWT(svc.Auth), middleware.RequireRoles(models.RoleAdmin))
	exports.GET("/items/:kind", exportHandler.Items)

	return r
}
