package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"sellhub/storage/internal/config"
	"sellhub/storage/internal/media/compressor"
	"sellhub/storage/internal/middleware"
	"sellhub/storage/internal/repository"
	"sellhub/storage/internal/service"
)

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	orch      *service.Orchestrator
	lifecycle *service.Lifecycle
	reporter  *service.Reporter
	db        *pgxpool.Pool
	cache     *redis.Client
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, backends service.Backends, cfg *config.AppConfig) HandlerSet {
	photoRepo := repository.NewPhotoRepository(db)
	eventRepo := repository.NewEventRepository(db)
	comp := compressor.New(compressor.DefaultMaxDimension, compressor.DefaultJPEGQuality)

	orch := service.NewOrchestrator(photoRepo, eventRepo, backends, comp, cfg, log)
	lifecycle := service.NewLifecycle(orch, photoRepo, cache, cfg, log)
	reporter := service.NewReporter(photoRepo, eventRepo, cfg)

	return HandlerSet{
		log:       log,
		cfg:       cfg,
		orch:      orch,
		lifecycle: lifecycle,
		reporter:  reporter,
		db:        db,
		cache:     cache,
	}
}

// Lifecycle exposes the engine so the cron scheduler can trigger passes.
func (h HandlerSet) Lifecycle() *service.Lifecycle {
	return h.lifecycle
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	st := v1.Group("/storage")
	{
		st.POST("/upload", h.UploadPhoto)
		st.POST("/drafts/:draftId/publish", h.PublishDraft)

		st.GET("/photos", h.ListPhotos)
		st.GET("/photo/:id/url", h.PhotoURL)
		st.GET("/photo/:id/metadata", h.PhotoMetadata)
		st.DELETE("/photo/:id", h.DeletePhoto)

		st.GET("/stats", h.StorageStats)
		st.GET("/stats/breakdown", h.CostBreakdown)
		st.GET("/metrics/lifecycle", h.LifecycleMetrics)
		st.GET("/metrics/recommendations", h.Recommendations)

		admin := st.Group("/lifecycle")
		admin.Use(middleware.Admin(h.cfg))
		admin.POST("/run-now", h.RunLifecycleNow)
	}
}
