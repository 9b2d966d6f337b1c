package main

import (
	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/middleware"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/tracing"
)

func setupRouter(api *API) *gin.Engine {
	router := gin.New()

	// Apply global middleware
	router.Use(gin.Recovery())
	router.Use(tracing.Middleware())
	router.Use(middleware.Logger(api.logger))
	router.Use(middleware.Submitter(api.cfg.Auth.SubmitterSalt, api.logger))
	router.Use(middleware.RateLimit(api.limiter))

	// Health check
	router.GET("/health", api.healthCheck)

	// Public routes
	public := router.Group("/api")
	{
		public.GET("/videos", api.listVideos)
		public.GET("/videos/:id", api.getVideo)
		public.GET("/subtitles/:id/:file", api.serveSubtitle)

		// Ratings
		public.GET("/videos/:id/ratings", api.getRatings)
		public.POST("/videos/:id/ratings", api.submitRating)
		public.DELETE("/videos/:id/ratings", api.deleteRating)
	}

	// Ingest routes (require an allow-listed API key)
	ingest := router.Group("/api")
	ingest.Use(middleware.APIKeyAuth(middleware.StaticKeys(api.cfg.Auth.APIKeys)))
	{
		ingest.POST("/submissions/subtitle-corrections", api.submitCorrection)
		ingest.POST("/submissions", api.submitVideo)
		ingest.POST("/submissions/videos", api.submitVideo)
		ingest.POST("/uploads/subtitles", api.uploadSubtitle)
	}

	// Admin routes (require an admin bearer token)
	admin := router.Group("/api/admin")
	admin.Use(middleware.AdminAuth(api.cfg.Auth.AdminUserIDs))
	{
		// Submissions
		admin.GET("/submissions", api.listSubmissions)
		admin.GET("/submissions/:id", api.getSubmission)
		admin.GET("/submissions/:id/subtitle", api.previewSubmissionSubtitle)
		admin.PATCH("/submissions/:id", api.reviewSubmission)

		// Videos
		admin.GET("/videos/hidden", api.listHiddenVideos)
		admin.GET("/videos/:id", api.adminGetVideo)
		admin.PATCH("/videos/:id/hide", api.hideVideo)
		admin.PATCH("/videos/:id/show", api.showVideo)
		admin.PATCH("/videos/:id/tags", api.updateVideoTags)
		admin.PATCH("/videos/:id/duration", api.setVideoDuration)
		admin.DELETE("/videos/:id", api.deleteVideo)

		// Subtitle versions
		admin.GET("/videos/:id/subtitles", api.listSubtitleVersions)
		admin.GET("/videos/:id/subtitles/:version/diff", api.diffSubtitleVersion)
		admin.POST("/videos/:id/subtitles/:version/promote", api.promoteSubtitleVersion)
		admin.DELETE("/videos/:id/subtitles/:version", api.deleteSubtitleVersion)

		// Ratings
		admin.GET("/ratings/recent", api.recentRatings)

		// Creator mappings, also served under the older /creators/mappings path
		for _, prefix := range []string{"/creator-mappings", "/creators/mappings"} {
			mappings := admin.Group(prefix)
			mappings.GET("", api.listCreatorMappings)
			mappings.POST("", api.createCreatorMapping)
			mappings.POST("/reapply", api.reapplyCreatorMappings)
			mappings.PUT("/:id", api.updateCreatorMapping)
			mappings.DELETE("/:id", api.deleteCreatorMapping)
		}

		// Webhooks
		admin.GET("/webhooks/deliveries", api.listWebhookDeliveries)
	}

	return router
}
