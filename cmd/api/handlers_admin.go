package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/catalog"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/creators"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/middleware"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

// catalogError maps catalog store failures onto API error bodies
func (api *API) catalogError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "video_not_found"})
	case errors.Is(err, catalog.ErrInvalidDuration):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_duration"})
	default:
		api.respondError(c, err)
	}
}

// Videos

func (api *API) listHiddenVideos(c *gin.Context) {
	q := catalog.ListQuery{
		Query:      c.Query("q"),
		OnlyHidden: true,
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "pageSize", 0),
	}
	items, total := api.catalog.List(q)

	page, size := catalog.NormalizePage(q.Page, q.PageSize)
	c.JSON(http.StatusOK, gin.H{
		"items":      toVideoResponses(items, true),
		"totalCount": total,
		"page":       page,
		"pageSize":   size,
	})
}

func (api *API) adminGetVideo(c *gin.Context) {
	video, ok := api.catalog.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "video_not_found"})
		return
	}
	c.JSON(http.StatusOK, toVideoResponse(video, true))
}

func (api *API) hideVideo(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	// The reason is optional, so an empty body is fine
	_ = c.ShouldBindJSON(&req)

	video, err := api.catalog.Hide(c.Param("id"), req.Reason, time.Now())
	if err != nil {
		api.catalogError(c, err)
		return
	}
	api.logger.WithVideoID(video.ID).WithField("reason", video.HiddenReason).Info("Video hidden")
	c.JSON(http.StatusOK, toVideoResponse(video, true))
}

func (api *API) showVideo(c *gin.Context) {
	video, err := api.catalog.Show(c.Param("id"))
	if err != nil {
		api.catalogError(c, err)
		return
	}
	api.logger.WithVideoID(video.ID).Info("Video shown")
	c.JSON(http.StatusOK, toVideoResponse(video, true))
}

// updateVideoTags adds, removes or replaces tags
func (api *API) updateVideoTags(c *gin.Context) {
	var req struct {
		Action string   `json:"action"`
		Tags   []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}

	id := c.Param("id")
	var (
		video models.Video
		err   error
	)
	switch strings.ToLower(req.Action) {
	case "add":
		video, err = api.catalog.AddTags(id, req.Tags)
	case "remove":
		video, err = api.catalog.RemoveTags(id, req.Tags)
	case "set", "":
		video, err = api.catalog.SetTags(id, req.Tags)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_action"})
		return
	}
	if err != nil {
		api.catalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, toVideoResponse(video, true))
}

func (api *API) setVideoDuration(c *gin.Context) {
	var req struct {
		DurationSeconds *float64 `json:"durationSeconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}

	video, err := api.catalog.SetDuration(c.Param("id"), req.DurationSeconds)
	if err != nil {
		api.catalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, toVideoResponse(video, true))
}

func (api *API) deleteVideo(c *gin.Context) {
	id := c.Param("id")
	if err := api.catalog.Delete(id); err != nil {
		api.catalogError(c, err)
		return
	}
	api.logger.WithVideoID(id).Info("Video deleted")
	c.Status(http.StatusNoContent)
}

// Subtitle versions

func (api *API) listSubtitleVersions(c *gin.Context) {
	videoID := c.Param("id")
	if _, ok := api.catalog.Get(videoID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "video_not_found"})
		return
	}

	versions, err := api.review.ListVersions(videoID)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": versions})
}

// diffSubtitleVersion returns a unified diff against the previous version
func (api *API) diffSubtitleVersion(c *gin.Context) {
	version, ok := versionParam(c)
	if !ok {
		return
	}
	text, err := api.review.Diff(c.Request.Context(), c.Param("id"), version)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

func (api *API) promoteSubtitleVersion(c *gin.Context) {
	version, ok := versionParam(c)
	if !ok {
		return
	}
	actor, _ := middleware.GetUserID(c)
	video, err := api.review.Promote(c.Request.Context(), c.Param("id"), version, actor)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toVideoResponse(video, true))
}

func (api *API) deleteSubtitleVersion(c *gin.Context) {
	version, ok := versionParam(c)
	if !ok {
		return
	}
	if err := api.review.DeleteVersion(c.Request.Context(), c.Param("id"), version); err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Creator mappings

type creatorMappingRequest struct {
	Source    string `json:"source"`
	Canonical string `json:"canonical"`
	Notes     string `json:"notes"`
}

func (api *API) creatorError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, creators.ErrSourceRequired), errors.Is(err, creators.ErrCanonicalRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, creators.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, creators.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		api.respondError(c, err)
	}
}

func (api *API) listCreatorMappings(c *gin.Context) {
	page := queryInt(c, "page", 1)
	size := queryInt(c, "pageSize", 50)
	items, total, err := api.creators.List(c.Query("q"), page, size)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":      items,
		"totalCount": total,
		"page":       page,
		"pageSize":   size,
	})
}

func (api *API) createCreatorMapping(c *gin.Context) {
	var req creatorMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	actor, _ := middleware.GetUserID(c)
	mapping, err := api.creators.Create(req.Source, req.Canonical, req.Notes, actor)
	if err != nil {
		api.creatorError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapping)
}

func (api *API) updateCreatorMapping(c *gin.Context) {
	var req creatorMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	mapping, err := api.creators.Update(c.Param("id"), req.Source, req.Canonical, req.Notes)
	if err != nil {
		api.creatorError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapping)
}

func (api *API) deleteCreatorMapping(c *gin.Context) {
	if err := api.creators.Delete(c.Param("id")); err != nil {
		api.creatorError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (api *API) reapplyCreatorMappings(c *gin.Context) {
	n, err := api.review.ReapplyCreatorMappings(c.Request.Context())
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated_videos": n})
}

// Webhooks

func (api *API) listWebhookDeliveries(c *gin.Context) {
	if api.webhooks == nil {
		c.JSON(http.StatusOK, gin.H{"items": []models.WebhookDelivery{}})
		return
	}
	items, err := api.webhooks.Deliveries(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		api.respondError(c, err)
		return
	}
	if items == nil {
		items = []models.WebhookDelivery{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
