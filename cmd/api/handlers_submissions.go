package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/corrections"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/metrics"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/middleware"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/submissions"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/subtitles"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

// submitCorrection queues a subtitle correction for review. Each user may
// submit once per cooldown window.
func (api *API) submitCorrection(c *gin.Context) {
	var payload models.CorrectionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_body"})
		return
	}
	if payload.SubmittedByUserID == "" {
		if sub, ok := middleware.GetSubmitter(c); ok {
			payload.SubmittedByUserID = sub.UserID
			if payload.SubmittedByDisplayName == "" {
				payload.SubmittedByDisplayName = sub.DisplayName
			}
		}
	}
	if err := corrections.Validate(&payload); err != nil {
		api.respondError(c, err)
		return
	}

	key := payload.SubmittedByUserID
	if key == "" {
		key = c.ClientIP()
	}
	allowed, err := api.cooldown.Allow(c.Request.Context(), "correction:"+key)
	if err != nil {
		api.logger.WithUserID(key).WarnWithErr("Correction cooldown check failed", err)
		allowed = true
	}
	if !allowed {
		metrics.RecordRateLimited("correction")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
		return
	}

	sub, err := api.review.SubmitCorrection(c.Request.Context(), payload)
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"submission_id": sub.ID,
		"status":        sub.Status,
	})
}

// submitVideo queues a new video for review
func (api *API) submitVideo(c *gin.Context) {
	var payload models.VideoSubmissionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_body"})
		return
	}

	submittedBy := "ingest"
	if sub, ok := middleware.GetSubmitter(c); ok {
		submittedBy = sub.UserID
	}

	sub, err := api.review.SubmitVideo(c.Request.Context(), submittedBy, payload)
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"submission_id": sub.ID,
		"status":        sub.Status,
	})
}

// uploadSubtitle stages an .srt upload for a later video submission
func (api *API) uploadSubtitle(c *gin.Context) {
	videoID := strings.TrimSpace(c.PostForm("videoId"))
	if videoID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_video_id"})
		return
	}

	version := api.subtitles.NextVersion(videoID)
	if raw := strings.TrimSpace(c.PostForm("version")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_version"})
			return
		}
		version = v
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_file"})
		return
	}
	if header.Size > models.SubtitleMaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_file"})
		return
	}
	defer file.Close()

	key, err := api.subtitles.SaveStaged(c.Request.Context(), videoID, version, file)
	switch {
	case errors.Is(err, subtitles.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
		return
	case err != nil:
		api.respondError(c, err)
		return
	}

	api.logger.WithVideoID(videoID).WithField("storage_key", key).Info("Subtitle staged")
	c.JSON(http.StatusCreated, gin.H{"storage_key": key})
}

// Admin

func (api *API) listSubmissions(c *gin.Context) {
	f := submissions.Filter{
		Type:     c.Query("type"),
		Status:   c.DefaultQuery("status", models.SubmissionStatusPending),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", 50),
	}
	if f.Status == "all" {
		f.Status = ""
	}

	items, total, err := api.submissions.List(f)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":      items,
		"totalCount": total,
		"page":       f.Page,
		"pageSize":   f.PageSize,
	})
}

func (api *API) getSubmission(c *gin.Context) {
	sub, err := api.submissions.Get(c.Param("id"))
	if errors.Is(err, submissions.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// previewSubmissionSubtitle returns the subtitle attached to a video
// submission: the staged upload, or a version already in the store.
func (api *API) previewSubmissionSubtitle(c *gin.Context) {
	sub, err := api.submissions.Get(c.Param("id"))
	if errors.Is(err, submissions.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		api.respondError(c, err)
		return
	}

	var content string
	switch {
	case sub.Payload != nil && sub.Payload.SubtitleStorageKey != "":
		content, err = api.subtitles.ReadStaged(c.Request.Context(), sub.Payload.SubtitleStorageKey)
	case sub.Payload != nil && sub.Payload.SubtitleURL != "":
		id, version, ok := subtitles.ParsePublicURL(sub.Payload.SubtitleURL)
		if !ok {
			err = subtitles.ErrNotFound
			break
		}
		content, err = api.subtitles.Read(id, version)
	case sub.Correction != nil:
		content, err = api.subtitles.Read(sub.Correction.VideoID, sub.Correction.SubtitleVersion)
	default:
		err = subtitles.ErrNotFound
	}
	if errors.Is(err, subtitles.ErrNotFound) || errors.Is(err, subtitles.ErrInvalidKey) {
		c.JSON(http.StatusNotFound, gin.H{"error": "subtitle_not_found"})
		return
	}
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, models.SubtitleContentType, []byte(content))
}

// reviewSubmission approves or rejects a pending submission
func (api *API) reviewSubmission(c *gin.Context) {
	var req struct {
		Action string `json:"action"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_action"})
		return
	}

	reviewer, _ := middleware.GetUserID(c)
	sub, err := api.review.Review(c.Request.Context(), c.Param("id"), reviewer, req.Action, req.Reason)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": sub.Status})
}
