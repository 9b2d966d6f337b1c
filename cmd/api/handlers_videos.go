package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/catalog"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/middleware"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/ratings"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/review"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/subtitles"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

const subtitleCacheControl = "public, max-age=300"

// videoResponse is the API shape of a catalog entry
type videoResponse struct {
	ID              string                       `json:"id"`
	Title           string                       `json:"title"`
	Creator         string                       `json:"creator,omitempty"`
	CreatorOriginal string                       `json:"creatorOriginal,omitempty"`
	Description     string                       `json:"description,omitempty"`
	Tags            []string                     `json:"tags"`
	ReleaseDate     string                       `json:"releaseDate,omitempty"`
	SubtitleURL     string                       `json:"subtitleUrl,omitempty"`
	DurationSeconds *float64                     `json:"durationSeconds,omitempty"`
	Contributors    []models.SubtitleContributor `json:"subtitleContributors,omitempty"`

	// Admin only
	Submitter      string `json:"submitter,omitempty"`
	SubmissionDate string `json:"submissionDate,omitempty"`
	Hidden         bool   `json:"hidden,omitempty"`
	HiddenReason   string `json:"hiddenReason,omitempty"`
	HiddenAt       string `json:"hiddenAt,omitempty"`
}

func toVideoResponse(v models.Video, admin bool) videoResponse {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	resp := videoResponse{
		ID:              v.ID,
		Title:           v.Title,
		Creator:         v.Creator,
		CreatorOriginal: v.CreatorOriginal,
		Description:     v.Description,
		Tags:            tags,
		ReleaseDate:     v.ReleaseDate,
		SubtitleURL:     v.SubtitleURL,
		DurationSeconds: v.DurationSeconds,
		Contributors:    v.Contributors,
	}
	if admin {
		resp.Submitter = v.Submitter
		resp.SubmissionDate = v.SubmissionDate
		resp.Hidden = v.Hidden
		resp.HiddenReason = v.HiddenReason
		resp.HiddenAt = v.HiddenAt
	}
	return resp
}

func toVideoResponses(videos []models.Video, admin bool) []videoResponse {
	out := make([]videoResponse, 0, len(videos))
	for _, v := range videos {
		out = append(out, toVideoResponse(v, admin))
	}
	return out
}

// respondError writes {"error": code} with the status the workflow assigns to err
func (api *API) respondError(c *gin.Context, err error) {
	status, code := review.Status(err)
	if status >= http.StatusInternalServerError {
		api.logger.WithField("path", c.FullPath()).ErrorWithErr("Request failed", err)
	}
	c.JSON(status, gin.H{"error": code})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func versionParam(c *gin.Context) (int, bool) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_version"})
		return 0, false
	}
	return version, true
}

// listVideos returns a page of public videos
func (api *API) listVideos(c *gin.Context) {
	tag := c.Query("tag")
	if tag == "" {
		tag = c.Query("race")
	}
	q := catalog.ListQuery{
		Query:    c.Query("q"),
		Tag:      tag,
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", 0),
	}
	items, total := api.catalog.List(q)

	page, size := catalog.NormalizePage(q.Page, q.PageSize)
	c.JSON(http.StatusOK, gin.H{
		"items":      toVideoResponses(items, false),
		"totalCount": total,
		"page":       page,
		"pageSize":   size,
	})
}

// getVideo returns one public video; hidden videos read as missing
func (api *API) getVideo(c *gin.Context) {
	video, ok := api.catalog.Get(c.Param("id"))
	if !ok || video.Hidden {
		c.JSON(http.StatusNotFound, gin.H{"error": "video_not_found"})
		return
	}
	c.JSON(http.StatusOK, toVideoResponse(video, false))
}

// serveSubtitle streams /api/subtitles/{id}/{version}.srt
func (api *API) serveSubtitle(c *gin.Context) {
	file := c.Param("file")
	if !strings.HasSuffix(file, models.SubtitleFileExtension) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	version, err := strconv.Atoi(strings.TrimSuffix(file, models.SubtitleFileExtension))
	if err != nil || version <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	content, err := api.subtitles.Read(c.Param("id"), version)
	if errors.Is(err, subtitles.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		api.respondError(c, err)
		return
	}

	c.Header("Cache-Control", subtitleCacheControl)
	c.Data(http.StatusOK, models.SubtitleContentType, []byte(content))
}

// Ratings

func ratingVersion(c *gin.Context) int {
	v := queryInt(c, "version", 1)
	if v < 1 {
		v = 1
	}
	return v
}

func (api *API) getRatings(c *gin.Context) {
	userID := ""
	if sub, ok := middleware.GetSubmitter(c); ok {
		userID = sub.UserID
	}
	c.JSON(http.StatusOK, api.ratings.Summary(c.Param("id"), ratingVersion(c), userID))
}

func (api *API) submitRating(c *gin.Context) {
	sub, ok := middleware.GetSubmitter(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user_required"})
		return
	}

	var req struct {
		Version int                `json:"version"`
		Value   models.RatingValue `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}
	if req.Version < 1 {
		req.Version = 1
	}
	req.Value = models.RatingValue(strings.ToLower(strings.TrimSpace(string(req.Value))))

	videoID := c.Param("id")
	if _, exists := api.catalog.Get(videoID); !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "video_not_found"})
		return
	}

	summary, err := api.ratings.Submit(sub.UserID, sub.DisplayName, videoID, req.Version, req.Value)
	switch {
	case errors.Is(err, ratings.ErrInvalidValue):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_rating"})
		return
	case errors.Is(err, ratings.ErrInvalidVersion):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_version"})
		return
	case err != nil:
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (api *API) deleteRating(c *gin.Context) {
	sub, ok := middleware.GetSubmitter(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user_required"})
		return
	}
	summary, err := api.ratings.Remove(sub.UserID, c.Param("id"), ratingVersion(c))
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (api *API) recentRatings(c *gin.Context) {
	c.JSON(http.StatusOK, api.ratings.Recent(queryInt(c, "limit", 50)))
}
