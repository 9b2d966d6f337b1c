package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/config"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/logging"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/middleware"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/subtitles"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

const (
	testAPIKey  = "ingest-key"
	testAdminID = "admin-1"
	baseSRT     = "1\n00:00:01,000 --> 00:00:02,000\nHello!\n"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	api    *API
	router *gin.Engine
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Data: config.DataConfig{
			CatalogPath:         filepath.Join(dir, "videos.json"),
			RatingsPath:         filepath.Join(dir, "ratings.json"),
			SubmissionsPath:     filepath.Join(dir, "submissions.json"),
			CreatorMappingsPath: filepath.Join(dir, "creator_mappings.json"),
			SubtitlesRoot:       filepath.Join(dir, "subtitles"),
			StagingRoot:         filepath.Join(dir, "staging"),
		},
		Auth: config.AuthConfig{
			JWTSecret:          "test-secret",
			APIKeys:            []string{testAPIKey},
			AdminUserIDs:       []string{testAdminID},
			SubmitterSalt:      "salt",
			CorrectionCooldown: time.Minute,
			RateLimit:          1000,
			RateBurst:          1000,
		},
	}
	middleware.SetJWTSecret(cfg.Auth.JWTSecret)

	api, _, err := newAPI(context.Background(), cfg, logging.NewNopLogger())
	require.NoError(t, err)

	token, err := middleware.GenerateToken(testAdminID, models.UserRoleAdmin, time.Hour)
	require.NoError(t, err)

	return &testServer{api: api, router: setupRouter(api), token: token}
}

func (s *testServer) seedVideo(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, s.api.subtitles.Write(id, 1, baseSRT))
	_, err := s.api.catalog.Upsert(models.Video{ID: id, Title: "Video " + id, SubtitleURL: subtitles.PublicURL(id, 1)})
	require.NoError(t, err)
}

type requestOption func(*http.Request)

func withAPIKey(r *http.Request) { r.Header.Set("X-Api-Key", testAPIKey) }

func withUser(id, name string) requestOption {
	return func(r *http.Request) {
		r.Header.Set("X-User-Id", id)
		r.Header.Set("X-User-Name", name)
	}
}

func (s *testServer) withAdmin(r *http.Request) {
	r.Header.Set("Authorization", "Bearer "+s.token)
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func correctionBody(videoID string, version int, userID string) map[string]interface{} {
	return map[string]interface{}{
		"video_id":                  videoID,
		"subtitle_version":          version,
		"submitted_by_user_id":      userID,
		"submitted_by_display_name": "User " + userID,
		"cues": []map[string]interface{}{
			{"sequence": 1, "start_seconds": 1, "end_seconds": 2, "original_text": "Hello!", "updated_text": "Hi!"},
		},
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestCorrectionFlow(t *testing.T) {
	s := newTestServer(t)
	s.seedVideo(t, "vid1")

	w := s.do(t, http.MethodPost, "/api/submissions/subtitle-corrections", correctionBody("vid1", 1, "u1"), withAPIKey)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, models.SubmissionStatusPending, created["status"])
	id, _ := created["submission_id"].(string)
	require.NotEmpty(t, id)

	w = s.do(t, http.MethodGet, "/api/admin/submissions", nil, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["totalCount"])

	w = s.do(t, http.MethodPatch, "/api/admin/submissions/"+id, map[string]string{"action": "approve"}, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.SubmissionStatusApproved, decode(t, w)["status"])

	// A second review finds nothing pending
	w = s.do(t, http.MethodPatch, "/api/admin/submissions/"+id, map[string]string{"action": "approve"}, s.withAdmin)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_pending", decode(t, w)["error"])

	w = s.do(t, http.MethodGet, "/api/videos/vid1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	video := decode(t, w)
	assert.Equal(t, "vid1", video["id"])
	assert.Equal(t, "/api/subtitles/vid1/2.srt", video["subtitleUrl"])
	assert.NotContains(t, video, "submitter")

	w = s.do(t, http.MethodGet, "/api/subtitles/vid1/2.srt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=300", w.Header().Get("Cache-Control"))
	assert.Equal(t, models.SubtitleContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Hi!")

	w = s.do(t, http.MethodGet, "/api/subtitles/vid1/1.srt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hello!")
}

func TestSubmitCorrectionErrors(t *testing.T) {
	s := newTestServer(t)
	s.seedVideo(t, "vid1")

	w := s.do(t, http.MethodPost, "/api/submissions/subtitle-corrections", nil, withAPIKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_body", decode(t, w)["error"])

	body := correctionBody("vid1", 1, "u1")
	body["cues"] = []interface{}{}
	w = s.do(t, http.MethodPost, "/api/submissions/subtitle-corrections", body, withAPIKey)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_cues", decode(t, w)["error"])

	w = s.do(t, http.MethodPost, "/api/submissions/subtitle-corrections", correctionBody("nope", 1, "u2"), withAPIKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "video_not_found", decode(t, w)["error"])
}

func TestCorrectionCooldown(t *testing.T) {
	s := newTestServer(t)
	s.seedVideo(t, "vid1")

	w := s.do(t, http.MethodPost, "/api/submissions/subtitle-corrections", correctionBody("vid1", 1, "u1"), withAPIKey)
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/api/submissions/subtitle-corrections", correctionBody("vid1", 1, "u1"), withAPIKey)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", decode(t, w)["error"])

	w = s.do(t, http.MethodPost, "/api/submissions/subtitle-corrections", correctionBody("vid1", 1, "u2"), withAPIKey)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/submissions/subtitle-corrections", correctionBody("vid1", 1, "u1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/submissions/subtitle-corrections", correctionBody("vid1", 1, "u1"), func(r *http.Request) {
		r.Header.Set("X-Api-Key", "wrong")
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/submissions", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/submissions", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not-a-token")
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, err := middleware.GenerateToken("someone", models.UserRoleUser, time.Hour)
	require.NoError(t, err)
	w = s.do(t, http.MethodGet, "/api/admin/submissions", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+other)
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestVideoSubmissionWithUpload(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("videoId", "new1"))
	fw, err := mw.CreateFormFile("file", "sub.srt")
	require.NoError(t, err)
	_, err = fw.Write([]byte(baseSRT))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads/subtitles", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	withAPIKey(req)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	key := decode(t, w)["storage_key"]
	assert.Equal(t, "new1/v1.srt", key)

	w = s.do(t, http.MethodPost, "/api/submissions", map[string]interface{}{
		"youtube_id":           "new1",
		"title":                "New Video",
		"subtitle_storage_key": key,
	}, withAPIKey)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["submission_id"].(string)

	w = s.do(t, http.MethodGet, "/api/admin/submissions/"+id+"/subtitle", nil, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, baseSRT, w.Body.String())

	w = s.do(t, http.MethodPatch, "/api/admin/submissions/"+id, map[string]string{"action": "approve"}, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/videos?q=new", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)
	assert.EqualValues(t, 1, list["totalCount"])
	assert.EqualValues(t, 24, list["pageSize"])
}

func TestHiddenVideos(t *testing.T) {
	s := newTestServer(t)
	s.seedVideo(t, "vid1")

	w := s.do(t, http.MethodPatch, "/api/admin/videos/vid1/hide", map[string]string{"reason": "dmca"}, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dmca", decode(t, w)["hiddenReason"])

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/videos/vid1", nil).Code)

	w = s.do(t, http.MethodGet, "/api/admin/videos/hidden", nil, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["totalCount"])

	w = s.do(t, http.MethodPatch, "/api/admin/videos/vid1/show", nil, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/videos/vid1", nil).Code)

	w = s.do(t, http.MethodPatch, "/api/admin/videos/missing/hide", nil, s.withAdmin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVideoTagsAndDuration(t *testing.T) {
	s := newTestServer(t)
	s.seedVideo(t, "vid1")

	w := s.do(t, http.MethodPatch, "/api/admin/videos/vid1/tags", map[string]interface{}{"action": "add", "tags": []string{"Zerg"}}, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"Zerg"}, decode(t, w)["tags"])

	w = s.do(t, http.MethodPatch, "/api/admin/videos/vid1/tags", map[string]interface{}{"action": "shuffle"}, s.withAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/videos?race=zerg", nil)
	assert.EqualValues(t, 1, decode(t, w)["totalCount"])

	w = s.do(t, http.MethodPatch, "/api/admin/videos/vid1/duration", map[string]interface{}{"durationSeconds": -1}, s.withAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPatch, "/api/admin/videos/vid1/duration", map[string]interface{}{"durationSeconds": 90.5}, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 90.5, decode(t, w)["durationSeconds"])

	w = s.do(t, http.MethodDelete, "/api/admin/videos/vid1", nil, s.withAdmin)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodDelete, "/api/admin/videos/vid1", nil, s.withAdmin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubtitleVersionAdmin(t *testing.T) {
	s := newTestServer(t)
	s.seedVideo(t, "vid1")
	require.NoError(t, s.api.subtitles.Write("vid1", 2, strings.Replace(baseSRT, "Hello!", "Hi!", 1)))

	w := s.do(t, http.MethodGet, "/api/admin/videos/vid1/subtitles", nil, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	items, _ := decode(t, w)["items"].([]interface{})
	assert.Len(t, items, 2)

	w = s.do(t, http.MethodGet, "/api/admin/videos/vid1/subtitles/2/diff", nil, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "--- v1.srt\n+++ v2.srt\n"))
	assert.Contains(t, w.Body.String(), "-Hello!")
	assert.Contains(t, w.Body.String(), "+Hi!")

	w = s.do(t, http.MethodGet, "/api/admin/videos/vid1/subtitles/x/diff", nil, s.withAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// v1 is active
	w = s.do(t, http.MethodDelete, "/api/admin/videos/vid1/subtitles/1", nil, s.withAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "cannot_delete_current_version", decode(t, w)["error"])

	w = s.do(t, http.MethodPost, "/api/admin/videos/vid1/subtitles/2/promote", nil, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/subtitles/vid1/2.srt", decode(t, w)["subtitleUrl"])

	w = s.do(t, http.MethodDelete, "/api/admin/videos/vid1/subtitles/1", nil, s.withAdmin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/videos/vid1/subtitles/9/promote", nil, s.withAdmin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatorMappings(t *testing.T) {
	s := newTestServer(t)
	_, err := s.api.catalog.Upsert(models.Video{ID: "vid1", Title: "T", Creator: "ABC KR"})
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/api/admin/creator-mappings", map[string]string{"canonical": "A.B.C"}, s.withAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "source_required", decode(t, w)["error"])

	w = s.do(t, http.MethodPost, "/api/admin/creator-mappings", map[string]string{"source": "abc  kr", "canonical": "A.B.C"}, s.withAdmin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)

	w = s.do(t, http.MethodPost, "/api/admin/creators/mappings", map[string]string{"source": "ABC KR", "canonical": "Other"}, s.withAdmin)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/creators/mappings", nil, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["totalCount"])

	w = s.do(t, http.MethodPost, "/api/admin/creator-mappings/reapply", nil, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["updated_videos"])

	w = s.do(t, http.MethodGet, "/api/admin/videos/vid1", nil, s.withAdmin)
	video := decode(t, w)
	assert.Equal(t, "A.B.C", video["creator"])
	assert.Equal(t, "ABC KR", video["creatorOriginal"])

	w = s.do(t, http.MethodPut, "/api/admin/creator-mappings/"+id, map[string]string{"source": "ABC KR", "canonical": "ABC"}, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ABC", decode(t, w)["canonical"])

	w = s.do(t, http.MethodDelete, "/api/admin/creator-mappings/"+id, nil, s.withAdmin)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodDelete, "/api/admin/creator-mappings/"+id, nil, s.withAdmin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRatings(t *testing.T) {
	s := newTestServer(t)
	s.seedVideo(t, "vid1")

	w := s.do(t, http.MethodPost, "/api/videos/vid1/ratings", map[string]interface{}{"version": 1, "value": "green"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	alice := withUser("alice", "Alice")
	w = s.do(t, http.MethodPost, "/api/videos/vid1/ratings", map[string]interface{}{"version": 1, "value": "Green"}, alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/videos/vid1/ratings", map[string]interface{}{"version": 1, "value": "purple"}, alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_rating", decode(t, w)["error"])

	w = s.do(t, http.MethodPost, "/api/videos/missing/ratings", map[string]interface{}{"version": 1, "value": "green"}, alice)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/ratings/recent?limit=5", nil, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	var recent []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recent))
	assert.Len(t, recent, 1)

	w = s.do(t, http.MethodDelete, "/api/videos/vid1/ratings?version=1", nil, alice)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServeSubtitleNotFound(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/subtitles/vid1/1.srt", "/api/subtitles/vid1/x.srt", "/api/subtitles/vid1/1.txt"} {
		w := s.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestWebhookDeliveriesWithoutWebhooks(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/admin/webhooks/deliveries", nil, s.withAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decode(t, w)["items"])
}
