package review

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/cache"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/catalog"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/corrections"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/creators"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/submissions"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/subtitles"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

const baseSRT = "1\n00:00:01,000 --> 00:00:02,000\nHello!\n"

type fixture struct {
	dir         string
	catalog     *catalog.Store
	submissions *submissions.Store
	subtitles   *subtitles.Store
	creators    *creators.Store
	service     *Service
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:         dir,
		catalog:     catalog.New(filepath.Join(dir, "videos.json"), "", nil),
		submissions: submissions.New(filepath.Join(dir, "submissions.json"), ""),
		subtitles:   subtitles.NewStore(filepath.Join(dir, "subtitles"), filepath.Join(dir, "staging")),
		creators:    creators.New(filepath.Join(dir, "creators.json"), ""),
	}
	fetcher := subtitles.NewFetcher(nil)
	fetcher.SetFileRoot(dir)
	f.subtitles.SetFetcher(fetcher)

	o := Options{
		Catalog:     f.catalog,
		Submissions: f.submissions,
		Subtitles:   f.subtitles,
		Creators:    f.creators,
	}
	for _, fn := range opts {
		fn(&o)
	}
	f.service = NewService(o)
	return f
}

// seedVideo creates a catalog entry with v1 as the active subtitle
func (f *fixture) seedVideo(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.subtitles.Write(id, 1, baseSRT))
	_, err := f.catalog.Upsert(models.Video{ID: id, Title: "Video " + id, SubtitleURL: subtitles.PublicURL(id, 1)})
	require.NoError(t, err)
}

func correction(videoID string, base int, original, updated string) models.CorrectionPayload {
	return models.CorrectionPayload{
		VideoID:                videoID,
		SubtitleVersion:        base,
		SubmittedByUserID:      "user-1",
		SubmittedByDisplayName: "User One",
		Cues: []models.CueEdit{
			{Sequence: 1, StartSeconds: 1, EndSeconds: 2, OriginalText: original, UpdatedText: updated},
		},
	}
}

func TestCorrectionEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.seedVideo(t, "vid1")
	ctx := context.Background()

	sub, err := f.service.SubmitCorrection(ctx, correction("vid1", 1, "Hello!", "Hi!"))
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusPending, sub.Status)
	assert.Equal(t, models.SubmissionTypeSubtitleCorrection, sub.Type)

	reviewed, err := f.service.Approve(ctx, sub.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusApproved, reviewed.Status)
	assert.Equal(t, "admin-1", reviewed.ReviewerID)

	v2, err := f.subtitles.Read("vid1", 2)
	require.NoError(t, err)
	assert.Contains(t, v2, "Hi!")
	assert.NotContains(t, v2, "Hello!")

	v1, err := f.subtitles.Read("vid1", 1)
	require.NoError(t, err)
	assert.Equal(t, baseSRT, v1, "base version is never modified")

	video, ok := f.catalog.Get("vid1")
	require.True(t, ok)
	assert.Equal(t, "/api/subtitles/vid1/2.srt", video.SubtitleURL)
	require.Len(t, video.Contributors, 1)
	assert.Equal(t, 2, video.Contributors[0].Version)
	assert.Equal(t, "user-1", video.Contributors[0].UserID)
	assert.Equal(t, "User One", video.Contributors[0].DisplayName)
}

func TestApproveIsOnlyOnce(t *testing.T) {
	f := newFixture(t)
	f.seedVideo(t, "vid1")
	ctx := context.Background()

	sub, err := f.service.SubmitCorrection(ctx, correction("vid1", 1, "Hello!", "Hi!"))
	require.NoError(t, err)

	_, err = f.service.Approve(ctx, sub.ID, "admin-1")
	require.NoError(t, err)

	_, err = f.service.Approve(ctx, sub.ID, "admin-1")
	assert.ErrorIs(t, err, ErrNotPending)
	_, err = f.service.Reject(ctx, sub.ID, "admin-1", "late")
	assert.ErrorIs(t, err, ErrNotPending)

	assert.Equal(t, 2, f.subtitles.CurrentVersion("vid1"), "no extra version from the duplicate click")

	_, err = f.service.Approve(ctx, "does-not-exist", "admin-1")
	assert.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestStaleVersion(t *testing.T) {
	f := newFixture(t)
	f.seedVideo(t, "vid1")
	ctx := context.Background()

	first, err := f.service.SubmitCorrection(ctx, correction("vid1", 1, "Hello!", "Hi!"))
	require.NoError(t, err)
	second, err := f.service.SubmitCorrection(ctx, correction("vid1", 1, "Hello!", "Hey!"))
	require.NoError(t, err)

	_, err = f.service.Approve(ctx, first.ID, "admin-1")
	require.NoError(t, err)
	v2Before, _ := f.subtitles.Read("vid1", 2)

	_, err = f.service.Approve(ctx, second.ID, "admin-1")
	require.ErrorIs(t, err, ErrStaleVersion)
	status, code := Status(err)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "stale_version", code)

	v1, _ := f.subtitles.Read("vid1", 1)
	v2, _ := f.subtitles.Read("vid1", 2)
	assert.Equal(t, baseSRT, v1)
	assert.Equal(t, v2Before, v2)
	_, exists := f.subtitles.ResolvePath("vid1", 3)
	assert.False(t, exists)

	still, err := f.submissions.Get(second.ID)
	require.NoError(t, err)
	assert.True(t, still.IsPending())
}

func TestConflictWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.seedVideo(t, "vid1")
	ctx := context.Background()

	sub, err := f.service.SubmitCorrection(ctx, correction("vid1", 1, "Something else", "Hi!"))
	require.NoError(t, err)

	_, err = f.service.Approve(ctx, sub.ID, "admin-1")
	require.Error(t, err)
	status, code := Status(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, corrections.CodeCueConflict, code)

	assert.Equal(t, 1, f.subtitles.CurrentVersion("vid1"))
	video, _ := f.catalog.Get("vid1")
	assert.Equal(t, "/api/subtitles/vid1/1.srt", video.SubtitleURL)
	assert.Empty(t, video.Contributors)
}

func TestCueNotFound(t *testing.T) {
	f := newFixture(t)
	f.seedVideo(t, "vid1")
	ctx := context.Background()

	p := correction("vid1", 1, "Hello!", "Hi!")
	p.Cues[0].Sequence = 7
	sub, err := f.service.SubmitCorrection(ctx, p)
	require.NoError(t, err)

	_, err = f.service.Approve(ctx, sub.ID, "admin-1")
	_, code := Status(err)
	assert.Equal(t, corrections.CodeCueNotFound, code)
}

func TestEmptyBaseSubtitles(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.subtitles.Write("vid1", 1, "not an srt file"))
	_, err := f.catalog.Upsert(models.Video{ID: "vid1", Title: "x"})
	require.NoError(t, err)

	sub, err := f.service.SubmitCorrection(context.Background(), correction("vid1", 1, "a", "b"))
	require.NoError(t, err)

	_, err = f.service.Approve(context.Background(), sub.ID, "admin-1")
	_, code := Status(err)
	assert.Equal(t, corrections.CodeEmptyBaseSubtitles, code)
}

func TestSubmitCorrectionErrors(t *testing.T) {
	f := newFixture(t)
	f.seedVideo(t, "vid1")
	ctx := context.Background()

	_, err := f.service.SubmitCorrection(ctx, correction("missing", 1, "a", "b"))
	status, code := Status(err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "video_not_found", code)

	_, err = f.service.SubmitCorrection(ctx, correction("vid1", 5, "a", "b"))
	status, code = Status(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "subtitle_version_missing", code)

	p := correction("vid1", 1, "a", "b")
	p.Cues = nil
	_, err = f.service.SubmitCorrection(ctx, p)
	_, code = Status(err)
	assert.Equal(t, corrections.CodeMissingCues, code)

	items, total, err := f.submissions.List(submissions.Filter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestApproveVideoMissingFromCatalog(t *testing.T) {
	f := newFixture(t)
	f.seedVideo(t, "vid1")
	ctx := context.Background()

	sub, err := f.service.SubmitCorrection(ctx, correction("vid1", 1, "Hello!", "Hi!"))
	require.NoError(t, err)
	require.NoError(t, f.catalog.Delete("vid1"))

	_, err = f.service.Approve(ctx, sub.ID, "admin-1")
	status, code := Status(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "video_not_found", code)
	assert.Equal(t, 1, f.subtitles.CurrentVersion("vid1"))
}

func TestConcurrentApprovalsRaceToOneVersion(t *testing.T) {
	f := newFixture(t)
	f.seedVideo(t, "vid1")
	ctx := context.Background()

	var ids []string
	for _, text := range []string{"Hi!", "Hey!", "Yo!", "Howdy!"} {
		sub, err := f.service.SubmitCorrection(ctx, correction("vid1", 1, "Hello!", text))
		require.NoError(t, err)
		ids = append(ids, sub.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.service.Approve(ctx, id, "admin-1")
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrStaleVersion)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 2, f.subtitles.CurrentVersion("vid1"))

	video, _ := f.catalog.Get("vid1")
	assert.Len(t, video.Contributors, 1)
}

func TestVideoApprovalPromotesStagedUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.creators.Create("파도튜브[PADOTUBE]", "Pado", "", "admin-1")
	require.NoError(t, err)

	key, err := f.subtitles.SaveStaged(ctx, "pado001", 1, strings.NewReader(baseSRT))
	require.NoError(t, err)

	sub, err := f.service.SubmitVideo(ctx, "ingest", models.VideoSubmissionPayload{
		YoutubeID:          "pado001",
		Title:              "Some Title",
		Creator:            "파도튜브[PADOTUBE]",
		Tags:               []string{"zerg"},
		SubtitleStorageKey: key,
	})
	require.NoError(t, err)
	assert.Equal(t, "Pado", sub.Payload.CreatorCanonical)
	assert.Equal(t, "파도튜브[PADOTUBE]", sub.Payload.CreatorOriginal)

	_, err = f.service.Approve(ctx, sub.ID, "admin-1")
	require.NoError(t, err)

	video, ok := f.catalog.Get("pado001")
	require.True(t, ok)
	assert.Equal(t, "Pado", video.Creator)
	assert.Equal(t, "파도튜브[PADOTUBE]", video.CreatorOriginal)
	assert.Equal(t, "/api/subtitles/pado001/1.srt", video.SubtitleURL)
	assert.Equal(t, []string{"zerg"}, video.Tags)
	assert.Equal(t, "ingest", video.Submitter)
	require.Len(t, video.Contributors, 1)
	assert.Equal(t, 1, video.Contributors[0].Version)

	content, err := f.subtitles.Read("pado001", 1)
	require.NoError(t, err)
	assert.Equal(t, baseSRT, content)

	// Copy, not move
	_, err = os.Stat(filepath.Join(f.dir, "staging", "pado001", "v1.srt"))
	assert.NoError(t, err)
}

func TestVideoApprovalMirrorsURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	src := filepath.Join(f.dir, "external.srt")
	require.NoError(t, os.WriteFile(src, []byte(baseSRT), 0o644))

	sub, err := f.service.SubmitVideo(ctx, "ingest", models.VideoSubmissionPayload{
		YoutubeID:   "ext1",
		Title:       "External",
		SubtitleURL: "file://" + src,
	})
	require.NoError(t, err)

	_, err = f.service.Approve(ctx, sub.ID, "admin-1")
	require.NoError(t, err)

	content, err := f.subtitles.Read("ext1", 1)
	require.NoError(t, err)
	assert.Equal(t, baseSRT, content)
}

func TestVideoApprovalRefusesFileOutsideMirrorRoot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outside := filepath.Join(t.TempDir(), "secret.srt")
	require.NoError(t, os.WriteFile(outside, []byte(baseSRT), 0o644))

	sub, err := f.service.SubmitVideo(ctx, "ingest", models.VideoSubmissionPayload{
		YoutubeID:   "ext2",
		Title:       "Outside",
		SubtitleURL: "file://" + outside,
	})
	require.NoError(t, err)

	_, err = f.service.Approve(ctx, sub.ID, "admin-1")
	assert.ErrorIs(t, err, ErrSubtitleFetchFailed)
	_, ok := f.subtitles.ResolvePath("ext2", 1)
	assert.False(t, ok)
	_, ok = f.catalog.Get("ext2")
	assert.False(t, ok)
}

func TestVideoApprovalMirrorFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.service.SubmitVideo(ctx, "ingest", models.VideoSubmissionPayload{
		YoutubeID:   "ext1",
		Title:       "External",
		SubtitleURL: "file://" + filepath.Join(f.dir, "missing.srt"),
	})
	require.NoError(t, err)

	_, err = f.service.Approve(ctx, sub.ID, "admin-1")
	assert.ErrorIs(t, err, ErrSubtitleFetchFailed)
	_, ok := f.catalog.Get("ext1")
	assert.False(t, ok)

	pending, _ := f.submissions.Get(sub.ID)
	assert.True(t, pending.IsPending())
}

func TestSubmitVideoValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.SubmitVideo(ctx, "ingest", models.VideoSubmissionPayload{Title: "x"})
	assert.ErrorIs(t, err, ErrMissingYoutubeID)

	_, err = f.service.SubmitVideo(ctx, "ingest", models.VideoSubmissionPayload{YoutubeID: "a"})
	assert.ErrorIs(t, err, ErrMissingTitle)

	_, err = f.service.SubmitVideo(ctx, "ingest", models.VideoSubmissionPayload{
		YoutubeID: "a", Title: "x", SubtitleStorageKey: "../../etc/passwd",
	})
	assert.ErrorIs(t, err, ErrInvalidStorageKey)
}

func TestRejectRemovesUnreferencedStagedUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	key, err := f.subtitles.SaveStaged(ctx, "new1", 1, strings.NewReader(baseSRT))
	require.NoError(t, err)
	sub, err := f.service.SubmitVideo(ctx, "ingest", models.VideoSubmissionPayload{
		YoutubeID: "new1", Title: "New", SubtitleStorageKey: key,
	})
	require.NoError(t, err)

	reviewed, err := f.service.Reject(ctx, sub.ID, "admin-1", "duplicate")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusRejected, reviewed.Status)
	assert.Equal(t, "duplicate", reviewed.Reason)

	_, err = os.Stat(filepath.Join(f.dir, "staging", "new1", "v1.srt"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRejectKeepsReferencedStagedUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedVideo(t, "vid1")
	key, err := f.subtitles.SaveStaged(ctx, "vid1", 1, strings.NewReader(baseSRT))
	require.NoError(t, err)
	sub, err := f.service.SubmitVideo(ctx, "ingest", models.VideoSubmissionPayload{
		YoutubeID: "vid1", Title: "Again", SubtitleStorageKey: key,
	})
	require.NoError(t, err)

	_, err = f.service.Reject(ctx, sub.ID, "admin-1", "")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(f.dir, "staging", "vid1", "v1.srt"))
	assert.NoError(t, err)
}

func TestReviewDispatch(t *testing.T) {
	f := newFixture(t)
	f.seedVideo(t, "vid1")
	ctx := context.Background()

	sub, err := f.service.SubmitCorrection(ctx, correction("vid1", 1, "Hello!", "Hi!"))
	require.NoError(t, err)

	_, err = f.service.Review(ctx, sub.ID, "admin-1", "merge", "")
	assert.ErrorIs(t, err, ErrInvalidAction)

	reviewed, err := f.service.Review(ctx, sub.ID, "admin-1", "REJECT", "no")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusRejected, reviewed.Status)
	assert.Equal(t, 1, f.subtitles.CurrentVersion("vid1"))
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Name() string { return "mock" }

func (m *mockNotifier) Notify(ctx context.Context, event models.SubmissionEvent) error {
	return m.Called(ctx, event).Error(0)
}

func TestNotifiersReceiveEvents(t *testing.T) {
	notifier := new(mockNotifier)
	failing := new(mockNotifier)
	f := newFixture(t, func(o *Options) { o.Notifiers = []Notifier{failing, notifier} })
	f.seedVideo(t, "vid1")
	ctx := context.Background()

	failing.On("Notify", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(e models.SubmissionEvent) bool {
		return e.Event == models.WebhookEventSubmissionCreated
	})).Return(nil).Once()
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(e models.SubmissionEvent) bool {
		return e.Event == models.WebhookEventSubmissionApproved &&
			e.VideoID == "vid1" &&
			e.Version == 2 &&
			e.SubtitleURL == "/api/subtitles/vid1/2.srt" &&
			e.ReviewerID == "admin-1"
	})).Return(nil).Once()

	sub, err := f.service.SubmitCorrection(ctx, correction("vid1", 1, "Hello!", "Hi!"))
	require.NoError(t, err)
	_, err = f.service.Approve(ctx, sub.ID, "admin-1")
	require.NoError(t, err, "notifier failures never fail the review")

	notifier.AssertExpectations(t)
}

func TestListVersionsAndDiff(t *testing.T) {
	mr := miniredis.RunT(t)
	diffCache, err := cache.NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	require.NoError(t, err)
	defer diffCache.Close()

	f := newFixture(t, func(o *Options) { o.DiffCache = diffCache })
	f.seedVideo(t, "vid1")
	ctx := context.Background()

	sub, err := f.service.SubmitCorrection(ctx, correction("vid1", 1, "Hello!", "Hi!"))
	require.NoError(t, err)
	_, err = f.service.Approve(ctx, sub.ID, "admin-1")
	require.NoError(t, err)

	versions, err := f.service.ListVersions("vid1")
	require.NoError(t, err)
	require.Len(t, versions, 2)

	assert.Equal(t, 1, versions[0].Version)
	assert.False(t, versions[0].IsCurrent)
	assert.Equal(t, 3, versions[0].AddedLines)
	assert.Equal(t, 0, versions[0].RemovedLines)

	assert.Equal(t, 2, versions[1].Version)
	assert.True(t, versions[1].IsCurrent)
	assert.Equal(t, 1, versions[1].AddedLines)
	assert.Equal(t, 1, versions[1].RemovedLines)
	assert.Equal(t, "user-1", versions[1].UserID)
	assert.Equal(t, "User One", versions[1].DisplayName)
	assert.NotNil(t, versions[1].SubmittedAt)
	assert.Positive(t, versions[1].SizeBytes)

	text, err := f.service.Diff(ctx, "vid1", 2)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "--- v1.srt\n+++ v2.srt\n"))
	assert.Contains(t, text, "+Hi!\n")
	assert.Contains(t, text, "-Hello!\n")
	assert.True(t, mr.Exists("diff:vid1:1:2"))

	// Served from cache
	mr.Set("diff:vid1:1:2", "cached")
	text, err = f.service.Diff(ctx, "vid1", 2)
	require.NoError(t, err)
	assert.Equal(t, "cached", text)

	first, err := f.service.Diff(ctx, "vid1", 1)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "--- (none)\n+++ v1.srt\n"))

	_, err = f.service.Diff(ctx, "vid1", 9)
	assert.ErrorIs(t, err, ErrVersionNotFound)

	_, err = f.service.ListVersions("nothing-here")
	assert.ErrorIs(t, err, ErrVideoNotFound)
}

func TestPromoteAndDeleteVersion(t *testing.T) {
	f := newFixture(t)
	f.seedVideo(t, "vid1")
	require.NoError(t, f.subtitles.Write("vid1", 2, baseSRT))
	ctx := context.Background()

	video, err := f.service.Promote(ctx, "vid1", 2, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "/api/subtitles/vid1/2.srt", video.SubtitleURL)
	assert.Equal(t, 2, f.subtitles.CurrentVersion("vid1"))

	err = f.service.DeleteVersion(ctx, "vid1", 2)
	assert.ErrorIs(t, err, ErrCannotDeleteCurrent)
	status, code := Status(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "cannot_delete_current_version", code)

	require.NoError(t, f.service.DeleteVersion(ctx, "vid1", 1))
	_, exists := f.subtitles.ResolvePath("vid1", 1)
	assert.False(t, exists)

	assert.ErrorIs(t, f.service.DeleteVersion(ctx, "vid1", 1), ErrVersionNotFound)

	_, err = f.service.Promote(ctx, "vid1", 7, "admin-1")
	assert.ErrorIs(t, err, ErrVersionNotFound)

	require.NoError(t, f.subtitles.Write("ghost", 1, baseSRT))
	_, err = f.service.Promote(ctx, "ghost", 1, "admin-1")
	assert.ErrorIs(t, err, ErrVideoNotFound)
}

func TestActivePointerGuardsDeleteNotMaxVersion(t *testing.T) {
	f := newFixture(t)
	f.seedVideo(t, "vid1")
	require.NoError(t, f.subtitles.Write("vid1", 2, baseSRT))
	ctx := context.Background()

	// v1 is active even though v2 is the highest on disk
	assert.ErrorIs(t, f.service.DeleteVersion(ctx, "vid1", 1), ErrCannotDeleteCurrent)
	require.NoError(t, f.service.DeleteVersion(ctx, "vid1", 2))
}

func TestDeleteVersionSharedWithAnotherVideo(t *testing.T) {
	f := newFixture(t)
	f.seedVideo(t, "src")
	require.NoError(t, f.subtitles.Write("src", 2, baseSRT))
	ctx := context.Background()

	_, err := f.service.Promote(ctx, "src", 2, "admin-1")
	require.NoError(t, err)

	sub, err := f.service.SubmitVideo(ctx, "ingest", models.VideoSubmissionPayload{
		YoutubeID:   "dst",
		Title:       "Shared",
		SubtitleURL: subtitles.PublicURL("src", 1),
	})
	require.NoError(t, err)
	_, err = f.service.Approve(ctx, sub.ID, "admin-1")
	require.NoError(t, err)

	dst, ok := f.catalog.Get("dst")
	require.True(t, ok)
	assert.Equal(t, "/api/subtitles/src/1.srt", dst.SubtitleURL)

	// dst still serves src v1
	assert.ErrorIs(t, f.service.DeleteVersion(ctx, "src", 1), ErrCannotDeleteCurrent)
	_, exists := f.subtitles.ResolvePath("src", 1)
	assert.True(t, exists)

	// dst's own files are not guarded by the bare version number in its URL
	require.NoError(t, f.subtitles.Write("dst", 1, baseSRT))
	require.NoError(t, f.service.DeleteVersion(ctx, "dst", 1))
}

func TestReapplyCreatorMappings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.creators.Create("ABC KR", "ABC", "", "admin-1")
	require.NoError(t, err)

	sub, err := f.service.SubmitVideo(ctx, "ingest", models.VideoSubmissionPayload{
		YoutubeID: "abc001", Title: "ABC Vid", Creator: "ABC KR",
	})
	require.NoError(t, err)
	_, err = f.service.Approve(ctx, sub.ID, "admin-1")
	require.NoError(t, err)

	video, _ := f.catalog.Get("abc001")
	assert.Equal(t, "ABC", video.Creator)

	_, err = f.creators.Update(m.ID, "ABC KR", "A.B.C", "")
	require.NoError(t, err)

	n, err := f.service.ReapplyCreatorMappings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	video, _ = f.catalog.Get("abc001")
	assert.Equal(t, "A.B.C", video.Creator)

	n, err = f.service.ReapplyCreatorMappings(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStatusUnknownError(t *testing.T) {
	status, code := Status(errors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", code)

	status, code = Status(&corrections.Error{Code: corrections.CodeCueConflict})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, corrections.CodeCueConflict, code)
}
