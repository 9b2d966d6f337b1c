// Package review runs the submission workflow: corrections and new videos
// enter as pending submissions and are approved or rejected exactly once.
// Approval writes the next subtitle version and moves the catalog pointer.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/catalog"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/corrections"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/creators"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/logging"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/metrics"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/submissions"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/subtitles"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/tracing"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

const notifyTimeout = 10 * time.Second

// Notifier receives workflow events after they are committed
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event models.SubmissionEvent) error
}

// DiffCache stores rendered version diffs
type DiffCache interface {
	GetDiff(ctx context.Context, videoID string, prev, version int) (string, bool, error)
	SetDiff(ctx context.Context, videoID string, prev, version int, text string, ttl time.Duration) error
	InvalidateDiffs(ctx context.Context, videoID string) error
}

// Options wires a Service
type Options struct {
	Catalog     *catalog.Store
	Submissions *submissions.Store
	Subtitles   *subtitles.Store
	Creators    *creators.Store
	DiffCache   DiffCache
	DiffTTL     time.Duration
	Notifiers   []Notifier
	Logger      *logging.Logger
}

// Service coordinates the submission stores, the subtitle store and the catalog
type Service struct {
	catalog     *catalog.Store
	submissions *submissions.Store
	subtitles   *subtitles.Store
	creators    *creators.Store
	diffs       DiffCache
	diffTTL     time.Duration
	notifiers   []Notifier
	logger      *logging.Logger
	now         func() time.Time

	// mu serializes every review and version-pointer change. It is always
	// taken before any store file lock.
	mu sync.Mutex
}

// NewService creates a review service
func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.DiffTTL <= 0 {
		opts.DiffTTL = 10 * time.Minute
	}
	return &Service{
		catalog:     opts.Catalog,
		submissions: opts.Submissions,
		subtitles:   opts.Subtitles,
		creators:    opts.Creators,
		diffs:       opts.DiffCache,
		diffTTL:     opts.DiffTTL,
		notifiers:   opts.Notifiers,
		logger:      opts.Logger,
		now:         time.Now,
	}
}

// SubmitCorrection validates a correction and queues it for review
func (s *Service) SubmitCorrection(ctx context.Context, p models.CorrectionPayload) (models.Submission, error) {
	p.VideoID = strings.TrimSpace(p.VideoID)
	if err := corrections.Validate(&p); err != nil {
		return models.Submission{}, err
	}
	if _, ok := s.catalog.Get(p.VideoID); !ok {
		return models.Submission{}, ErrVideoNotFound
	}
	if _, ok := s.subtitles.ResolvePath(p.VideoID, p.SubtitleVersion); !ok {
		return models.Submission{}, ErrSubtitleVersionMissing
	}

	sub, err := s.submissions.CreateCorrection(p.SubmittedByUserID, p)
	if err != nil {
		return models.Submission{}, fmt.Errorf("failed to create submission: %w", err)
	}

	metrics.RecordSubmissionCreated(sub.Type)
	s.logger.WithSubmissionID(sub.ID).WithVideoID(p.VideoID).Info("Subtitle correction submitted")
	s.notify(ctx, sub, models.WebhookEventSubmissionCreated, p.VideoID, 0, "")
	return sub, nil
}

// SubmitVideo queues a new video for review. The creator is canonicalized
// through the creator mappings when one matches.
func (s *Service) SubmitVideo(ctx context.Context, submittedBy string, p models.VideoSubmissionPayload) (models.Submission, error) {
	p.YoutubeID = strings.TrimSpace(p.YoutubeID)
	p.Title = strings.TrimSpace(p.Title)
	if p.YoutubeID == "" {
		return models.Submission{}, ErrMissingYoutubeID
	}
	if p.Title == "" {
		return models.Submission{}, ErrMissingTitle
	}
	if p.SubtitleStorageKey != "" {
		if _, _, err := subtitles.ParseStagingKey(p.SubtitleStorageKey); err != nil {
			return models.Submission{}, ErrInvalidStorageKey
		}
	}

	p.Creator = strings.TrimSpace(p.Creator)
	if p.CreatorOriginal == "" {
		p.CreatorOriginal = p.Creator
	}
	if canonical, ok := s.resolveCreator(p.CreatorOriginal); ok {
		p.CreatorCanonical = canonical
	}

	sub, err := s.submissions.CreateVideo(submittedBy, p)
	if err != nil {
		return models.Submission{}, fmt.Errorf("failed to create submission: %w", err)
	}

	metrics.RecordSubmissionCreated(sub.Type)
	s.logger.WithSubmissionID(sub.ID).WithVideoID(p.YoutubeID).Info("Video submitted")
	s.notify(ctx, sub, models.WebhookEventSubmissionCreated, p.YoutubeID, 0, "")
	return sub, nil
}

func (s *Service) resolveCreator(source string) (string, bool) {
	if s.creators == nil || strings.TrimSpace(source) == "" {
		return "", false
	}
	return s.creators.Resolve(source)
}

// Review dispatches an approve or reject action
func (s *Service) Review(ctx context.Context, id, reviewerID, action, reason string) (models.Submission, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case models.ReviewActionApprove:
		return s.Approve(ctx, id, reviewerID)
	case models.ReviewActionReject:
		return s.Reject(ctx, id, reviewerID, reason)
	default:
		return models.Submission{}, ErrInvalidAction
	}
}

// pending loads a submission that can still be reviewed. Callers hold s.mu.
func (s *Service) pending(id string) (models.Submission, error) {
	sub, err := s.submissions.Get(id)
	if errors.Is(err, submissions.ErrNotFound) {
		return models.Submission{}, ErrSubmissionNotFound
	}
	if err != nil {
		return models.Submission{}, fmt.Errorf("failed to load submission: %w", err)
	}
	if !sub.IsPending() {
		return models.Submission{}, ErrNotPending
	}
	return sub, nil
}

// markReviewed persists the review decision. Callers hold s.mu.
func (s *Service) markReviewed(id, reviewerID, action, reason string) (models.Submission, error) {
	sub, err := s.submissions.Review(id, reviewerID, action, reason)
	switch {
	case errors.Is(err, submissions.ErrNotFound):
		return models.Submission{}, ErrSubmissionNotFound
	case errors.Is(err, submissions.ErrNotPending):
		return models.Submission{}, ErrNotPending
	case err != nil:
		return models.Submission{}, fmt.Errorf("failed to record review: %w", err)
	}
	return sub, nil
}

// Approve applies a pending submission. Nothing is written when any step fails.
func (s *Service) Approve(ctx context.Context, id, reviewerID string) (models.Submission, error) {
	span, ctx := tracing.StartSpan(ctx, "review.approve")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "submission_id", id)
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sub, err := s.pending(id)
	if err != nil {
		tracing.LogError(span, err)
		return models.Submission{}, err
	}
	tracing.SetTag(span, "submission_type", sub.Type)

	var res promotion
	switch sub.Type {
	case models.SubmissionTypeSubtitleCorrection:
		res, err = s.approveCorrection(ctx, sub)
	case models.SubmissionTypeVideo:
		res, err = s.approveVideo(ctx, sub)
	default:
		err = ErrInvalidSubmission
	}
	if err != nil {
		tracing.LogError(span, err)
		s.logger.WithSubmissionID(sub.ID).WarnWithErr("Approval failed", err)
		return models.Submission{}, err
	}

	reviewed, err := s.markReviewed(sub.ID, reviewerID, models.ReviewActionApprove, "")
	if err != nil {
		// The promotion is already live; the submission stays pending and a
		// second approval would hit stale_version.
		tracing.LogError(span, err)
		s.logger.WithSubmissionID(sub.ID).ErrorWithErr("Promotion succeeded but review was not recorded", err)
		return models.Submission{}, err
	}

	metrics.RecordSubmissionReviewed(reviewed.Type, reviewed.Status, time.Since(start).Seconds())
	s.logger.LogReviewEvent(reviewed.ID, reviewed.Type, reviewed.Status, map[string]interface{}{
		"video_id":    res.videoID,
		"version":     res.version,
		"reviewer_id": reviewerID,
	})
	s.notify(ctx, reviewed, models.WebhookEventSubmissionApproved, res.videoID, res.version, res.url)
	return reviewed, nil
}

type promotion struct {
	videoID string
	version int
	url     string
}

func (s *Service) approveCorrection(ctx context.Context, sub models.Submission) (promotion, error) {
	p := sub.Correction
	if p == nil || strings.TrimSpace(p.VideoID) == "" {
		return promotion{}, ErrInvalidSubmission
	}
	videoID := p.VideoID

	if _, ok := s.catalog.Get(videoID); !ok {
		return promotion{}, errApproveVideoNotFound
	}
	if current := s.subtitles.CurrentVersion(videoID); current != p.SubtitleVersion {
		metrics.RecordCorrectionFailed(ErrStaleVersion.Code)
		return promotion{}, ErrStaleVersion
	}

	base, err := s.subtitles.Read(videoID, p.SubtitleVersion)
	if errors.Is(err, subtitles.ErrNotFound) {
		return promotion{}, ErrBaseSubtitleMissing
	}
	if err != nil {
		return promotion{}, fmt.Errorf("failed to read base subtitle: %w", err)
	}

	updated, err := corrections.Apply(base, p.Cues)
	if err != nil {
		aerr := applyError(err)
		metrics.RecordCorrectionFailed(aerr.Code)
		return promotion{}, aerr
	}

	contributor := models.SubtitleContributor{
		UserID:      p.SubmittedByUserID,
		DisplayName: p.SubmittedByDisplayName,
		SubmittedAt: sub.SubmittedAt,
	}
	res, err := s.writeVersion(ctx, videoID, updated, contributor, "correction")
	if err != nil {
		return promotion{}, err
	}

	metrics.RecordCorrectionApplied(len(p.Cues))
	return res, nil
}

// writeVersion stores content as the next version and points the catalog at it
// in one catalog update. The file is removed again if the catalog update fails.
func (s *Service) writeVersion(ctx context.Context, videoID, content string, contributor models.SubtitleContributor, source string) (promotion, error) {
	start := time.Now()
	version := s.subtitles.NextVersion(videoID)
	if err := s.subtitles.Write(videoID, version, content); err != nil {
		s.logger.LogSubtitleOperation("write", videoID, version, time.Since(start), err)
		return promotion{}, fmt.Errorf("failed to write subtitle version: %w", err)
	}

	url := subtitles.PublicURL(videoID, version)
	contributor.Version = version
	if _, err := s.catalog.Update(videoID, func(v *models.Video) error {
		v.SubtitleURL = url
		v.Contributors = append(v.Contributors, contributor)
		return nil
	}); err != nil {
		s.rollbackVersion(videoID, version)
		if errors.Is(err, catalog.ErrNotFound) {
			return promotion{}, errApproveVideoNotFound
		}
		return promotion{}, fmt.Errorf("failed to update catalog: %w", err)
	}

	s.catalog.Reload()
	s.invalidateDiffs(ctx, videoID)
	metrics.RecordSubtitleWritten(source, len(content))
	s.logger.LogSubtitleOperation("write", videoID, version, time.Since(start), nil)
	return promotion{videoID: videoID, version: version, url: url}, nil
}

func (s *Service) rollbackVersion(videoID string, version int) {
	if err := s.subtitles.Remove(videoID, version); err != nil {
		s.logger.WithVideoID(videoID).WarnWithErr("Failed to remove orphaned subtitle version", err)
	}
}

func (s *Service) approveVideo(ctx context.Context, sub models.Submission) (promotion, error) {
	p := sub.Payload
	if p == nil || strings.TrimSpace(p.YoutubeID) == "" {
		return promotion{}, ErrInvalidSubmission
	}
	videoID := strings.TrimSpace(p.YoutubeID)

	creator := p.Creator
	if p.CreatorCanonical != "" {
		creator = p.CreatorCanonical
	}
	original := p.CreatorOriginal
	if original == "" {
		original = p.Creator
	}
	if canonical, ok := s.resolveCreator(original); ok {
		creator = canonical
	}

	// Subtitle first, so a failed fetch leaves the catalog untouched
	var res promotion
	written := false
	version := s.subtitles.NextVersion(videoID)
	switch {
	case p.SubtitleStorageKey != "":
		err := s.subtitles.PromoteStaged(ctx, p.SubtitleStorageKey, videoID, version)
		if errors.Is(err, subtitles.ErrNotFound) {
			return promotion{}, ErrStagedSubtitleMissing
		}
		if errors.Is(err, subtitles.ErrInvalidKey) {
			return promotion{}, ErrInvalidStorageKey
		}
		if err != nil {
			return promotion{}, fmt.Errorf("failed to promote staged subtitle: %w", err)
		}
		written = true
		metrics.RecordSubtitleWritten("staged", s.versionSize(videoID, version))
	case p.SubtitleURL != "":
		if id, v, ok := subtitles.ParsePublicURL(p.SubtitleURL); ok {
			if _, exists := s.subtitles.ResolvePath(id, v); exists {
				// Already served by this catalog
				res = promotion{videoID: videoID, version: v, url: subtitles.PublicURL(id, v)}
				break
			}
		}
		if err := s.subtitles.Mirror(ctx, p.SubtitleURL, videoID, version); err != nil {
			s.logger.WithVideoID(videoID).WarnWithErr("Subtitle mirror failed", err)
			return promotion{}, ErrSubtitleFetchFailed
		}
		written = true
		metrics.RecordSubtitleWritten("mirror", s.versionSize(videoID, version))
	}
	if written {
		res = promotion{videoID: videoID, version: version, url: subtitles.PublicURL(videoID, version)}
	}
	if res.videoID == "" {
		res.videoID = videoID
	}

	video, _ := s.catalog.Get(videoID)
	video.ID = videoID
	video.Title = p.Title
	video.Creator = creator
	if original != "" && original != creator {
		video.CreatorOriginal = original
	}
	if p.Description != "" {
		video.Description = p.Description
	}
	if len(p.Tags) > 0 {
		video.Tags = append(video.Tags, p.Tags...)
	}
	if p.ReleaseDate != "" {
		video.ReleaseDate = p.ReleaseDate
	}
	video.Submitter = sub.SubmittedBy
	video.SubmissionDate = sub.SubmittedAt.UTC().Format(time.RFC3339)
	if res.url != "" {
		video.SubtitleURL = res.url
	}
	if written {
		video.Contributors = append(video.Contributors, models.SubtitleContributor{
			Version:     version,
			UserID:      sub.SubmittedBy,
			SubmittedAt: sub.SubmittedAt,
		})
	}

	if _, err := s.catalog.Upsert(video); err != nil {
		if written {
			s.rollbackVersion(videoID, version)
		}
		return promotion{}, fmt.Errorf("failed to upsert video: %w", err)
	}
	s.catalog.Reload()
	if written {
		s.invalidateDiffs(ctx, videoID)
	}
	return res, nil
}

func (s *Service) versionSize(videoID string, version int) int {
	content, err := s.subtitles.Read(videoID, version)
	if err != nil {
		return 0
	}
	return len(content)
}

// Reject closes a pending submission. An unreferenced staged upload is removed
// on a best-effort basis.
func (s *Service) Reject(ctx context.Context, id, reviewerID, reason string) (models.Submission, error) {
	span, ctx := tracing.StartSpan(ctx, "review.reject")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "submission_id", id)
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.pending(id); err != nil {
		tracing.LogError(span, err)
		return models.Submission{}, err
	}

	reviewed, err := s.markReviewed(id, reviewerID, models.ReviewActionReject, reason)
	if err != nil {
		tracing.LogError(span, err)
		return models.Submission{}, err
	}

	videoID := ""
	switch {
	case reviewed.Payload != nil:
		videoID = reviewed.Payload.YoutubeID
		s.cleanupStaged(ctx, reviewed.Payload.SubtitleStorageKey)
	case reviewed.Correction != nil:
		videoID = reviewed.Correction.VideoID
	}

	metrics.RecordSubmissionReviewed(reviewed.Type, reviewed.Status, time.Since(start).Seconds())
	s.logger.LogReviewEvent(reviewed.ID, reviewed.Type, reviewed.Status, map[string]interface{}{
		"video_id":    videoID,
		"reviewer_id": reviewerID,
		"reason":      reviewed.Reason,
	})
	s.notify(ctx, reviewed, models.WebhookEventSubmissionRejected, videoID, 0, "")
	return reviewed, nil
}

func (s *Service) cleanupStaged(ctx context.Context, key string) {
	if key == "" {
		return
	}
	id, version, err := subtitles.ParseStagingKey(key)
	if err != nil {
		return
	}
	if s.catalog.AnyReferencesSubtitleURL(subtitles.PublicURL(id, version)) {
		return
	}
	if err := s.subtitles.DeleteStaged(ctx, key); err != nil {
		s.logger.WithField("storage_key", key).WarnWithErr("Failed to remove staged subtitle", err)
	}
}

func (s *Service) invalidateDiffs(ctx context.Context, videoID string) {
	if s.diffs == nil {
		return
	}
	if err := s.diffs.InvalidateDiffs(ctx, videoID); err != nil {
		s.logger.WithVideoID(videoID).WarnWithErr("Failed to invalidate cached diffs", err)
	}
}

func (s *Service) notify(ctx context.Context, sub models.Submission, event, videoID string, version int, url string) {
	if len(s.notifiers) == 0 {
		return
	}
	evt := models.SubmissionEvent{
		Event:          event,
		SubmissionID:   sub.ID,
		SubmissionType: sub.Type,
		Status:         sub.Status,
		VideoID:        videoID,
		Version:        version,
		SubtitleURL:    url,
		ReviewerID:     sub.ReviewerID,
		Reason:         sub.Reason,
		OccurredAt:     s.now().UTC(),
	}
	s.publish(ctx, evt)
}

func (s *Service) publish(ctx context.Context, evt models.SubmissionEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, evt); err != nil {
			metrics.RecordNotification(n.Name(), "error")
			s.logger.WithField("notifier", n.Name()).WarnWithErr("Failed to publish review event", err)
		}
	}
}
