package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/catalog"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/diff"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/metrics"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/subtitles"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

// ListVersions describes every stored subtitle version of a video, oldest
// first. Line counts compare each version with the nearest earlier one.
func (s *Service) ListVersions(videoID string) ([]models.SubtitleVersion, error) {
	video, found := s.catalog.Get(videoID)
	files, err := s.subtitles.Versions(videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtitle versions: %w", err)
	}
	if !found && len(files) == 0 {
		return nil, ErrVideoNotFound
	}

	active := subtitles.ActiveVersion(videoID, video.SubtitleURL)
	contributors := make(map[int]models.SubtitleContributor, len(video.Contributors))
	for _, c := range video.Contributors {
		contributors[c.Version] = c
	}

	out := make([]models.SubtitleVersion, 0, len(files))
	var prevLines []string
	for _, f := range files {
		content, err := s.subtitles.Read(videoID, f.Version)
		if err != nil {
			return nil, err
		}
		lines := diff.SplitLines(content)
		added, removed := diff.Stats(prevLines, lines)
		prevLines = lines

		entry := models.SubtitleVersion{
			Version:      f.Version,
			SizeBytes:    f.Size,
			AddedLines:   added,
			RemovedLines: removed,
			IsCurrent:    f.Version == active,
		}
		if c, ok := contributors[f.Version]; ok {
			entry.UserID = c.UserID
			entry.DisplayName = c.DisplayName
			if !c.SubmittedAt.IsZero() {
				at := c.SubmittedAt
				entry.SubmittedAt = &at
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func versionLabel(version int) string {
	return fmt.Sprintf("v%d.srt", version)
}

// Diff renders a unified diff of version against the nearest earlier stored
// version, or against nothing for the first one.
func (s *Service) Diff(ctx context.Context, videoID string, version int) (string, error) {
	if _, ok := s.subtitles.ResolvePath(videoID, version); !ok {
		return "", ErrVersionNotFound
	}
	prev, _, hasPrev := s.subtitles.PreviousVersion(videoID, version)

	if s.diffs != nil {
		text, hit, err := s.diffs.GetDiff(ctx, videoID, prev, version)
		if err != nil {
			s.logger.WithVideoID(videoID).WarnWithErr("Diff cache read failed", err)
		}
		metrics.RecordCacheAccess("diff", hit)
		if hit {
			return text, nil
		}
	}

	current, err := s.subtitles.Read(videoID, version)
	if err != nil {
		return "", err
	}
	labelPrev := "(none)"
	var prevLines []string
	if hasPrev {
		content, err := s.subtitles.Read(videoID, prev)
		if err != nil && !errors.Is(err, subtitles.ErrNotFound) {
			return "", err
		}
		prevLines = diff.SplitLines(content)
		labelPrev = versionLabel(prev)
	}

	text := diff.Unified(prevLines, diff.SplitLines(current), labelPrev, versionLabel(version))
	if s.diffs != nil {
		if err := s.diffs.SetDiff(ctx, videoID, prev, version, text, s.diffTTL); err != nil {
			s.logger.WithVideoID(videoID).WarnWithErr("Diff cache write failed", err)
		}
	}
	return text, nil
}

// Promote points the catalog at an existing version. File contents are not touched.
func (s *Service) Promote(ctx context.Context, videoID string, version int, actor string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subtitles.ResolvePath(videoID, version); !ok {
		return models.Video{}, ErrVersionNotFound
	}
	url := subtitles.PublicURL(videoID, version)
	video, err := s.catalog.SetActiveSubtitle(videoID, url)
	if errors.Is(err, catalog.ErrNotFound) {
		return models.Video{}, ErrVideoNotFound
	}
	if err != nil {
		return models.Video{}, fmt.Errorf("failed to promote subtitle: %w", err)
	}
	s.catalog.Reload()

	s.logger.WithVideoID(videoID).WithUserID(actor).WithField("version", version).Info("Subtitle version promoted")
	if len(s.notifiers) > 0 {
		s.publish(ctx, models.SubmissionEvent{
			Event:       models.WebhookEventSubtitlePromoted,
			VideoID:     videoID,
			Version:     version,
			SubtitleURL: url,
			ReviewerID:  actor,
			OccurredAt:  s.now().UTC(),
		})
	}
	return video, nil
}

// DeleteVersion removes a stored version unless the catalog points at it
func (s *Service) DeleteVersion(ctx context.Context, videoID string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	active := 0
	if s.referencesVersion(videoID, version) {
		active = version
	}

	err := s.subtitles.Delete(videoID, version, active)
	s.logger.LogSubtitleOperation("delete", videoID, version, time.Since(start), err)
	switch {
	case errors.Is(err, subtitles.ErrCannotDeleteCurrent):
		return ErrCannotDeleteCurrent
	case errors.Is(err, subtitles.ErrNotFound):
		return ErrVersionNotFound
	case err != nil:
		return fmt.Errorf("failed to delete subtitle version: %w", err)
	}

	s.invalidateDiffs(ctx, videoID)
	return nil
}

// referencesVersion reports whether any catalog entry serves videoID's
// version, including entries approved with another video's subtitle URL.
func (s *Service) referencesVersion(videoID string, version int) bool {
	for _, video := range s.catalog.All() {
		if subtitles.ActiveVersion(videoID, video.SubtitleURL) == version {
			return true
		}
	}
	return false
}

// ReapplyCreatorMappings rewrites catalog creators through the current mappings
func (s *Service) ReapplyCreatorMappings(ctx context.Context) (int, error) {
	if s.creators == nil {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.catalog.UpdateAll(func(v *models.Video) bool {
		source := v.CreatorOriginal
		if source == "" {
			source = v.Creator
		}
		canonical, ok := s.creators.Resolve(source)
		if !ok || canonical == v.Creator {
			return false
		}
		if v.CreatorOriginal == "" {
			v.CreatorOriginal = v.Creator
		}
		v.Creator = canonical
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reapply creator mappings: %w", err)
	}
	s.logger.WithField("updated_videos", n).Info("Creator mappings reapplied")
	return n, nil
}
