package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/jsonfile"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/logging"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

var (
	// ErrNotFound is returned when no video has the requested id
	ErrNotFound = errors.New("video not found")
	// ErrInvalidVideo is returned for records without an id
	ErrInvalidVideo = errors.New("invalid video")
	// ErrInvalidDuration is returned for negative durations
	ErrInvalidDuration = errors.New("invalid duration")
)

const (
	defaultPageSize = 24
	maxPageSize     = 100
)

// Store is the catalog JSON file with an mtime-checked read cache. Writes go
// through the file lock and refresh the cache with what they wrote.
type Store struct {
	file   *jsonfile.File
	logger *logging.Logger

	mu      sync.RWMutex
	videos  []models.Video
	modTime time.Time
	loaded  bool
}

// New creates a catalog store for path
func New(path, lockDir string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{
		file:   jsonfile.New(path, lockDir),
		logger: logger,
	}
}

// refreshIfStale reloads the cache when the file changed since the last load.
// A file that cannot be read or decoded leaves the cache unchanged.
func (s *Store) refreshIfStale() {
	modTime := s.file.ModTime()

	s.mu.RLock()
	fresh := s.loaded && modTime.Equal(s.modTime)
	s.mu.RUnlock()
	if fresh {
		return
	}

	var videos []models.Video
	if _, err := s.file.Load(&videos); err != nil {
		s.logger.WarnWithErr("failed to load catalog, keeping cached copy", err)
		s.mu.Lock()
		s.modTime = modTime
		s.loaded = true
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.videos = videos
	s.modTime = modTime
	s.loaded = true
	s.mu.Unlock()
}

// Reload forces the next read to hit the file
func (s *Store) Reload() {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
	s.refreshIfStale()
}

func (s *Store) snapshot() []models.Video {
	s.refreshIfStale()

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Video, len(s.videos))
	for i, v := range s.videos {
		out[i] = v.Clone()
	}
	return out
}

// All returns every video, hidden ones included
func (s *Store) All() []models.Video {
	return s.snapshot()
}

// Get returns the video with id
func (s *Store) Get(id string) (models.Video, bool) {
	s.refreshIfStale()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.videos {
		if v.ID == id {
			return v.Clone(), true
		}
	}
	return models.Video{}, false
}

// ListQuery filters and pages List
type ListQuery struct {
	Query         string
	IncludeHidden bool
	OnlyHidden    bool
	Tag           string
	Page          int
	PageSize      int
}

// List returns one page of videos matching q and the total match count
func (s *Store) List(q ListQuery) ([]models.Video, int) {
	terms := strings.Fields(strings.ToLower(q.Query))

	matched := make([]models.Video, 0)
	for _, v := range s.snapshot() {
		if q.OnlyHidden && !v.Hidden {
			continue
		}
		if v.Hidden && !q.IncludeHidden && !q.OnlyHidden {
			continue
		}
		if q.Tag != "" && !v.HasTag(q.Tag) {
			continue
		}
		if !matches(v, terms) {
			continue
		}
		matched = append(matched, v)
	}

	page, size := NormalizePage(q.Page, q.PageSize)
	total := len(matched)
	start := (page - 1) * size
	if start >= total {
		return []models.Video{}, total
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total
}

// NormalizePage clamps a requested page and page size to the listing limits
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func matches(v models.Video, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(strings.Join([]string{
		v.ID, v.Title, v.Creator, v.Description, strings.Join(v.Tags, " "),
	}, "\n"))
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// AnyReferencesSubtitleURL reports whether any video's active subtitle is url
func (s *Store) AnyReferencesSubtitleURL(url string) bool {
	if url == "" {
		return false
	}
	s.refreshIfStale()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.videos {
		if strings.EqualFold(v.SubtitleURL, url) {
			return true
		}
	}
	return false
}

// mutate runs fn against the current file contents under the file lock and
// writes the result back. A file that cannot be decoded is never overwritten.
func (s *Store) mutate(fn func(videos []models.Video) ([]models.Video, error)) error {
	return s.file.Update(func() error {
		var videos []models.Video
		if _, err := s.file.Load(&videos); err != nil {
			return err
		}

		updated, err := fn(videos)
		if err != nil {
			return err
		}
		if updated == nil {
			updated = []models.Video{}
		}

		if err := s.file.Save(updated); err != nil {
			return fmt.Errorf("failed to save catalog: %w", err)
		}

		s.mu.Lock()
		s.videos = updated
		s.modTime = s.file.ModTime()
		s.loaded = true
		s.mu.Unlock()
		return nil
	})
}

func indexOf(videos []models.Video, id string) int {
	for i, v := range videos {
		if v.ID == id {
			return i
		}
	}
	return -1
}

// Upsert inserts video or replaces the record with the same id. Unknown legacy
// fields of the replaced record are kept when video carries none.
func (s *Store) Upsert(video models.Video) (created bool, err error) {
	if strings.TrimSpace(video.ID) == "" {
		return false, ErrInvalidVideo
	}
	video = video.Clone()
	video.Tags = normalizeTags(video.Tags)

	err = s.mutate(func(videos []models.Video) ([]models.Video, error) {
		i := indexOf(videos, video.ID)
		if i < 0 {
			created = true
			return append(videos, video), nil
		}
		if video.Extra == nil {
			video.Extra = videos[i].Extra
		}
		videos[i] = video
		return videos, nil
	})
	return created, err
}

// Update applies fn to the video with id and persists the result
func (s *Store) Update(id string, fn func(v *models.Video) error) (models.Video, error) {
	var result models.Video
	err := s.mutate(func(videos []models.Video) ([]models.Video, error) {
		i := indexOf(videos, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		if err := fn(&videos[i]); err != nil {
			return nil, err
		}
		videos[i].ID = id
		result = videos[i].Clone()
		return videos, nil
	})
	return result, err
}

var errUnchanged = errors.New("unchanged")

// UpdateAll applies fn to every video and persists the catalog if fn reported
// a change for any of them. It returns the number of changed videos.
func (s *Store) UpdateAll(fn func(v *models.Video) bool) (int, error) {
	changed := 0
	err := s.mutate(func(videos []models.Video) ([]models.Video, error) {
		for i := range videos {
			if fn(&videos[i]) {
				changed++
			}
		}
		if changed == 0 {
			return nil, errUnchanged
		}
		return videos, nil
	})
	if errors.Is(err, errUnchanged) {
		return 0, nil
	}
	return changed, err
}

// Replace runs fn over the whole catalog under the file lock and saves the
// slice it returns.
func (s *Store) Replace(fn func(videos []models.Video) ([]models.Video, error)) error {
	return s.mutate(fn)
}

// Delete removes the video with id
func (s *Store) Delete(id string) error {
	return s.mutate(func(videos []models.Video) ([]models.Video, error) {
		i := indexOf(videos, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		return append(videos[:i], videos[i+1:]...), nil
	})
}

// SetActiveSubtitle points the video at a subtitle URL
func (s *Store) SetActiveSubtitle(id, url string) (models.Video, error) {
	return s.Update(id, func(v *models.Video) error {
		v.SubtitleURL = url
		return nil
	})
}

// AppendContributor records the author of a promoted subtitle version
func (s *Store) AppendContributor(id string, c models.SubtitleContributor) (models.Video, error) {
	return s.Update(id, func(v *models.Video) error {
		v.Contributors = append(v.Contributors, c)
		return nil
	})
}

// Hide removes the video from public listings
func (s *Store) Hide(id, reason string, at time.Time) (models.Video, error) {
	return s.Update(id, func(v *models.Video) error {
		v.Hidden = true
		v.HiddenReason = strings.TrimSpace(reason)
		v.HiddenAt = at.UTC().Format(time.RFC3339)
		return nil
	})
}

// Show makes a hidden video public again
func (s *Store) Show(id string) (models.Video, error) {
	return s.Update(id, func(v *models.Video) error {
		v.Hidden = false
		v.HiddenReason = ""
		v.HiddenAt = ""
		return nil
	})
}

// SetDuration records the video length; nil clears it
func (s *Store) SetDuration(id string, seconds *float64) (models.Video, error) {
	if seconds != nil && *seconds < 0 {
		return models.Video{}, ErrInvalidDuration
	}
	return s.Update(id, func(v *models.Video) error {
		if seconds == nil {
			v.DurationSeconds = nil
			return nil
		}
		d := *seconds
		v.DurationSeconds = &d
		return nil
	})
}
