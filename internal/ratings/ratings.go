package ratings

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/jsonfile"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

const maxEvents = 1000

var (
	// ErrInvalidValue is returned for ratings other than red, yellow or green
	ErrInvalidValue = errors.New("invalid rating value")
	// ErrInvalidVersion is returned for non-positive subtitle versions
	ErrInvalidVersion = errors.New("invalid subtitle version")
	// ErrMissingUser is returned when no user id is given
	ErrMissingUser = errors.New("missing user")
)

type aggregate struct {
	Red         int                           `json:"red"`
	Yellow      int                           `json:"yellow"`
	Green       int                           `json:"green"`
	UserRatings map[string]models.RatingValue `json:"userRatings"`
}

type videoAggregates struct {
	Versions map[int]*aggregate `json:"versions"`
}

type document struct {
	Videos map[string]*videoAggregates `json:"videos"`
	Events []models.RatingEvent        `json:"events"`
}

// Store keeps per-version traffic-light ratings and a bounded event log
type Store struct {
	file *jsonfile.File
	now  func() time.Time
}

// New creates a ratings store for path
func New(path, lockDir string) *Store {
	return &Store{
		file: jsonfile.New(path, lockDir),
		now:  time.Now,
	}
}

func (s *Store) load() (document, error) {
	var doc document
	if _, err := s.file.Load(&doc); err != nil {
		return document{}, err
	}
	if doc.Videos == nil {
		doc.Videos = make(map[string]*videoAggregates)
	}
	return doc, nil
}

// Summary returns vote counts for a version and, when userID is set, that user's vote.
// An unreadable store reads as empty.
func (s *Store) Summary(videoID string, version int, userID string) models.RatingSummary {
	summary := models.RatingSummary{Version: version}

	doc, err := s.load()
	if err != nil {
		return summary
	}
	agg := doc.find(videoID, version)
	if agg == nil {
		return summary
	}

	summary.Red = agg.Red
	summary.Yellow = agg.Yellow
	summary.Green = agg.Green
	if userID != "" {
		if v, ok := agg.UserRatings[userID]; ok {
			summary.UserRating = &v
		}
	}
	return summary
}

func (d document) find(videoID string, version int) *aggregate {
	video, ok := d.Videos[videoID]
	if !ok || video.Versions == nil {
		return nil
	}
	return video.Versions[version]
}

func (d document) ensure(videoID string, version int) *aggregate {
	video, ok := d.Videos[videoID]
	if !ok {
		video = &videoAggregates{}
		d.Videos[videoID] = video
	}
	if video.Versions == nil {
		video.Versions = make(map[int]*aggregate)
	}
	agg, ok := video.Versions[version]
	if !ok {
		agg = &aggregate{}
		video.Versions[version] = agg
	}
	if agg.UserRatings == nil {
		agg.UserRatings = make(map[string]models.RatingValue)
	}
	return agg
}

func (a *aggregate) add(v models.RatingValue, delta int) {
	switch v {
	case models.RatingRed:
		a.Red = max(0, a.Red+delta)
	case models.RatingYellow:
		a.Yellow = max(0, a.Yellow+delta)
	case models.RatingGreen:
		a.Green = max(0, a.Green+delta)
	}
}

// Submit records userID's vote, replacing any earlier vote on the same version
func (s *Store) Submit(userID, userName, videoID string, version int, value models.RatingValue) (models.RatingSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return models.RatingSummary{}, ErrMissingUser
	}
	if version <= 0 {
		return models.RatingSummary{}, ErrInvalidVersion
	}
	if !value.Valid() {
		return models.RatingSummary{}, ErrInvalidValue
	}

	err := s.file.Update(func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}

		agg := doc.ensure(videoID, version)
		if prev, ok := agg.UserRatings[userID]; ok {
			agg.add(prev, -1)
		}
		agg.UserRatings[userID] = value
		agg.add(value, 1)

		doc.Events = append(doc.Events, models.RatingEvent{
			VideoID:   videoID,
			Version:   version,
			UserID:    userID,
			UserName:  userName,
			Value:     value,
			CreatedAt: s.now().UTC(),
		})
		if len(doc.Events) > maxEvents {
			doc.Events = doc.Events[len(doc.Events)-maxEvents:]
		}
		return s.file.Save(doc)
	})
	if err != nil {
		return models.RatingSummary{}, err
	}
	return s.Summary(videoID, version, userID), nil
}

// Remove withdraws userID's vote. Removing a missing vote is not an error.
func (s *Store) Remove(userID, videoID string, version int) (models.RatingSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return models.RatingSummary{}, ErrMissingUser
	}

	err := s.file.Update(func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		agg := doc.find(videoID, version)
		if agg == nil {
			return nil
		}
		prev, ok := agg.UserRatings[userID]
		if !ok {
			return nil
		}
		agg.add(prev, -1)
		delete(agg.UserRatings, userID)
		return s.file.Save(doc)
	})
	if err != nil {
		return models.RatingSummary{}, err
	}
	return s.Summary(videoID, version, userID), nil
}

// Recent returns the newest rating events; limit is clamped to 1..200
func (s *Store) Recent(limit int) []models.RatingEvent {
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}

	doc, err := s.load()
	if err != nil {
		return []models.RatingEvent{}
	}
	events := append([]models.RatingEvent(nil), doc.Events...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	if events == nil {
		events = []models.RatingEvent{}
	}
	return events
}
