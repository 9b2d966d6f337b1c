package submissions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/jsonfile"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

var (
	// ErrNotFound is returned when no submission has the requested id
	ErrNotFound = errors.New("submission not found")
	// ErrNotPending is returned when reviewing an already reviewed submission
	ErrNotPending = errors.New("submission is not pending")
	// ErrInvalidAction is returned for review actions other than approve/reject
	ErrInvalidAction = errors.New("invalid review action")
)

type document struct {
	Items []models.Submission `json:"items"`
}

// Store persists submissions in a single JSON document
type Store struct {
	file *jsonfile.File
	now  func() time.Time
}

// New creates a submissions store for path
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
	return doc, nil
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *Store) create(sub models.Submission) (models.Submission, error) {
	sub.ID = newID()
	sub.Status = models.SubmissionStatusPending
	sub.SubmittedAt = s.now().UTC()

	err := s.file.Update(func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		doc.Items = append(doc.Items, sub)
		return s.file.Save(doc)
	})
	if err != nil {
		return models.Submission{}, fmt.Errorf("failed to create submission: %w", err)
	}
	return sub, nil
}

// CreateVideo queues a new-video submission
func (s *Store) CreateVideo(submittedBy string, payload models.VideoSubmissionPayload) (models.Submission, error) {
	return s.create(models.Submission{
		Type:        models.SubmissionTypeVideo,
		SubmittedBy: submittedBy,
		Payload:     &payload,
	})
}

// CreateCorrection queues a subtitle correction
func (s *Store) CreateCorrection(submittedBy string, payload models.CorrectionPayload) (models.Submission, error) {
	return s.create(models.Submission{
		Type:        models.SubmissionTypeSubtitleCorrection,
		SubmittedBy: submittedBy,
		Correction:  &payload,
	})
}

// Filter selects submissions for List
type Filter struct {
	Type     string
	Status   string
	Page     int
	PageSize int
}

// List returns one page of matching submissions, newest first, plus the total
func (s *Store) List(f Filter) ([]models.Submission, int, error) {
	doc, err := s.load()
	if err != nil {
		return nil, 0, err
	}

	matched := make([]models.Submission, 0, len(doc.Items))
	for _, sub := range doc.Items {
		if f.Type != "" && !strings.EqualFold(sub.Type, f.Type) {
			continue
		}
		if f.Status != "" && !strings.EqualFold(sub.Status, f.Status) {
			continue
		}
		matched = append(matched, sub)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
	})

	page, size := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 50
	}
	total := len(matched)
	start := (page - 1) * size
	if start >= total {
		return []models.Submission{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Get returns the submission with id, compared case-insensitively
func (s *Store) Get(id string) (models.Submission, error) {
	doc, err := s.load()
	if err != nil {
		return models.Submission{}, err
	}
	for _, sub := range doc.Items {
		if strings.EqualFold(sub.ID, id) {
			return sub, nil
		}
	}
	return models.Submission{}, ErrNotFound
}

// Review moves a pending submission to approved or rejected. It fails with
// ErrNotPending once the submission has been reviewed.
func (s *Store) Review(id, reviewerID, action, reason string) (models.Submission, error) {
	var status string
	switch strings.ToLower(action) {
	case models.ReviewActionApprove:
		status = models.SubmissionStatusApproved
	case models.ReviewActionReject:
		status = models.SubmissionStatusRejected
	default:
		return models.Submission{}, ErrInvalidAction
	}

	var result models.Submission
	err := s.file.Update(func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		for i := range doc.Items {
			sub := &doc.Items[i]
			if !strings.EqualFold(sub.ID, id) {
				continue
			}
			if !sub.IsPending() {
				return ErrNotPending
			}
			now := s.now().UTC()
			sub.Status = status
			sub.ReviewedAt = &now
			sub.ReviewerID = reviewerID
			sub.Reason = strings.TrimSpace(reason)
			result = *sub
			return s.file.Save(doc)
		}
		return ErrNotFound
	})
	return result, err
}
