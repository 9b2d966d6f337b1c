package creators

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/jsonfile"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

// Error codes returned to API clients
var (
	ErrSourceRequired    = errors.New("source_required")
	ErrCanonicalRequired = errors.New("canonical_required")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not_found")
)

// Normalize folds a creator name for matching: NFKC, whitespace runs
// collapsed to one space, lowercase.
func Normalize(name string) string {
	name = norm.NFKC.String(name)
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

type document struct {
	Items []models.CreatorMapping `json:"items"`
}

// Store maps raw creator names to canonical spellings
type Store struct {
	file *jsonfile.File
	now  func() time.Time
}

// New creates a creator-mapping store for path
func New(path, lockDir string) *Store {
	return &Store{
		file: jsonfile.New(path, lockDir),
		now:  time.Now,
	}
}

func (s *Store) load() (document, error) {
	var doc document
	_, err := s.file.Load(&doc)
	return doc, err
}

// Resolve returns the canonical name for source, if a mapping exists
func (s *Store) Resolve(source string) (string, bool) {
	key := Normalize(source)
	if key == "" {
		return "", false
	}
	doc, err := s.load()
	if err != nil {
		return "", false
	}
	for _, m := range doc.Items {
		if m.SourceNormalized == key {
			return m.Canonical, true
		}
	}
	return "", false
}

// List returns mappings whose source or canonical contains q, most recently
// updated first, plus the total match count
func (s *Store) List(q string, page, pageSize int) ([]models.CreatorMapping, int, error) {
	doc, err := s.load()
	if err != nil {
		return nil, 0, err
	}

	q = strings.ToLower(strings.TrimSpace(q))
	matched := make([]models.CreatorMapping, 0, len(doc.Items))
	for _, m := range doc.Items {
		if q != "" &&
			!strings.Contains(strings.ToLower(m.Source), q) &&
			!strings.Contains(strings.ToLower(m.Canonical), q) {
			continue
		}
		matched = append(matched, m)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	total := len(matched)
	start := (page - 1) * pageSize
	if start >= total {
		return []models.CreatorMapping{}, total, nil
	}
	end := min(start+pageSize, total)
	return matched[start:end], total, nil
}

func validate(source, canonical string) (string, error) {
	key := Normalize(source)
	if key == "" {
		return "", ErrSourceRequired
	}
	if strings.TrimSpace(canonical) == "" {
		return "", ErrCanonicalRequired
	}
	return key, nil
}

// Create adds a mapping. Sources that normalize to an existing one conflict.
func (s *Store) Create(source, canonical, notes, createdBy string) (models.CreatorMapping, error) {
	key, err := validate(source, canonical)
	if err != nil {
		return models.CreatorMapping{}, err
	}

	var created models.CreatorMapping
	err = s.file.Update(func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		for _, m := range doc.Items {
			if m.SourceNormalized == key {
				return ErrConflict
			}
		}
		now := s.now().UTC()
		created = models.CreatorMapping{
			ID:               strings.ReplaceAll(uuid.NewString(), "-", ""),
			Source:           strings.TrimSpace(source),
			SourceNormalized: key,
			Canonical:        strings.TrimSpace(canonical),
			Notes:            strings.TrimSpace(notes),
			CreatedAt:        now,
			CreatedBy:        createdBy,
			UpdatedAt:        now,
		}
		doc.Items = append(doc.Items, created)
		return s.file.Save(doc)
	})
	return created, err
}

// Update changes an existing mapping
func (s *Store) Update(id, source, canonical, notes string) (models.CreatorMapping, error) {
	key, err := validate(source, canonical)
	if err != nil {
		return models.CreatorMapping{}, err
	}

	var updated models.CreatorMapping
	err = s.file.Update(func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		idx := -1
		for i, m := range doc.Items {
			if m.ID == id {
				idx = i
			} else if m.SourceNormalized == key {
				return ErrConflict
			}
		}
		if idx < 0 {
			return ErrNotFound
		}
		m := &doc.Items[idx]
		m.Source = strings.TrimSpace(source)
		m.SourceNormalized = key
		m.Canonical = strings.TrimSpace(canonical)
		m.Notes = strings.TrimSpace(notes)
		m.UpdatedAt = s.now().UTC()
		updated = *m
		return s.file.Save(doc)
	})
	return updated, err
}

// Delete removes a mapping
func (s *Store) Delete(id string) error {
	return s.file.Update(func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		for i, m := range doc.Items {
			if m.ID == id {
				doc.Items = append(doc.Items[:i], doc.Items[i+1:]...)
				return s.file.Save(doc)
			}
		}
		return ErrNotFound
	})
}
