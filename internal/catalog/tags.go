package catalog

import (
	"strings"

	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

// normalizeTags trims tags and drops empty and case-insensitive duplicates,
// keeping the first spelling seen.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return tags
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// SetTags replaces the tag list
func (s *Store) SetTags(id string, tags []string) (models.Video, error) {
	return s.Update(id, func(v *models.Video) error {
		v.Tags = normalizeTags(tags)
		return nil
	})
}

// AddTags appends tags not already present
func (s *Store) AddTags(id string, tags []string) (models.Video, error) {
	return s.Update(id, func(v *models.Video) error {
		v.Tags = normalizeTags(append(v.Tags, tags...))
		return nil
	})
}

// RemoveTags drops tags, compared case-insensitively
func (s *Store) RemoveTags(id string, tags []string) (models.Video, error) {
	drop := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		drop[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}
	return s.Update(id, func(v *models.Video) error {
		kept := v.Tags[:0]
		for _, tag := range v.Tags {
			if _, ok := drop[strings.ToLower(tag)]; !ok {
				kept = append(kept, tag)
			}
		}
		v.Tags = kept
		return nil
	})
}
