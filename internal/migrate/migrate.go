// Package migrate merges video lists written by the older sheet-export and
// metadata tools into the catalog.
package migrate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/catalog"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/jsonfile"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/logging"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

// Legacy spellings per field, in order of preference
var (
	idKeys          = []string{"v", "id", "youtube_id"}
	titleKeys       = []string{"EN Title", "title_en", "title", "Title"}
	creatorKeys     = []string{"Creator", "creator"}
	descriptionKeys = []string{"Description", "description"}
	tagKeys         = []string{"Tags", "tags"}
	subtitleKeys    = []string{"subtitleUrl", "subtitle_url", "Subtitle URL"}
	releaseKeys     = []string{"releaseDate", "release_date", "Release Date"}
)

// Options locates the enrichment sources
type Options struct {
	MetadataDir string
	CacheDir    string
}

// Report counts what a merge did
type Report struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// LoadLegacy reads a legacy video list: a JSON array of loosely keyed objects
func LoadLegacy(path string) ([]map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy list: %w", err)
	}
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode legacy list: %w", err)
	}
	return items, nil
}

type details struct {
	Title    string `json:"title"`
	Uploader string `json:"uploader"`
	Channel  string `json:"channel"`
	Creator  string `json:"creator"`
}

type titleCache struct {
	TitleEN string `json:"title_en"`
}

func readDetails(dir, id string) details {
	var d details
	if dir == "" {
		return d
	}
	_, _ = jsonfile.New(filepath.Join(dir, id+".json"), "").Load(&d)
	return d
}

func readTitleCache(dir, id string) titleCache {
	var c titleCache
	if dir == "" {
		return c
	}
	_, _ = jsonfile.New(filepath.Join(dir, "title_"+id+".json"), "").Load(&c)
	return c
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// takeString removes every key of keys from item and returns the first
// non-empty string value among them.
func takeString(item map[string]json.RawMessage, keys []string) string {
	out := ""
	for _, key := range keys {
		raw, ok := item[key]
		if !ok {
			continue
		}
		delete(item, key)
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if out == "" {
			out = strings.TrimSpace(s)
		}
	}
	return out
}

// takeTags accepts either a string array or a comma separated string
func takeTags(item map[string]json.RawMessage, keys []string) []string {
	var out []string
	for _, key := range keys {
		raw, ok := item[key]
		if !ok {
			continue
		}
		delete(item, key)
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil {
			out = append(out, list...)
			continue
		}
		var joined string
		if err := json.Unmarshal(raw, &joined); err == nil {
			out = append(out, strings.Split(joined, ",")...)
		}
	}
	return unionTags(nil, out)
}

// Convert turns one legacy item into a video, enriched from the metadata and
// title caches. ok is false for items without an id.
func Convert(item map[string]json.RawMessage, opts Options) (models.Video, bool) {
	rest := make(map[string]json.RawMessage, len(item))
	for k, v := range item {
		rest[k] = v
	}

	id := takeString(rest, idKeys)
	if id == "" {
		return models.Video{}, false
	}
	title := takeString(rest, titleKeys)
	creator := takeString(rest, creatorKeys)
	description := takeString(rest, descriptionKeys)
	tags := takeTags(rest, tagKeys)
	subtitleURL := takeString(rest, subtitleKeys)
	releaseDate := takeString(rest, releaseKeys)

	// Whatever is left decodes through the catalog schema; unknown keys end up in Extra
	var video models.Video
	if len(rest) > 0 {
		data, err := json.Marshal(rest)
		if err == nil {
			if err := json.Unmarshal(data, &video); err != nil {
				video = models.Video{Extra: rest}
			}
		}
	}

	d := readDetails(opts.MetadataDir, id)
	cached := readTitleCache(opts.CacheDir, id)

	video.ID = id
	video.Title = firstNonEmpty(title, cached.TitleEN, d.Title)
	video.Creator = firstNonEmpty(creator, d.Uploader, d.Channel, d.Creator)
	video.Description = firstNonEmpty(description, video.Description)
	video.Tags = unionTags(video.Tags, tags)
	video.SubtitleURL = firstNonEmpty(subtitleURL, video.SubtitleURL)
	video.ReleaseDate = firstNonEmpty(releaseDate, video.ReleaseDate)
	return video, true
}

func unionTags(existing, extra []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(extra))
	var out []string
	for _, tag := range append(append([]string(nil), existing...), extra...) {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func fill(dst *string, src string) {
	if strings.TrimSpace(*dst) == "" && src != "" {
		*dst = src
	}
}

// mergeInto copies fields from legacy that existing lacks. Fields already set
// on existing are never overwritten.
func mergeInto(existing *models.Video, legacy models.Video) {
	fill(&existing.Title, legacy.Title)
	fill(&existing.Creator, legacy.Creator)
	fill(&existing.CreatorOriginal, legacy.CreatorOriginal)
	fill(&existing.Description, legacy.Description)
	fill(&existing.ReleaseDate, legacy.ReleaseDate)
	fill(&existing.SubtitleURL, legacy.SubtitleURL)
	fill(&existing.Submitter, legacy.Submitter)
	fill(&existing.SubmissionDate, legacy.SubmissionDate)
	if existing.DurationSeconds == nil && legacy.DurationSeconds != nil {
		d := *legacy.DurationSeconds
		existing.DurationSeconds = &d
	}
	if len(legacy.Tags) > 0 {
		existing.Tags = unionTags(existing.Tags, legacy.Tags)
	}
	for k, v := range legacy.Extra {
		if existing.Extra == nil {
			existing.Extra = make(map[string]json.RawMessage)
		}
		if _, ok := existing.Extra[k]; !ok {
			existing.Extra[k] = v
		}
	}
}

// Merge upserts legacy videos into existing by id and returns the merged list.
// existing is not modified.
func Merge(existing, legacy []models.Video) ([]models.Video, Report) {
	var report Report
	out := make([]models.Video, len(existing))
	index := make(map[string]int, len(existing))
	for i, v := range existing {
		out[i] = v.Clone()
		index[v.ID] = i
	}

	for _, lv := range legacy {
		if strings.TrimSpace(lv.ID) == "" {
			report.Skipped++
			continue
		}
		i, ok := index[lv.ID]
		if !ok {
			index[lv.ID] = len(out)
			out = append(out, lv.Clone())
			report.Added++
			continue
		}
		before := out[i].Clone()
		mergeInto(&out[i], lv)
		if reflect.DeepEqual(before, out[i]) {
			report.Skipped++
			continue
		}
		report.Updated++
	}
	return out, report
}

// Migrator merges legacy lists into a catalog store
type Migrator struct {
	catalog *catalog.Store
	opts    Options
	logger  *logging.Logger
}

// New creates a Migrator
func New(store *catalog.Store, opts Options, logger *logging.Logger) *Migrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Migrator{catalog: store, opts: opts, logger: logger}
}

// Run merges the legacy list at path into the catalog. With dryRun the
// catalog is left untouched and only the report is computed.
func (m *Migrator) Run(path string, dryRun bool) (Report, error) {
	items, err := LoadLegacy(path)
	if err != nil {
		return Report{}, err
	}

	var report Report
	legacy := make([]models.Video, 0, len(items))
	for _, item := range items {
		video, ok := Convert(item, m.opts)
		if !ok {
			report.Skipped++
			continue
		}
		legacy = append(legacy, video)
	}

	if dryRun {
		_, r := Merge(m.catalog.All(), legacy)
		report.add(r)
	} else {
		err = m.catalog.Replace(func(videos []models.Video) ([]models.Video, error) {
			merged, r := Merge(videos, legacy)
			report.add(r)
			return merged, nil
		})
		if err != nil {
			return Report{}, fmt.Errorf("failed to merge legacy catalog: %w", err)
		}
	}

	m.logger.WithFields(map[string]interface{}{
		"source":  path,
		"added":   report.Added,
		"updated": report.Updated,
		"skipped": report.Skipped,
		"dry_run": dryRun,
	}).Info("Legacy catalog merged")
	return report, nil
}

func (r *Report) add(o Report) {
	r.Added += o.Added
	r.Updated += o.Updated
	r.Skipped += o.Skipped
}
