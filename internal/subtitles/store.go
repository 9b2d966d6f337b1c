package subtitles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/fileutil"
)

var (
	// ErrNotFound is returned when a subtitle version file does not exist
	ErrNotFound = errors.New("subtitle version not found")
	// ErrCannotDeleteCurrent is returned when deleting the active version
	ErrCannotDeleteCurrent = errors.New("cannot_delete_current_version")
	// ErrInvalidVersion is returned for non-positive version numbers
	ErrInvalidVersion = errors.New("invalid subtitle version")
)

var versionFileRe = regexp.MustCompile(`^v([0-9]+)\.srt$`)

// VersionFile describes one version present on disk
type VersionFile struct {
	Version int
	Path    string
	Size    int64
	ModTime time.Time
}

// Store keeps subtitle versions under root/<sanitized id>/v<version>.srt and
// staged uploads under stagingRoot with the same layout.
type Store struct {
	root        string
	stagingRoot string
	staged      StagedSource
	fetcher     *Fetcher
}

// NewStore creates a subtitle store
func NewStore(root, stagingRoot string) *Store {
	return &Store{
		root:        root,
		stagingRoot: stagingRoot,
		fetcher:     NewFetcher(nil),
	}
}

// SetStagedSource configures a remote fallback for staged uploads
func (s *Store) SetStagedSource(src StagedSource) {
	s.staged = src
}

// SetFetcher replaces the fetcher used by Mirror
func (s *Store) SetFetcher(f *Fetcher) {
	s.fetcher = f
}

// SanitizeID keeps ASCII letters, digits, '-' and '_'. An empty result becomes "unknown".
func SanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

func fileName(version int) string {
	return "v" + strconv.Itoa(version) + ".srt"
}

// Path returns where version of videoID is stored, whether or not it exists
func (s *Store) Path(videoID string, version int) string {
	return filepath.Join(s.root, SanitizeID(videoID), fileName(version))
}

// ResolvePath returns the path of an existing version file
func (s *Store) ResolvePath(videoID string, version int) (string, bool) {
	if version <= 0 {
		return "", false
	}
	path := s.Path(videoID, version)
	if !fileutil.Exists(path) {
		return "", false
	}
	return path, true
}

// Versions lists the versions present on disk in ascending order
func (s *Store) Versions(videoID string) ([]VersionFile, error) {
	dir := filepath.Join(s.root, SanitizeID(videoID))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []VersionFile{}, nil
		}
		return nil, fmt.Errorf("failed to list subtitle versions: %w", err)
	}

	versions := make([]VersionFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := versionFileRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		versions = append(versions, VersionFile{
			Version: n,
			Path:    filepath.Join(dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})
	return versions, nil
}

// CurrentVersion returns the highest version present on disk, or 0.
// This is independent of the catalog's active pointer.
func (s *Store) CurrentVersion(videoID string) int {
	versions, err := s.Versions(videoID)
	if err != nil || len(versions) == 0 {
		return 0
	}
	return versions[len(versions)-1].Version
}

// NextVersion returns the number the next written version should use
func (s *Store) NextVersion(videoID string) int {
	current := s.CurrentVersion(videoID)
	if current < 0 {
		current = 0
	}
	return current + 1
}

// PreviousVersion returns the nearest existing version below version
func (s *Store) PreviousVersion(videoID string, version int) (int, string, bool) {
	for v := version - 1; v >= 1; v-- {
		if path, ok := s.ResolvePath(videoID, v); ok {
			return v, path, true
		}
	}
	return 0, "", false
}

// Read returns the content of a version
func (s *Store) Read(videoID string, version int) (string, error) {
	path, ok := s.ResolvePath(videoID, version)
	if !ok {
		return "", ErrNotFound
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read subtitle: %w", err)
	}
	return string(data), nil
}

// Write stores content as version, replacing any existing file atomically
func (s *Store) Write(videoID string, version int, content string) error {
	if version <= 0 {
		return ErrInvalidVersion
	}
	if err := fileutil.WriteFileAtomic(s.Path(videoID, version), []byte(content)); err != nil {
		return fmt.Errorf("failed to write subtitle: %w", err)
	}
	return nil
}

// Delete removes version unless it is the active one
func (s *Store) Delete(videoID string, version, active int) error {
	if version <= 0 {
		return ErrInvalidVersion
	}
	if version == active {
		return ErrCannotDeleteCurrent
	}
	path, ok := s.ResolvePath(videoID, version)
	if !ok {
		return ErrNotFound
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete subtitle: %w", err)
	}
	return nil
}

// Remove deletes a version file without consulting the active pointer.
// Missing files are not an error.
func (s *Store) Remove(videoID string, version int) error {
	err := os.Remove(s.Path(videoID, version))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// PublicURL is the catalog-facing URL of a version
func PublicURL(videoID string, version int) string {
	return fmt.Sprintf("/api/subtitles/%s/%d.srt", SanitizeID(videoID), version)
}

// ParsePublicURL extracts the video id and version from a URL built by
// PublicURL. Absolute URLs and query strings are tolerated.
func ParsePublicURL(raw string) (string, int, bool) {
	const marker = "/api/subtitles/"
	idx := strings.Index(raw, marker)
	if idx < 0 {
		return "", 0, false
	}
	rest := raw[idx+len(marker):]
	if q := strings.IndexAny(rest, "?#"); q >= 0 {
		rest = rest[:q]
	}

	id, file, ok := strings.Cut(rest, "/")
	if !ok || id == "" || strings.Contains(file, "/") {
		return "", 0, false
	}
	version, err := strconv.Atoi(strings.TrimSuffix(file, ".srt"))
	if err != nil || version <= 0 {
		return "", 0, false
	}
	return id, version, true
}

// ActiveVersion returns the version of videoID referenced by a catalog
// subtitle URL, or 0 when the URL points at another video or outside this store.
func ActiveVersion(videoID, subtitleURL string) int {
	id, version, ok := ParsePublicURL(subtitleURL)
	if !ok || id != SanitizeID(videoID) {
		return 0
	}
	return version
}
