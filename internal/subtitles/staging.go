package subtitles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/fileutil"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

// ErrInvalidKey is returned for staging keys outside the <id>/v<n>.srt layout
var ErrInvalidKey = errors.New("invalid staging key")

// ErrTooLarge is returned when a subtitle exceeds the upload limit
var ErrTooLarge = errors.New("subtitle file too large")

var stagingKeyRe = regexp.MustCompile(`^([A-Za-z0-9_-]+)/v([0-9]+)\.srt$`)

// StagedSource is a remote copy of the staging area
type StagedSource interface {
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
}

// StagingKey returns the staging key for a video version
func StagingKey(videoID string, version int) string {
	return SanitizeID(videoID) + "/" + fileName(version)
}

// ParseStagingKey validates key and returns its video id and version
func ParseStagingKey(key string) (string, int, error) {
	m := stagingKeyRe.FindStringSubmatch(key)
	if m == nil {
		return "", 0, ErrInvalidKey
	}
	version, err := strconv.Atoi(m[2])
	if err != nil || version <= 0 {
		return "", 0, ErrInvalidKey
	}
	return m[1], version, nil
}

func (s *Store) stagingPath(key string) (string, error) {
	id, version, err := ParseStagingKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.stagingRoot, id, fileName(version)), nil
}

// SaveStaged stores an uploaded subtitle in the staging area and returns its key
func (s *Store) SaveStaged(ctx context.Context, videoID string, version int, r io.Reader) (string, error) {
	if version <= 0 {
		return "", ErrInvalidVersion
	}
	data, err := io.ReadAll(io.LimitReader(r, models.SubtitleMaxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > models.SubtitleMaxUploadBytes {
		return "", ErrTooLarge
	}

	key := StagingKey(videoID, version)
	path, err := s.stagingPath(key)
	if err != nil {
		return "", err
	}
	if err := fileutil.WriteFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("failed to stage subtitle: %w", err)
	}

	if s.staged != nil {
		if err := s.staged.Put(ctx, key, data); err != nil {
			return "", fmt.Errorf("failed to replicate staged subtitle: %w", err)
		}
	}
	return key, nil
}

// openStaged opens a staged upload locally, falling back to the remote source
func (s *Store) openStaged(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.stagingPath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to open staged subtitle: %w", err)
	}
	if s.staged == nil {
		return nil, ErrNotFound
	}

	rc, err := s.staged.Fetch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch staged subtitle: %w", err)
	}
	return rc, nil
}

// ReadStaged returns the content of a staged upload
func (s *Store) ReadStaged(ctx context.Context, key string) (string, error) {
	rc, err := s.openStaged(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, models.SubtitleMaxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read staged subtitle: %w", err)
	}
	if len(data) > models.SubtitleMaxUploadBytes {
		return "", ErrTooLarge
	}
	return string(data), nil
}

// PromoteStaged copies a staged upload into the public store as version.
// The staged file is kept.
func (s *Store) PromoteStaged(ctx context.Context, key, videoID string, version int) error {
	if version <= 0 {
		return ErrInvalidVersion
	}
	path, err := s.stagingPath(key)
	if err != nil {
		return err
	}
	if fileutil.Exists(path) {
		if err := fileutil.CopyFile(path, s.Path(videoID, version)); err != nil {
			return fmt.Errorf("failed to promote staged subtitle: %w", err)
		}
		return nil
	}

	content, err := s.ReadStaged(ctx, key)
	if err != nil {
		return err
	}
	return s.Write(videoID, version, content)
}

// DeleteStaged removes a staged upload locally and from the remote source
func (s *Store) DeleteStaged(ctx context.Context, key string) error {
	path, err := s.stagingPath(key)
	if err != nil {
		return err
	}

	var errs []error
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	if s.staged != nil {
		if err := s.staged.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Mirror downloads a subtitle from a file:// or http(s):// URL into the public store
func (s *Store) Mirror(ctx context.Context, sourceURL, videoID string, version int) error {
	if version <= 0 {
		return ErrInvalidVersion
	}
	data, err := s.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return err
	}
	return fileutil.WriteReaderAtomic(s.Path(videoID, version), bytes.NewReader(data))
}
