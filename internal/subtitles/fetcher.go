package subtitles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

var (
	// ErrUnsupportedSource is returned for mirror URLs that are neither file nor http(s)
	ErrUnsupportedSource = errors.New("unsupported subtitle source")
	// ErrSourceOutsideRoot is returned for file URLs outside the configured file root
	ErrSourceOutsideRoot = errors.New("subtitle source outside allowed root")
)

// Fetcher reads subtitle files from local or remote URLs. File URLs are only
// served from below fileRoot; with no root they are refused.
type Fetcher struct {
	client   *http.Client
	fileRoot string
}

// NewFetcher creates a fetcher. A nil client gets a 30 second timeout.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client}
}

// SetFileRoot allows file:// sources below root
func (f *Fetcher) SetFileRoot(root string) {
	f.fileRoot = root
}

// localPath resolves a file URL path and checks that it stays below the file root
func (f *Fetcher) localPath(path string) (string, error) {
	if f.fileRoot == "" {
		return "", fmt.Errorf("%w: file sources are disabled", ErrUnsupportedSource)
	}
	root, err := filepath.Abs(f.fileRoot)
	if err != nil {
		return "", fmt.Errorf("invalid file root: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid subtitle path: %w", err)
	}
	// Symlinks are resolved when the target exists, so a link cannot escape the root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrSourceOutsideRoot
	}
	return abs, nil
}

// Fetch returns the body at rawURL, capped at the upload size limit
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid subtitle url: %w", err)
	}

	var body io.ReadCloser
	switch u.Scheme {
	case "file":
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		path, err = f.localPath(path)
		if err != nil {
			return nil, err
		}
		body, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open subtitle source: %w", err)
		}
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to download subtitle: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("subtitle download returned status %d", resp.StatusCode)
		}
		body = resp.Body
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, u.Scheme)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, models.SubtitleMaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitle source: %w", err)
	}
	if len(data) > models.SubtitleMaxUploadBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}
