package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/fileutil"
)

// File is a JSON document on disk guarded by an in-process mutex and a
// cross-process advisory lock. Every read-modify-write must go through Update.
type File struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// New returns a File for path. The lock file lives in lockDir, or next to
// path when lockDir is empty.
func New(path, lockDir string) *File {
	if lockDir == "" {
		lockDir = filepath.Dir(path)
	}
	return &File{
		path: path,
		lock: flock.New(filepath.Join(lockDir, filepath.Base(path)+".lock")),
	}
}

// Path returns the document path.
func (f *File) Path() string {
	return f.path
}

// Load decodes the document into v. A missing or empty file leaves v untouched
// and reports found=false.
func (f *File) Load(v interface{}) (found bool, err error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return true, nil
}

// Save encodes v as indented JSON and replaces the document atomically.
func (f *File) Save(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}
	return fileutil.WriteFileAtomic(f.path, append(data, '\n'))
}

// Update runs fn while holding both locks.
func (f *File) Update(fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.lock.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() {
		_ = f.lock.Unlock()
	}()

	return fn()
}

// ModTime returns the document modification time, or the zero time if it is absent.
func (f *File) ModTime() time.Time {
	info, err := os.Stat(f.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
