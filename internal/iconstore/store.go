package iconstore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"syscall"
	"time"
)

var fileNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*\.svg$`)

// IconFile describes a stored SVG.
type IconFile struct {
	FileName   string    `json:"file_name"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Store manages SVG files in an output directory.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a Store and ensures the directory (and parents) exist.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("icon store: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the managed directory.
func (s *Store) Dir() string { return s.dir }

// FileName builds the stored name for an icon, e.g. "arrow-right-solid-v6.svg".
func FileName(name, style, version string) string {
	return fmt.Sprintf("%s-%s-v%s.svg", name, style, version)
}

// ErrInvalidName is returned for file names outside the store's pattern.
var ErrInvalidName = errors.New("invalid icon file name")

// ValidateFileName reports whether name is a plain SVG file name the store
// accepts.
func ValidateFileName(name string) error {
	if !fileNameRe.MatchString(name) || name != filepath.Base(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Place moves src into the store as fileName, replacing any existing file,
// then overwrites it with content.
//
// If the write fails the moved file stays behind with its original bytes.
func (s *Store) Place(src, fileName string, content []byte) (string, error) {
	if err := ValidateFileName(fileName); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dest := filepath.Join(s.dir, fileName)
	if err := moveFile(src, dest); err != nil {
		return "", fmt.Errorf("icon store: move %s: %w", filepath.Base(src), err)
	}
	if err := os.WriteFile(dest, content, 0o644); err != nil {
		return "", fmt.Errorf("icon store: write %s: %w", fileName, err)
	}
	return dest, nil
}

// List returns all stored icons sorted by modification time (newest first).
func (s *Store) List() ([]IconFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.svg"))
	if err != nil {
		return nil, fmt.Errorf("icon store: glob: %w", err)
	}

	files := make([]IconFile, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, IconFile{
			FileName:   filepath.Base(path),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].ModifiedAt.Equal(files[j].ModifiedAt) {
			return files[i].FileName < files[j].FileName
		}
		return files[i].ModifiedAt.After(files[j].ModifiedAt)
	})
	return files, nil
}

// ErrNotFound is returned by Read for unknown files.
var ErrNotFound = errors.New("icon not found")

// Read returns the raw markup of a stored icon.
func (s *Store) Read(fileName string) ([]byte, error) {
	if err := ValidateFileName(fileName); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.dir, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, fileName)
		}
		return nil, fmt.Errorf("icon store: read %s: %w", fileName, err)
	}
	return data, nil
}

// moveFile renames src to dest, copying across filesystems when needed.
func moveFile(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	slog.Debug("cross-device move, copying", "src", src, "dest", dest)
	if err := copyFile(src, dest); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		slog.Debug("source cleanup after copy failed", "src", src, "error", err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
