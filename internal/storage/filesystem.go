package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileStore persists generated images onto the local filesystem. Images are
// written as flat files under a single directory; there is no database and no
// index file.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath, creating the
// directory when missing.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Write persists the provided bytes under the given filename and returns the
// sanitized name. Names are cleaned to prevent directory traversal.
func (s *FileStore) Write(ctx context.Context, name string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := sanitizeName(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(s.basePath, clean), data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return clean, nil
}

// SaveImage writes one image of an output batch under a collision-resistant
// name of the form <prefix>_<timestamp>_<index>.<ext> and returns the
// filename and its full path.
func (s *FileStore) SaveImage(ctx context.Context, prefix string, index int, ext string, data []byte) (string, string, error) {
	name := fmt.Sprintf("%s_%s_%d.%s", prefix, time.Now().Format("20060102_150405"), index, ext)
	filename, err := s.Write(ctx, name, data)
	if err != nil {
		return "", "", err
	}
	return filename, filepath.Join(s.basePath, filename), nil
}

// WriteTemp writes data to a call-unique temporary file inside the store and
// returns its path together with a cleanup func. The cleanup always removes
// the file; callers defer it so the temp file is gone on every exit path.
func (s *FileStore) WriteTemp(data []byte) (string, func(), error) {
	if s == nil {
		return "", nil, errors.New("storage: no store configured")
	}
	name := fmt.Sprintf("temp_ref_%s.png", uuid.NewString())
	path := filepath.Join(s.basePath, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", nil, fmt.Errorf("storage: write temp file: %w", err)
	}
	cleanup := func() {
		_ = os.Remove(path)
	}
	return path, cleanup, nil
}

// List returns the filenames of all regular files in the store, sorted by
// name. Temporary reference files are excluded.
func (s *FileStore) List() ([]string, error) {
	if s == nil {
		return nil, errors.New("storage: no store configured")
	}
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: read dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "temp_ref_") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the contents of a stored file by name.
func (s *FileStore) Read(name string) ([]byte, error) {
	if s == nil {
		return nil, errors.New("storage: no store configured")
	}
	clean, err := sanitizeName(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, clean))
	if err != nil {
		return nil, fmt.Errorf("storage: read file: %w", err)
	}
	return data, nil
}

// sanitizeName rejects names that would escape the storage root.
func sanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("storage: name is required")
	}
	cleaned := filepath.Clean(filepath.Base(name))
	if cleaned == "." || cleaned == ".." || cleaned != name {
		return "", errors.New("storage: invalid name")
	}
	return cleaned, nil
}
