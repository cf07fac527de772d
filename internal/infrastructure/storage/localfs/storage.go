package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Storage keeps blobs as files under basePath. Blob ids are
// "<uuid>_<sanitized original name>".
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) Store(_ context.Context, originalName string, data io.Reader) (string, error) {
	id := uuid.NewString() + "_" + sanitize(originalName)
	path := filepath.Join(s.basePath, id)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close file: %w", err)
	}
	return id, nil
}

func (s *Storage) Open(_ context.Context, blobID string) (io.ReadCloser, error) {
	path, err := s.path(blobID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Delete is a no-op for blobs that are already gone.
func (s *Storage) Delete(_ context.Context, blobID string) error {
	path, err := s.path(blobID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (s *Storage) path(blobID string) (string, error) {
	if blobID == "" || blobID != filepath.Base(blobID) || strings.HasPrefix(blobID, ".") {
		return "", fmt.Errorf("invalid blob id %q", blobID)
	}
	return filepath.Join(s.basePath, blobID), nil
}

func sanitize(name string) string {
	name = unsafeName.ReplaceAllString(filepath.Base(name), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	return name
}
