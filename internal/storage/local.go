package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStorage keeps uploaded media. Keys are slash-separated paths relative
// to the storage root, e.g. dish/<uuid>/photo.jpg.
type FileStorage interface {
	Save(ctx context.Context, category, filename string, reader io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// LocalStorage stores files on the local filesystem.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

// Save writes reader under <category>/<uuid>/<filename> and returns that key.
func (s *LocalStorage) Save(_ context.Context, category, filename string, reader io.Reader) (string, error) {
	name := CleanFilename(filename)
	if name == "" {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	key := path.Join(category, uuid.New().String(), name)

	full := s.path(key)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return key, nil
}

func (s *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	full := s.path(key)
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	// Drop the per-upload directory if it is now empty.
	_ = os.Remove(filepath.Dir(full))
	return nil
}

func (s *LocalStorage) path(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(path.Clean("/"+key)))
}

// CleanFilename strips directories and characters unsafe in file names.
func CleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, name)
}
