package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Key prefixes for the categories the service writes.
const (
	PrefixUploads = "uploads"
	PrefixRenders = "renders"
	PrefixAudit   = "audit_logs"
)

// ErrInvalidKey is returned for keys that are empty or escape the root.
var ErrInvalidKey = errors.New("storage: invalid key")

// FileStore persists assets onto the local filesystem under a single root.
// Keys are slash separated and always relative to that root.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath.
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

// Write persists data at key and returns the canonical key. The file is
// written to a temporary sibling first and renamed into place, so readers
// never observe a partial write.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := s.fullPath(cleanKey)
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: close file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: chmod: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: rename: %w", err)
	}
	return cleanKey, nil
}

// Read returns the bytes stored at key. Missing keys yield an error matching
// fs.ErrNotExist.
func (s *FileStore) Read(ctx context.Context, key string) ([]byte, error) {
	if s == nil {
		return nil, errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.fullPath(cleanKey))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", cleanKey, err)
	}
	return data, nil
}

// Stat reports the size of the object at key.
func (s *FileStore) Stat(key string) (int64, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(s.fullPath(cleanKey))
	if err != nil {
		return 0, fmt.Errorf("storage: stat %s: %w", cleanKey, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("storage: stat %s: %w", cleanKey, fs.ErrNotExist)
	}
	return info.Size(), nil
}

// EnsureDirs creates the given category directories under the root.
func (s *FileStore) EnsureDirs(prefixes ...string) error {
	for _, prefix := range prefixes {
		cleanPrefix, err := sanitizeKey(prefix)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(s.fullPath(cleanPrefix), 0o755); err != nil {
			return fmt.Errorf("storage: ensure %s: %w", cleanPrefix, err)
		}
	}
	return nil
}

// DirExists reports whether prefix is an existing directory.
func (s *FileStore) DirExists(prefix string) bool {
	cleanPrefix, err := sanitizeKey(prefix)
	if err != nil {
		return false
	}
	info, err := os.Stat(s.fullPath(cleanPrefix))
	return err == nil && info.IsDir()
}

// List returns the keys of regular files directly under prefix, sorted.
// Temporary files from in-flight writes are skipped.
func (s *FileStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cleanPrefix, err := sanitizeKey(prefix)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.fullPath(cleanPrefix))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("storage: list %s: %w", cleanPrefix, err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		keys = append(keys, path.Join(cleanPrefix, e.Name()))
	}
	sort.Strings(keys)
	return keys, nil
}

// Find locates an object stored under prefix whose name is id plus one of
// exts, tried in order. When no extension matches, the first file whose
// name starts with id is returned. The error matches fs.ErrNotExist when
// nothing is found.
func (s *FileStore) Find(ctx context.Context, prefix, id string, exts []string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", ErrInvalidKey
	}
	for _, ext := range exts {
		key := path.Join(prefix, id+ext)
		if _, err := s.Stat(key); err == nil {
			return key, nil
		}
	}
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return "", err
	}
	for _, key := range keys {
		if strings.HasPrefix(path.Base(key), id) {
			return key, nil
		}
	}
	return "", fmt.Errorf("storage: find %s/%s: %w", prefix, id, fs.ErrNotExist)
}

func (s *FileStore) fullPath(cleanKey string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
